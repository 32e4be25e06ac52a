// Package file implements the filesystem backend: one value document per
// element beneath a base directory. Commits write atomically through a
// temp-file rename; subscriptions watch the document with fsnotify and
// deliver its contents on every change.
package file

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
)

// Config tunes the filesystem backend.
type Config struct {
	// Root is the base directory for sources that carry no base of their
	// own. Empty means sources must bring their base.
	Root string
}

// Backend synchronizes elements with value documents on the local
// filesystem. Sources carry base (the root directory) and optionally path
// (a document path relative to base); without a path the document location
// derives from the store identifier and the relative path.
type Backend struct {
	root   string
	logger *zap.SugaredLogger
}

var (
	_ backend.ObjectBackend   = (*Backend)(nil)
	_ backend.ValueBackend    = (*Backend)(nil)
	_ backend.ValueSubscriber = (*Backend)(nil)
)

// New creates a filesystem backend.
func New(cfg Config) *Backend {
	return &Backend{
		root:   cfg.Root,
		logger: logger.ComponentLogger("backend.file"),
	}
}

// UpdateObject reads the element's document and applies the stored value.
func (b *Backend) UpdateObject(ctx context.Context, updated, store model.Referable, relPath []string, source backend.Source) error {
	path, err := b.documentPath(source, store, relPath)
	if err != nil {
		return err
	}
	return b.readInto(updated, path)
}

// CommitObject writes the element's value document atomically.
func (b *Backend) CommitObject(ctx context.Context, committed, store model.Referable, relPath []string, source backend.Source) error {
	path, err := b.documentPath(source, store, relPath)
	if err != nil {
		return err
	}
	return b.write(committed, path)
}

// UpdateValue reads the element's own document.
func (b *Backend) UpdateValue(ctx context.Context, updated model.Referable, source backend.Source) error {
	path, err := b.documentPath(source, updated, nil)
	if err != nil {
		return err
	}
	return b.readInto(updated, path)
}

// CommitValue writes the element's own document.
func (b *Backend) CommitValue(ctx context.Context, committed model.Referable, source backend.Source) error {
	path, err := b.documentPath(source, committed, nil)
	if err != nil {
		return err
	}
	return b.write(committed, path)
}

func (b *Backend) readInto(el model.Referable, path string) error {
	payload, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return errors.NewNotFound("document %s", path)
	}
	if err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "reading %s: %v", path, err)
	}
	value, err := backend.DecodeValue(payload)
	if err != nil {
		return errors.Wrapf(err, "document %s", path)
	}
	b.logger.Debugw("Document read",
		logger.FieldPath, path,
		logger.FieldIDShort, el.IDShort(),
	)
	return model.SetValueString(el, value)
}

func (b *Backend) write(el model.Referable, path string) error {
	value, err := model.ValueString(el)
	if err != nil {
		return err
	}
	payload, err := backend.EncodeValue(value)
	if err != nil {
		return err
	}
	if err := writeAtomic(path, payload); err != nil {
		return err
	}
	b.logger.Debugw("Document written",
		logger.FieldPath, path,
		logger.FieldIDShort, el.IDShort(),
	)
	return nil
}

// writeAtomic writes through a temp file in the target directory so readers
// and watchers never observe a half-written document.
func writeAtomic(path string, payload []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "creating %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".commit-*")
	if err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "temp file in %s: %v", dir, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(errors.ErrBackendUnavailable, "writing %s: %v", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "closing %s: %v", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "renaming into %s: %v", path, err)
	}
	return nil
}

// SubscribeValue watches the source's document and delivers its contents
// whenever it is written or atomically replaced. The source must carry a
// path entry; there is no element to derive one from.
func (b *Backend) SubscribeValue(ctx context.Context, source backend.Source, deliver func(payload []byte)) (backend.Subscription, error) {
	if source[backend.KeyPath] == "" {
		return nil, errors.NewConstraint("file subscription source carries no path")
	}
	path, err := b.documentPath(source, nil, nil)
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: atomic replacement swaps the
	// inode, which silently detaches a file-level watch.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(errors.ErrBackendUnavailable, "creating %s: %v", dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrBackendUnavailable, "starting watcher: %v", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrapf(errors.ErrBackendUnavailable, "watching %s: %v", dir, err)
	}

	sub := &subscription{watcher: watcher, done: make(chan struct{})}
	go sub.loop(ctx, path, deliver, b.logger)

	b.logger.Debugw("Subscription started", logger.FieldPath, path)
	return sub, nil
}

type subscription struct {
	watcher *fsnotify.Watcher
	once    sync.Once
	done    chan struct{}
}

func (s *subscription) loop(ctx context.Context, path string, deliver func([]byte), log *zap.SugaredLogger) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			_ = s.watcher.Close()
			return

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			payload, err := os.ReadFile(path)
			if err != nil {
				log.Debugw("Changed document unreadable",
					logger.FieldPath, path, logger.FieldError, err)
				continue
			}
			deliver(payload)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Warnw("Watcher error", logger.FieldPath, path, logger.FieldError, err)
		}
	}
}

// Stop closes the watcher and waits for the delivery loop to exit. Safe to
// call more than once.
func (s *subscription) Stop() {
	s.once.Do(func() { _ = s.watcher.Close() })
	<-s.done
}

// documentPath resolves the document location. An explicit source path
// wins; otherwise the location derives from the store identifier and the
// relative path, one directory level per segment. Sources without a base
// fall back to the configured root.
func (b *Backend) documentPath(source backend.Source, store model.Referable, relPath []string) (string, error) {
	base := source[backend.KeyBase]
	if base == "" {
		base = b.root
	}
	if base == "" {
		return "", errors.NewConstraint("file source carries no base")
	}

	if p := source[backend.KeyPath]; p != "" {
		rel := filepath.FromSlash(strings.TrimSuffix(p, ".json"))
		return filepath.Join(base, rel+".json"), nil
	}
	if store == nil {
		return "", errors.NewConstraint("file source carries neither path nor store object")
	}

	segments := make([]string, 0, len(relPath)+1)
	segments = append(segments, sanitize(storeIdentifier(store)))
	for _, seg := range relPath {
		segments = append(segments, sanitize(seg))
	}
	return filepath.Join(base, filepath.Join(segments...)) + ".json", nil
}

func storeIdentifier(store model.Referable) string {
	if ident, ok := store.(model.Identifiable); ok && ident.ID() != "" {
		return ident.ID()
	}
	return store.IDShort()
}

// sanitize keeps identifiers filesystem-safe; URLs used as identifiers
// would otherwise explode into directory trees.
func sanitize(segment string) string {
	return url.PathEscape(segment)
}
