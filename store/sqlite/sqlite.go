// Package sqlite persists identifiables in a SQLite database, one
// codec-encoded document per row. It implements the same provider surface as
// the in-memory store, so it slots behind a multiplexer or serves as the
// other side of a Sync without the rest of the module knowing the difference.
package sqlite

import (
	"bytes"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
	"github.com/twinforge/aaskit/store"
)

// BusyTimeoutMS is how long a connection waits on a locked database before
// failing a statement.
const BusyTimeoutMS = 5000

// Open opens the SQLite database at path with the settings every store
// connection needs: WAL mode for concurrent reads during writes, enforced
// foreign keys, and a busy timeout. If log is nil the open is silent.
func Open(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening database %q", path)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enabling WAL mode")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enabling foreign keys")
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", BusyTimeoutMS)); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "setting busy timeout")
	}

	if log != nil {
		log.Infow("Database opened",
			logger.FieldPath, path,
			"wal_mode", true,
			"foreign_keys", true,
		)
	}
	return db, nil
}

// Query constants
const (
	createSchemaQuery = `
		CREATE TABLE IF NOT EXISTS identifiables (
			identifier TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			id_short   TEXT NOT NULL DEFAULT '',
			version    TEXT NOT NULL DEFAULT '',
			payload    BLOB NOT NULL
		)`

	createKindIndexQuery = `
		CREATE INDEX IF NOT EXISTS identifiables_kind ON identifiables (kind)`

	insertQuery = `
		INSERT INTO identifiables (identifier, kind, id_short, version, payload)
		VALUES (?, ?, ?, ?, ?)`

	updateQuery = `
		UPDATE identifiables
		SET kind = ?, id_short = ?, version = ?, payload = ?
		WHERE identifier = ?`

	selectPayloadQuery = `
		SELECT payload FROM identifiables WHERE identifier = ?`

	selectAllPayloadsQuery = `
		SELECT payload FROM identifiables ORDER BY identifier`

	existsQuery = `
		SELECT EXISTS(SELECT 1 FROM identifiables WHERE identifier = ?)`

	countQuery = `
		SELECT COUNT(*) FROM identifiables`

	deleteQuery = `
		DELETE FROM identifiables WHERE identifier = ?`
)

// Store is a SQLite-backed identifiable store. Rows carry the identifier,
// the element kind, the id-short, the administrative version, and the
// document produced by the codec; everything else lives inside the document.
//
// Instance identity does not survive persistence: two objects count as the
// same when their encoded documents match, and every lookup decodes a fresh
// instance. The *sql.DB is owned by the caller.
type Store struct {
	db     *sql.DB
	codec  model.Codec
	logger *zap.SugaredLogger
}

var _ store.Provider = (*Store)(nil)

// New creates a store on db and ensures its schema exists. A nil codec
// selects the built-in JSON codec.
func New(db *sql.DB, codec model.Codec) (*Store, error) {
	if codec == nil {
		codec = model.NewJSONCodec()
	}
	s := &Store{
		db:     db,
		codec:  codec,
		logger: logger.ComponentLogger("store.sqlite"),
	}
	if _, err := db.Exec(createSchemaQuery); err != nil {
		return nil, errors.Wrap(err, "creating identifiables table")
	}
	if _, err := db.Exec(createKindIndexQuery); err != nil {
		return nil, errors.Wrap(err, "creating kind index")
	}
	return s, nil
}

// Add inserts x into the store. Re-adding an object whose encoded document
// matches the stored row is a no-op; a different document under an already
// stored identifier is a constraint violation and leaves the row unchanged.
func (s *Store) Add(x model.Identifiable) error {
	if x == nil || x.ID() == "" {
		return errors.NewConstraint("identifiable carries no identifier")
	}
	doc, err := s.codec.Encode(x)
	if err != nil {
		return errors.Wrapf(err, "encoding %q", x.ID())
	}

	var stored []byte
	err = s.db.QueryRow(selectPayloadQuery, x.ID()).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		// fresh identifier, insert below
	case err != nil:
		return errors.Wrapf(err, "looking up %q", x.ID())
	case bytes.Equal(stored, doc):
		return nil
	default:
		return errors.NewConstraint("identifier %q is already taken by a different document", x.ID())
	}

	if _, err := s.db.Exec(insertQuery,
		x.ID(), string(model.KeyTypeOf(x)), x.IDShort(), x.Administration().VersionString(), doc,
	); err != nil {
		return errors.Wrapf(err, "inserting %q", x.ID())
	}
	s.logger.Debugw("Object stored",
		logger.FieldID, x.ID(),
	)
	return nil
}

// Discard removes x from the store. It refuses when the identifier is absent
// or when the stored document differs from x's encoding, mirroring the
// identity check of the in-memory store.
func (s *Store) Discard(x model.Identifiable) error {
	if x == nil {
		return errors.NewNotFound("no object given")
	}
	doc, err := s.codec.Encode(x)
	if err != nil {
		return errors.Wrapf(err, "encoding %q", x.ID())
	}

	var stored []byte
	err = s.db.QueryRow(selectPayloadQuery, x.ID()).Scan(&stored)
	if err == sql.ErrNoRows {
		return errors.NewNotFound("identifier %q is not stored", x.ID())
	}
	if err != nil {
		return errors.Wrapf(err, "looking up %q", x.ID())
	}
	if !bytes.Equal(stored, doc) {
		return errors.NewConstraint("identifier %q is held by a different document", x.ID())
	}

	if _, err := s.db.Exec(deleteQuery, x.ID()); err != nil {
		return errors.Wrapf(err, "deleting %q", x.ID())
	}
	s.logger.Debugw("Object discarded",
		logger.FieldID, x.ID(),
	)
	return nil
}

// Contains reports whether x is stored with a matching document.
func (s *Store) Contains(x model.Identifiable) bool {
	if x == nil {
		return false
	}
	doc, err := s.codec.Encode(x)
	if err != nil {
		return false
	}
	var stored []byte
	if err := s.db.QueryRow(selectPayloadQuery, x.ID()).Scan(&stored); err != nil {
		return false
	}
	return bytes.Equal(stored, doc)
}

// ContainsID reports whether any object is stored under id.
func (s *Store) ContainsID(id string) bool {
	var exists bool
	err := s.db.QueryRow(existsQuery, id).Scan(&exists)
	return err == nil && exists
}

// Len returns the number of stored objects. A query failure counts as empty
// and is logged.
func (s *Store) Len() int {
	var n int
	if err := s.db.QueryRow(countQuery).Scan(&n); err != nil {
		s.logger.Warnw("Counting stored objects failed",
			logger.FieldError, err,
		)
		return 0
	}
	return n
}

// Each visits every stored identifiable in identifier order until fn returns
// false. Each visit decodes a fresh instance.
func (s *Store) Each(fn func(model.Identifiable) bool) error {
	rows, err := s.db.Query(selectAllPayloadsQuery)
	if err != nil {
		return errors.Wrap(err, "querying stored objects")
	}
	defer rows.Close()

	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return errors.Wrap(err, "scanning stored document")
		}
		x, err := s.codec.Decode(doc)
		if err != nil {
			return errors.Wrap(err, "decoding stored document")
		}
		if !fn(x) {
			return nil
		}
	}
	return errors.Wrap(rows.Err(), "iterating stored objects")
}

// Get returns a fresh decode of the object stored under id, or false.
func (s *Store) Get(id string) (model.Identifiable, bool) {
	x, err := s.GetIdentifiable(id)
	if err != nil {
		return nil, false
	}
	return x, true
}

// GetIdentifiable returns a fresh decode of the object stored under id or a
// not-found error. It makes the store a model.IdentifiableProvider.
func (s *Store) GetIdentifiable(id string) (model.Identifiable, error) {
	var doc []byte
	err := s.db.QueryRow(selectPayloadQuery, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("identifier %q is not stored", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "looking up %q", id)
	}
	x, err := s.codec.Decode(doc)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding stored document %q", id)
	}
	return x, nil
}

// Sync copies every object of other into the store. Rows whose stored
// document already matches the incoming encoding are skipped; diverged rows
// are replaced when overwrite is set and skipped otherwise. A failure partway
// leaves the rows synced so far in place.
func (s *Store) Sync(other store.Provider, overwrite bool) (store.SyncCounts, error) {
	var counts store.SyncCounts
	var syncErr error
	err := other.Each(func(incoming model.Identifiable) bool {
		if incoming == nil || incoming.ID() == "" {
			counts.Skipped++
			return true
		}
		var doc []byte
		if doc, syncErr = s.codec.Encode(incoming); syncErr != nil {
			syncErr = errors.Wrapf(syncErr, "encoding %q", incoming.ID())
			return false
		}

		var stored []byte
		lookupErr := s.db.QueryRow(selectPayloadQuery, incoming.ID()).Scan(&stored)
		switch {
		case lookupErr == sql.ErrNoRows:
			if _, syncErr = s.db.Exec(insertQuery,
				incoming.ID(), string(model.KeyTypeOf(incoming)), incoming.IDShort(), incoming.Administration().VersionString(), doc,
			); syncErr != nil {
				syncErr = errors.Wrapf(syncErr, "inserting %q", incoming.ID())
				return false
			}
			counts.Added++
		case lookupErr != nil:
			syncErr = errors.Wrapf(lookupErr, "looking up %q", incoming.ID())
			return false
		case bytes.Equal(stored, doc):
			counts.Skipped++
		case overwrite:
			if _, syncErr = s.db.Exec(updateQuery,
				string(model.KeyTypeOf(incoming)), incoming.IDShort(), incoming.Administration().VersionString(), doc, incoming.ID(),
			); syncErr != nil {
				syncErr = errors.Wrapf(syncErr, "updating %q", incoming.ID())
				return false
			}
			counts.Overwritten++
		default:
			counts.Skipped++
		}
		return true
	})
	if err != nil {
		return counts, errors.Wrap(err, "iterating other store")
	}
	if syncErr != nil {
		return counts, syncErr
	}
	s.logger.Debugw("Stores synced",
		logger.FieldAdded, counts.Added,
		logger.FieldOverwritten, counts.Overwritten,
		logger.FieldSkipped, counts.Skipped)
	return counts, nil
}
