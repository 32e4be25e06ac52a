package commands

import (
	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/backend/couchdb"
	"github.com/twinforge/aaskit/backend/file"
	httpbackend "github.com/twinforge/aaskit/backend/http"
	"github.com/twinforge/aaskit/backend/modbus"
	"github.com/twinforge/aaskit/backend/mqtt"
	"github.com/twinforge/aaskit/backend/ws"
	"github.com/twinforge/aaskit/config"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
	"github.com/twinforge/aaskit/store"
	"github.com/twinforge/aaskit/store/sqlite"
)

// buildRegistry constructs the backend registry every CLI operation
// dispatches through, one backend per built-in protocol, configured from cfg.
func buildRegistry(cfg *config.Config) (*backend.Registry, error) {
	registry := backend.NewRegistry()

	backends := map[backend.Protocol]interface{}{
		backend.HTTP: httpbackend.New(httpbackend.Config{
			Timeout:              cfg.GetHTTPTimeout(),
			BlockPrivateNetworks: !cfg.HTTP.AllowPrivateHosts,
			Username:             cfg.HTTP.Username,
			Password:             cfg.HTTP.Password,
			Token:                cfg.HTTP.Token,
		}),
		backend.COUCHDB: couchdb.New(couchdb.Config{
			Timeout:  cfg.GetCouchDBTimeout(),
			Username: cfg.CouchDB.Username,
			Password: cfg.CouchDB.Password,
		}),
		backend.MQTT: mqtt.New(mqtt.Config{
			ConnectTimeout: cfg.GetMQTTConnectTimeout(),
			ReadTimeout:    cfg.GetMQTTReadTimeout(),
			QoS:            byte(cfg.MQTT.QoS),
		}),
		backend.MODBUS: modbus.New(modbus.Config{
			Timeout: cfg.GetModbusTimeout(),
			SlaveID: byte(cfg.Modbus.SlaveID),
		}),
		backend.FILE: file.New(file.Config{Root: cfg.GetFileRoot()}),
		ws.Protocol:  ws.New(ws.Config{}),
	}
	for protocol, b := range backends {
		if err := registry.Register(protocol, b); err != nil {
			return nil, errors.Wrapf(err, "registering %s backend", string(protocol))
		}
	}
	return registry, nil
}

// loadStore opens the persistent store at cfg.GetStorePath() and loads its
// contents into a fresh in-memory store dispatching through registry. The
// returned cleanup stops subscriptions and closes the database.
func loadStore(cfg *config.Config, registry *backend.Registry, opts store.Options) (*store.Store, *sqlite.Store, func(), error) {
	storePath := cfg.GetStorePath()
	db, err := sqlite.Open(storePath, logger.Logger)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "opening object store at %s", storePath)
	}
	persist, err := sqlite.New(db, nil)
	if err != nil {
		db.Close()
		return nil, nil, nil, errors.Wrap(err, "preparing object store schema")
	}
	mem := store.NewWithOptions(registry, opts)
	if err := mem.AddFrom(persist); err != nil {
		db.Close()
		return nil, nil, nil, errors.Wrap(err, "loading stored objects")
	}
	reextractMappings(mem)

	cleanup := func() {
		mem.Close()
		db.Close()
	}
	return mem, persist, cleanup, nil
}

// reextractMappings re-runs source extraction once every stored object is in
// memory: a mapping configuration that loaded before the interface
// description it references resolves on this second pass. Submodels without
// mapping configurations fall out as not-found and are skipped.
func reextractMappings(s *store.Store) {
	_ = s.Each(func(x model.Identifiable) bool {
		sm, ok := x.(*model.Submodel)
		if !ok {
			return true
		}
		if err := s.ExtractMappings(sm); err != nil && !errors.IsNotFound(err) {
			logger.Warnw("Mapping extraction incomplete",
				logger.FieldID, sm.ID(),
				logger.FieldError, err)
		}
		return true
	})
}
