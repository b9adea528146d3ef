// Package wiring assembles collaborators from config.Config, the way the
// teacher's cmd/* binaries build up their dependency graph by hand rather
// than through a DI container. Shared by cmd/server, cmd/migrator, and
// cmd/importer so backend selection logic lives in one place.
package wiring

import (
	"fmt"

	"github.com/skyblock-archive/auctions/internal/bus"
	"github.com/skyblock-archive/auctions/internal/coldstore"
	"github.com/skyblock-archive/auctions/internal/config"
	"github.com/skyblock-archive/auctions/internal/hotstore"
	"github.com/skyblock-archive/auctions/internal/offset"
	"github.com/skyblock-archive/auctions/internal/playerlookup"
	"github.com/skyblock-archive/auctions/internal/sqlsource"
)

// OpenHotStore selects and opens the configured hot-store backend.
func OpenHotStore(cfg config.Config) (hotstore.Store, error) {
	switch cfg.HotStoreBackend {
	case "", "memory":
		return hotstore.NewMemStore(), nil
	case "lmdb":
		return hotstore.OpenLMDBStore(cfg.LMDBPath)
	case "cassandra":
		return hotstore.OpenCassandraStore(cfg.Cassandra)
	default:
		return nil, fmt.Errorf("wiring: unknown HOTSTORE_BACKEND %q", cfg.HotStoreBackend)
	}
}

// OpenColdStore selects and opens the configured cold-archive object
// client and wraps it in a coldstore.Store. The store's bloom indexes start
// empty; cmd/server and cmd/migrator hydrate them with LoadIndexes.
func OpenColdStore(cfg config.Config) (*coldstore.Store, error) {
	var client coldstore.ObjectClient
	var err error

	switch cfg.ColdStoreBackend {
	case "", "local":
		client = coldstore.NewLocalClient(cfg.LocalArchiveRoot)
	case "s3":
		client, err = coldstore.NewS3Client(cfg.S3Bucket)
	case "azure":
		client, err = coldstore.NewAzureClient(cfg.AzureAccount, cfg.AzureAccountKey, cfg.AzureContainer)
	default:
		return nil, fmt.Errorf("wiring: unknown COLDSTORE_BACKEND %q", cfg.ColdStoreBackend)
	}
	if err != nil {
		return nil, err
	}

	store := coldstore.New(client)
	return store, nil
}

// OpenOffsetTracker builds the import-offset tracker, backed by Redis when
// configured and an in-process cache otherwise (single-process dev mode).
func OpenOffsetTracker(cfg config.Config) *offset.Tracker {
	var cache offset.Cache
	if cfg.RedisHost != "" {
		cache = offset.NewRedisCache(cfg.RedisHost)
	} else {
		cache = offset.NewMemCache()
	}
	return offset.NewTracker(cache, int64(10*cfg.WorkerPoolSize))
}

// OpenSQLSource opens the legacy relational collaborator, or returns a nil
// Source/Restorer pair when unconfigured (the historical migrator and
// restore endpoints then stay disabled).
func OpenSQLSource(cfg config.Config) (sqlsource.Source, sqlsource.Restorer, error) {
	if cfg.SQLSourceDSN == "" {
		return nil, nil, nil
	}
	src, err := sqlsource.OpenMySQLSource(cfg.SQLSourceDSN)
	if err != nil {
		return nil, nil, err
	}
	return src, src, nil
}

// OpenBusConsumer opens the live Kafka consumer for the sold-auction topic.
func OpenBusConsumer(cfg config.Config) bus.Consumer {
	return bus.NewKafkaConsumer(cfg.KafkaBrokers, cfg.TopicSoldAuction, "auctions-archive")
}

// OpenPlayerLookup builds the player-name lookup client, or a no-op client
// when unconfigured.
func OpenPlayerLookup(cfg config.Config) playerlookup.Client {
	if cfg.PlayerLookupURL == "" {
		return playerlookup.NoOpClient{}
	}
	return playerlookup.NewHTTPClient(cfg.PlayerLookupURL)
}
