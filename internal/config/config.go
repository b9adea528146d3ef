// Package config assembles the typed Config struct from environment
// variables (the colon-separated keys in spec.md section 6) with an
// optional TOML file overlay, the way the teacher's cmd/* binaries build up
// flag-backed config structs rather than relying on a DI container.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Cassandra struct {
	Hosts              []string
	Keyspace           string
	User               string
	Password           string
	ReplicationClass   string
	ReplicationFactor  int
	X509CertPaths      []string
	X509CertPassword   string
}

type Config struct {
	// HotStoreBackend selects the hot store: "memory", "lmdb", or
	// "cassandra". Defaults to "memory" for single-process dev use.
	HotStoreBackend string
	LMDBPath        string

	// ColdStoreBackend selects the cold archive object client: "local",
	// "s3", or "azure".
	ColdStoreBackend string
	LocalArchiveRoot string
	AzureAccount     string
	AzureAccountKey  string
	AzureContainer   string

	Cassandra Cassandra

	RedisHost string

	S3Bucket string

	// SQLSourceDSN is the legacy relational collaborator's connection
	// string (go-sql-driver/mysql DSN form), used by the historical
	// migrator and the restore endpoints. Empty disables both.
	SQLSourceDSN string

	KafkaBrokers []string

	TopicSoldAuction string
	TopicNewAuction  string

	PlayerLookupURL string

	Tags []string

	RetentionMonths int

	LogLevel       string
	MetricsAddr    string
	HTTPAddr       string
	WorkerPoolSize int
	ParallelDegree int

	BloomMasterCapacity uint64
	BloomMasterFPR      float64
	BloomTagCapacity    uint64
	BloomTagFPR         float64

	QueueHighWatermarkAuctions int
	QueueHighWatermarkBids     int

	StartupGracePeriod time.Duration
}

// Default returns the configuration defaults named in spec.md section 6.
func Default() Config {
	return Config{
		HotStoreBackend:  "memory",
		LMDBPath:         "./data/hotstore",
		ColdStoreBackend: "local",
		LocalArchiveRoot: "./data/coldstore",
		Cassandra: Cassandra{
			ReplicationClass:  "NetworkTopologyStrategy",
			ReplicationFactor: 3,
		},
		TopicSoldAuction:           "SOLD_AUCTION",
		TopicNewAuction:            "NEW_AUCTION",
		RetentionMonths:            3,
		LogLevel:                   "info",
		MetricsAddr:                ":9100",
		HTTPAddr:                   ":8080",
		WorkerPoolSize:             100,
		ParallelDegree:             10,
		BloomMasterCapacity:        100_000_000,
		BloomMasterFPR:             0.001,
		BloomTagCapacity:           1_000_000,
		BloomTagFPR:                0.01,
		QueueHighWatermarkAuctions: 500,
		QueueHighWatermarkBids:     200,
		StartupGracePeriod:         0,
	}
}

// Load builds a Config from the defaults, overlaid by a TOML file at
// filePath (ignored if filePath is empty or missing), then by the process
// environment, which wins over both.
func Load(filePath string) (Config, error) {
	cfg := Default()

	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			if _, err := toml.DecodeFile(filePath, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	if v := envString("CASSANDRA:HOSTS"); v != "" {
		cfg.Cassandra.Hosts = strings.Split(v, ",")
	}
	if v := envString("CASSANDRA:KEYSPACE"); v != "" {
		cfg.Cassandra.Keyspace = v
	}
	if v := envString("CASSANDRA:USER"); v != "" {
		cfg.Cassandra.User = v
	}
	if v := envString("CASSANDRA:PASSWORD"); v != "" {
		cfg.Cassandra.Password = v
	}
	if v := envString("CASSANDRA:REPLICATION_CLASS"); v != "" {
		cfg.Cassandra.ReplicationClass = v
	}
	if v := envInt("CASSANDRA:REPLICATION_FACTOR"); v != 0 {
		cfg.Cassandra.ReplicationFactor = v
	}
	if v := envString("CASSANDRA:X509Certificate_PATHS"); v != "" {
		cfg.Cassandra.X509CertPaths = strings.Split(v, ",")
	}
	if v := envString("CASSANDRA:X509Certificate_PASSWORD"); v != "" {
		cfg.Cassandra.X509CertPassword = v
	}
	if v := envString("REDIS_HOST"); v != "" {
		cfg.RedisHost = v
	}
	if v := envString("S3:BUCKET_NAME"); v != "" {
		cfg.S3Bucket = v
	}
	if v := envString("SQL_SOURCE:DSN"); v != "" {
		cfg.SQLSourceDSN = v
	}
	if v := envString("HOTSTORE_BACKEND"); v != "" {
		cfg.HotStoreBackend = v
	}
	if v := envString("LMDB_PATH"); v != "" {
		cfg.LMDBPath = v
	}
	if v := envString("COLDSTORE_BACKEND"); v != "" {
		cfg.ColdStoreBackend = v
	}
	if v := envString("LOCAL_ARCHIVE_ROOT"); v != "" {
		cfg.LocalArchiveRoot = v
	}
	if v := envString("AZURE:ACCOUNT_NAME"); v != "" {
		cfg.AzureAccount = v
	}
	if v := envString("AZURE:ACCOUNT_KEY"); v != "" {
		cfg.AzureAccountKey = v
	}
	if v := envString("AZURE:CONTAINER"); v != "" {
		cfg.AzureContainer = v
	}
	if v := envString("KAFKA:BROKERS"); v != "" {
		cfg.KafkaBrokers = strings.Split(v, ",")
	}
	if v := envString("PLAYER_LOOKUP_URL"); v != "" {
		cfg.PlayerLookupURL = v
	}
	if v := envString("TAGS"); v != "" {
		cfg.Tags = strings.Split(v, ",")
	}
	if v := envString("TOPICS:SOLD_AUCTION"); v != "" {
		cfg.TopicSoldAuction = v
	}
	if v := envString("TOPICS:NEW_AUCTION"); v != "" {
		cfg.TopicNewAuction = v
	}
	if v := envInt("RETENTION_MONTHS"); v != 0 {
		cfg.RetentionMonths = v
	}
	if v := envString("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := envString("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := envString("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := envInt("WORKER_POOL_SIZE"); v != 0 {
		cfg.WorkerPoolSize = v
	}
	if v := envInt("PARALLEL_DEGREE"); v != 0 {
		cfg.ParallelDegree = v
	}

	return cfg, nil
}

// envString reads a colon-separated key, falling back to the same key with
// colons replaced by underscores (the form shells can actually export).
func envString(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return os.Getenv(strings.ReplaceAll(key, ":", "_"))
}

func envInt(key string) int {
	v := envString(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
