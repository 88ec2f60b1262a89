package config

import (
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/downfa11-org/go-relay/util"
	"gopkg.in/yaml.v3"
)

// Config holds the relay configuration including tunable egress options.
type Config struct {
	// Server settings
	ServerPort     int           `yaml:"server_port" json:"server.port"`
	EnableExporter bool          `yaml:"enable_exporter" json:"enable.exporter"`
	ExporterPort   int           `yaml:"exporter_port" json:"exporter.port"`
	LogLevel       util.LogLevel `yaml:"log_level" json:"log_level"`

	// Egress batching
	MaxBatchCount   int `yaml:"max_batch_count" json:"max.batch.count"`
	MaxBatchBytes   int `yaml:"max_batch_bytes" json:"max.batch.bytes"` // 0 = unbounded
	FlushIntervalMS int `yaml:"flush_interval_ms" json:"flush.interval.ms"`
	CooldownMinMS   int `yaml:"cooldown_min_ms" json:"cooldown.min.ms"`
	CooldownMaxMS   int `yaml:"cooldown_max_ms" json:"cooldown.max.ms"`

	// Sharding
	ShardCount int `yaml:"shard_count" json:"shard.count"`

	// Disk persistence
	DataDir     string `yaml:"data_dir" json:"data.dir"`
	SegmentSize int    `yaml:"segment_size" json:"segment.size"`

	// Replication
	EnableReplication    bool     `yaml:"enable_replication" json:"enable.replication"`
	NodeID               string   `yaml:"node_id" json:"node.id"`
	AdvertisedHost       string   `yaml:"advertised_host" json:"advertised.host"`
	RaftPort             int      `yaml:"raft_port" json:"raft.port"`
	BootstrapCluster     bool     `yaml:"bootstrap_cluster" json:"bootstrap.cluster"`
	StaticClusterMembers []string `yaml:"static_cluster_members" json:"static.cluster.members"`

	// Security & compression (server-side)
	UseTLS      bool   `yaml:"use_tls" json:"tls.enable"`
	TLSCertPath string `yaml:"tls_cert_path" json:"tls.cert_path"`
	TLSKeyPath  string `yaml:"tls_key_path" json:"tls.key_path"`
	Compression string `yaml:"compression" json:"compression"`
	TLSCert     tls.Certificate
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	configPath := flag.String("config", "", "Path to YAML/JSON config file")
	logLevelStr := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	flag.IntVar(&cfg.ServerPort, "port", 9000, "Relay server port")
	flag.BoolVar(&cfg.EnableExporter, "exporter", true, "Enable Prometheus exporter")
	flag.IntVar(&cfg.ExporterPort, "exporter-port", 9100, "Exporter port")

	flag.IntVar(&cfg.MaxBatchCount, "max-batch-count", 1000, "Maximum messages per egress batch")
	flag.IntVar(&cfg.MaxBatchBytes, "max-batch-bytes", 0, "Maximum bytes per egress batch (0=unbounded)")
	flag.IntVar(&cfg.FlushIntervalMS, "flush-interval-ms", 100, "Flush timer interval in milliseconds")
	flag.IntVar(&cfg.CooldownMinMS, "cooldown-min-ms", 1000, "Minimum retry cooldown in milliseconds")
	flag.IntVar(&cfg.CooldownMaxMS, "cooldown-max-ms", 5000, "Maximum retry cooldown in milliseconds")

	flag.IntVar(&cfg.ShardCount, "shards", 4, "Shards per database")
	flag.StringVar(&cfg.DataDir, "data-dir", "relay-logs", "Path for segment files")
	flag.IntVar(&cfg.SegmentSize, "segment-size", 1<<20, "Segment file size in bytes")

	flag.BoolVar(&cfg.EnableReplication, "replication", false, "Enable raft replicated storage")
	flag.StringVar(&cfg.NodeID, "node-id", "", "Stable node identity for the raft cluster")
	flag.StringVar(&cfg.AdvertisedHost, "advertised-host", "127.0.0.1", "Host advertised to raft peers")
	flag.IntVar(&cfg.RaftPort, "raft-port", 9200, "Raft transport port")
	flag.BoolVar(&cfg.BootstrapCluster, "bootstrap-cluster", false, "Bootstrap a static raft cluster")

	flag.BoolVar(&cfg.UseTLS, "tls", false, "Enable TLS")
	flag.StringVar(&cfg.TLSCertPath, "tls-cert", "", "TLS certificate path")
	flag.StringVar(&cfg.TLSKeyPath, "tls-key", "", "TLS key path")
	flag.StringVar(&cfg.Compression, "compression", "none", "Frame compression (none, gzip, lz4)")

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" && *configPath == "" {
		*configPath = envPath
	}

	flag.Parse()

	// Snapshot explicit command-line values before the file overwrites
	// the bound fields. Explicit flags win over the file.
	explicit := map[string]string{}
	flag.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return nil, err
		}
		for name, val := range explicit {
			if err := flag.Set(name, val); err != nil {
				util.Warn("failed to re-apply flag -%s: %v", name, err)
			}
		}
	}

	if _, ok := explicit["log-level"]; ok || *configPath == "" {
		cfg.LogLevel = util.ParseLogLevel(*logLevelStr)
	}
	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)

	if members := os.Getenv("STATIC_CLUSTER_MEMBERS"); members != "" && len(cfg.StaticClusterMembers) == 0 {
		cfg.StaticClusterMembers = strings.Split(members, ",")
	}

	if cfg.UseTLS {
		if cfg.TLSCertPath == "" || cfg.TLSKeyPath == "" {
			cfg.UseTLS = false
			return nil, fmt.Errorf("TLS enabled but certificate or key path is empty")
		}
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
		if err != nil {
			cfg.UseTLS = false
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		cfg.TLSCert = cert
	}

	return cfg, nil
}

func (cfg *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if strings.HasSuffix(path, ".json") {
		return json.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// Normalize clamps out-of-range values back to their defaults.
func (cfg *Config) Normalize() {
	if cfg.ServerPort <= 0 {
		cfg.ServerPort = 9000
	}
	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = 9100
	}

	if cfg.MaxBatchCount <= 0 {
		cfg.MaxBatchCount = 1000
	}
	if cfg.MaxBatchBytes < 0 {
		cfg.MaxBatchBytes = 0
	}
	if cfg.FlushIntervalMS <= 0 {
		cfg.FlushIntervalMS = 100
	}
	if cfg.CooldownMinMS <= 0 {
		cfg.CooldownMinMS = 1000
	}
	if cfg.CooldownMaxMS < cfg.CooldownMinMS {
		fmt.Fprintf(os.Stderr,
			"warning: CooldownMaxMS (%d ms) <= CooldownMinMS (%d ms), adjusting max to min+4000\n",
			cfg.CooldownMaxMS, cfg.CooldownMinMS,
		)
		cfg.CooldownMaxMS = cfg.CooldownMinMS + 4000
	}

	if cfg.ShardCount <= 0 {
		cfg.ShardCount = 4
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "relay-logs"
	}
	if cfg.SegmentSize < 1024 {
		cfg.SegmentSize = 1 << 20
	}

	if cfg.RaftPort <= 0 {
		cfg.RaftPort = 9200
	}

	switch cfg.Compression {
	case "none", "gzip", "lz4":
	default:
		cfg.Compression = "none"
	}
}
