package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves a field unset.
const (
	DefaultListenAddr  = ":8080"
	DefaultMetricsAddr = ":8081"

	DefaultPollInterval      = 1800 * time.Second
	DefaultSocketIdleTimeout = 120 * time.Second
	DefaultUploadIdleTimeout = 45 * time.Second

	DefaultDurability       = 2
	DefaultMaxObjectCopies  = 6
	DefaultMaxContentLength = int64(5 * 1024 * 1024 * 1024)
	DefaultMaxUserHeaders   = 4 * 1024

	DefaultThrottleSlots = 1000
	DefaultThrottleQueue = 2000

	DefaultStorageConnectTimeout = 2 * time.Second
	DefaultStorageConnectRetries = 2
)

// Config is the full gateway configuration, loaded from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Placement PlacementConfig `yaml:"placement"`
	Objects   ObjectsConfig   `yaml:"objects"`
	Throttle  ThrottleConfig  `yaml:"throttle"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the HTTP front door settings.
type ServerConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	MetricsAddr       string        `yaml:"metrics_addr"`
	TLSCertFile       string        `yaml:"tls_cert_file"`
	TLSKeyFile        string        `yaml:"tls_key_file"`
	SocketIdleTimeout time.Duration `yaml:"socket_idle_timeout"`
}

// PlacementConfig locates the upstream placement service and the on-disk
// snapshot cache used as a bootstrap fallback.
type PlacementConfig struct {
	URL          string        `yaml:"url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	CachePath    string        `yaml:"cache_path"`
}

// ObjectsConfig bounds object writes.
type ObjectsConfig struct {
	DefaultDurability  int           `yaml:"default_durability"`
	MaxObjectCopies    int           `yaml:"max_object_copies"`
	MaxContentLength   int64         `yaml:"max_content_length"`
	UploadIdleTimeout  time.Duration `yaml:"upload_idle_timeout"`
	MaxUserHeaderBytes int           `yaml:"max_user_header_bytes"`
}

// ThrottleConfig bounds concurrent admission.
type ThrottleConfig struct {
	Slots int `yaml:"slots"`
	Queue int `yaml:"queue"`
}

// StorageConfig configures the storage-node agent and the built-in
// inventory chooser.
type StorageConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ConnectRetries int           `yaml:"connect_retries"`

	// NodeCapacity is the free space assumed per inventory node, in
	// bytes. Writes larger than this fail with 507. 0 disables the check.
	NodeCapacity int64        `yaml:"node_capacity"`
	Inventory    []SharkEntry `yaml:"inventory"`
}

// SharkEntry is one storage node in the built-in inventory.
type SharkEntry struct {
	Datacenter string `yaml:"datacenter"`
	StorageID  string `yaml:"storage_id"`
	Address    string `yaml:"address"`
}

// AuthConfig lists the accounts known to the built-in authenticator.
// Production deployments replace this with the external signature service.
type AuthConfig struct {
	Accounts []AccountEntry `yaml:"accounts"`
}

// AccountEntry is one account for the built-in token authenticator.
type AccountEntry struct {
	Login string   `yaml:"login"`
	UUID  string   `yaml:"uuid"`
	Token string   `yaml:"token"`
	Roles []string `yaml:"roles"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads and validates a config file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = DefaultMetricsAddr
	}
	if c.Server.SocketIdleTimeout <= 0 {
		c.Server.SocketIdleTimeout = DefaultSocketIdleTimeout
	}
	if c.Placement.PollInterval <= 0 {
		c.Placement.PollInterval = DefaultPollInterval
	}
	if c.Objects.DefaultDurability <= 0 {
		c.Objects.DefaultDurability = DefaultDurability
	}
	if c.Objects.MaxObjectCopies <= 0 {
		c.Objects.MaxObjectCopies = DefaultMaxObjectCopies
	}
	if c.Objects.MaxContentLength <= 0 {
		c.Objects.MaxContentLength = DefaultMaxContentLength
	}
	if c.Objects.UploadIdleTimeout <= 0 {
		c.Objects.UploadIdleTimeout = DefaultUploadIdleTimeout
	}
	if c.Objects.MaxUserHeaderBytes <= 0 {
		c.Objects.MaxUserHeaderBytes = DefaultMaxUserHeaders
	}
	if c.Throttle.Slots <= 0 {
		c.Throttle.Slots = DefaultThrottleSlots
	}
	if c.Throttle.Queue <= 0 {
		c.Throttle.Queue = DefaultThrottleQueue
	}
	if c.Storage.ConnectTimeout <= 0 {
		c.Storage.ConnectTimeout = DefaultStorageConnectTimeout
	}
	if c.Storage.ConnectRetries < 0 {
		c.Storage.ConnectRetries = DefaultStorageConnectRetries
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects configs the gateway cannot start with.
func (c *Config) Validate() error {
	if c.Placement.URL == "" {
		return fmt.Errorf("placement.url is required")
	}
	if c.Objects.DefaultDurability > c.Objects.MaxObjectCopies {
		return fmt.Errorf("objects.default_durability (%d) exceeds objects.max_object_copies (%d)",
			c.Objects.DefaultDurability, c.Objects.MaxObjectCopies)
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return fmt.Errorf("server.tls_cert_file and server.tls_key_file must be set together")
	}
	return nil
}
