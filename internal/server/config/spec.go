// Package config defines the server configuration structure.
package config

import (
	"time"

	"github.com/yndnr/autosave-go/internal/storage/health"
	"github.com/yndnr/autosave-go/internal/valuesource/modbus"
)

// ServerConfig is the root configuration for autosave-server.
type ServerConfig struct {
	Server      ServerSection      `koanf:"server"`
	Save        SaveSection        `koanf:"save"`
	Storage     StorageSection     `koanf:"storage"`
	Source      SourceSection      `koanf:"source"`
	Sets        []SetConfig        `koanf:"sets"`
	Definitions DefinitionsSection `koanf:"definitions"`
	Log         LogSection         `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP  HTTPConfig  `koanf:"http"`
	Local LocalConfig `koanf:"local"`
}

// HTTPConfig configures the HTTP admin server.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
	// RateLimit is the sustained requests per second accepted by the admin
	// API. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
	// TLSCertFile and TLSKeyFile enable HTTPS. Both or neither must be
	// set. The pair is reloaded when either file changes.
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
	// APIKeys are argon2id hashes of the bearer tokens accepted by the
	// admin API, as printed by autosave-server -hash-api-key. Empty leaves
	// the API open. The local socket never asks for a key.
	APIKeys []string `koanf:"api_keys"`
}

// LocalConfig configures the Unix socket admin listener.
type LocalConfig struct {
	// Socket is the socket path. Empty disables the listener.
	Socket string `koanf:"socket"`
}

// TLSEnabled reports whether the HTTP listener serves HTTPS.
func (c HTTPConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// SaveSection holds the scheduler tunables.
type SaveSection struct {
	Dir string `koanf:"dir"`
	// DefinitionPath is the list of directories searched for definitions.
	DefinitionPath       []string      `koanf:"definition_path"`
	AllowIncomplete      bool          `koanf:"allow_incomplete"`
	RetryInterval        time.Duration `koanf:"retry_interval"`
	MinCycle             time.Duration `koanf:"min_cycle"`
	CallbackTimeout      time.Duration `koanf:"callback_timeout"`
	SequencePeriod       time.Duration `koanf:"sequence_period"`
	SequenceFiles        int           `koanf:"sequence_files"`
	FetchTimeoutPerPoint time.Duration `koanf:"fetch_timeout_per_point"`
	QueueSize            int           `koanf:"queue_size"`
	QueueTimeout         time.Duration `koanf:"queue_timeout"`
	DatedBackups         bool          `koanf:"dated_backups"`
}

// StorageSection configures storage health and the save journal.
type StorageSection struct {
	IOErrorThreshold int                  `koanf:"io_error_threshold"`
	Remount          health.RemountConfig `koanf:"remount"`
	// JournalDir is where the save journal lives. Empty keeps it in memory.
	JournalDir  string `koanf:"journal_dir"`
	JournalKeep int    `koanf:"journal_keep"`
}

// SourceSection selects and configures the value source.
type SourceSection struct {
	Kind   string        `koanf:"kind"`
	Memory MemoryConfig  `koanf:"memory"`
	Modbus modbus.Config `koanf:"modbus"`
}

// MemoryConfig seeds the in-memory source. Values is a list rather than a
// map because point names may contain the koanf key delimiter.
type MemoryConfig struct {
	Values []PointValue `koanf:"values"`
}

// PointValue is one seeded point. Value holds the elements of an array
// point; a scalar has one.
type PointValue struct {
	Name  string   `koanf:"name"`
	Value []string `koanf:"value"`
}

// SetConfig is a save set defined at startup.
type SetConfig struct {
	Name          string        `koanf:"name"`
	Method        string        `koanf:"method"`
	Period        time.Duration `koanf:"period"`
	MonitorPeriod time.Duration `koanf:"monitor_period"`
	Trigger       string        `koanf:"trigger"`
	Macros        string        `koanf:"macros"`
}

// DefinitionsSection configures definition hot reload.
type DefinitionsSection struct {
	Watch bool `koanf:"watch"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
