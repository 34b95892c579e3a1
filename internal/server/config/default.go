// Package config defines the server configuration structure.
package config

import (
	"github.com/yndnr/autosave-go/internal/core/engine"
	"github.com/yndnr/autosave-go/internal/storage/health"
	"github.com/yndnr/autosave-go/internal/valuesource/modbus"
)

// Source kinds.
const (
	SourceMemory = "memory"
	SourceModbus = "modbus"
)

// Default configuration values.
const (
	DefaultHTTPAddr  = "127.0.0.1:5090"
	DefaultRateLimit = 20
	DefaultRateBurst = 40

	DefaultSaveDir       = "/var/lib/autosave"
	DefaultDefinitionDir = "/etc/autosave/req"
	DefaultJournalDir    = "/var/lib/autosave/journal"
	DefaultJournalKeep   = 100

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	ec := engine.DefaultConfig()
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:      DefaultHTTPAddr,
				RateLimit: DefaultRateLimit,
				RateBurst: DefaultRateBurst,
			},
		},
		Save: SaveSection{
			Dir:                  DefaultSaveDir,
			DefinitionPath:       []string{DefaultDefinitionDir},
			AllowIncomplete:      ec.AllowIncomplete,
			RetryInterval:        ec.RetryInterval,
			MinCycle:             ec.MinCycle,
			SequencePeriod:       ec.SequencePeriod,
			SequenceFiles:        ec.SequenceFiles,
			FetchTimeoutPerPoint: ec.FetchTimeoutPerPoint,
			QueueSize:            ec.QueueSize,
			QueueTimeout:         ec.QueueTimeout,
		},
		Storage: StorageSection{
			IOErrorThreshold: health.DefaultThreshold,
			Remount: health.RemountConfig{
				Interval: health.DefaultRemountInterval,
			},
			JournalDir:  DefaultJournalDir,
			JournalKeep: DefaultJournalKeep,
		},
		Source: SourceSection{
			Kind: SourceMemory,
			Modbus: modbus.Config{
				Timeout:      modbus.DefaultTimeout,
				PollInterval: modbus.DefaultPollInterval,
			},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
