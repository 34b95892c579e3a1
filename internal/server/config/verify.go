// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/core/engine"
	"github.com/yndnr/autosave-go/internal/storage/backup"
	"github.com/yndnr/autosave-go/internal/storage/health"
	"github.com/yndnr/autosave-go/internal/telemetry/logger"
)

// Verify validates the configuration and creates the save directory.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifySave(&cfg.Save); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifySource(&cfg.Source); err != nil {
		return err
	}
	for i := range cfg.Sets {
		if _, _, err := cfg.Sets[i].Parse(); err != nil {
			return fmt.Errorf("sets[%d]: %w", i, err)
		}
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.RateLimit < 0 {
		return errors.New("server.http.rate_limit must not be negative")
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for i, key := range cfg.HTTP.APIKeys {
		if err := domain.CheckAPIKeyHash(key); err != nil {
			return fmt.Errorf("server.http.api_keys[%d]: %w", i, err)
		}
	}
	return nil
}

func verifySave(cfg *SaveSection) error {
	if cfg.Dir == "" {
		return errors.New("save.dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return errors.New("cannot create save directory: " + err.Error())
	}
	if len(cfg.DefinitionPath) == 0 {
		return errors.New("save.definition_path is required")
	}
	if cfg.SequenceFiles < 1 || cfg.SequenceFiles > backup.MaxSequenceFiles {
		return fmt.Errorf("save.sequence_files must be between 1 and %d", backup.MaxSequenceFiles)
	}
	if cfg.RetryInterval < 0 || cfg.MinCycle < 0 || cfg.CallbackTimeout < 0 {
		return errors.New("save intervals must not be negative")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.IOErrorThreshold < 1 {
		return errors.New("storage.io_error_threshold must be at least 1")
	}
	r := cfg.Remount
	if (r.Source == "") != (r.Target == "") {
		return errors.New("storage.remount needs both source and target")
	}
	if cfg.JournalKeep < 0 {
		return errors.New("storage.journal_keep must not be negative")
	}
	return nil
}

func verifySource(cfg *SourceSection) error {
	switch cfg.Kind {
	case SourceMemory:
		for i, v := range cfg.Memory.Values {
			if v.Name == "" {
				return fmt.Errorf("source.memory.values[%d]: name is required", i)
			}
		}
		return nil
	case SourceModbus:
		if cfg.Modbus.Endpoint == "" {
			return errors.New("source.modbus.endpoint is required")
		}
		for i, tag := range cfg.Modbus.Tags {
			if tag.Name == "" {
				return fmt.Errorf("source.modbus.tags[%d]: name is required", i)
			}
		}
		return nil
	default:
		return fmt.Errorf("source.kind %q: want %s or %s", cfg.Kind, SourceMemory, SourceModbus)
	}
}

// Parse returns the trigger method and schedule of a startup set.
func (s SetConfig) Parse() (domain.Method, domain.Schedule, error) {
	if s.Name == "" {
		return 0, domain.Schedule{}, errors.New("name is required")
	}
	m, err := domain.ParseMethod(s.Method)
	if err != nil {
		return 0, domain.Schedule{}, fmt.Errorf("%s: %w", s.Name, err)
	}
	sched := domain.Schedule{Period: s.Period, MonitorPeriod: s.MonitorPeriod, TriggerPoint: s.Trigger}
	switch {
	case m.Has(domain.MethodPeriodic) && s.Period <= 0:
		return 0, sched, fmt.Errorf("%s: periodic needs a period", s.Name)
	case m.Any(domain.MethodMonitored) && s.MonitorPeriod <= 0:
		return 0, sched, fmt.Errorf("%s: monitored needs a monitor_period", s.Name)
	case m.Has(domain.MethodTriggered) && s.Trigger == "":
		return 0, sched, fmt.Errorf("%s: triggered needs a trigger point", s.Name)
	}
	return m, sched, nil
}

// Initial returns the seeded values keyed by point name.
func (m MemoryConfig) Initial() map[string]domain.Value {
	out := make(map[string]domain.Value, len(m.Values))
	for _, v := range m.Values {
		out[v.Name] = domain.Value(v.Value)
	}
	return out
}

// EngineConfig converts the save section to engine tunables.
func (c *ServerConfig) EngineConfig() engine.Config {
	s := c.Save
	return engine.Config{
		Dir:                  s.Dir,
		AllowIncomplete:      s.AllowIncomplete,
		RetryInterval:        s.RetryInterval,
		MinCycle:             s.MinCycle,
		CallbackTimeout:      s.CallbackTimeout,
		SequencePeriod:       s.SequencePeriod,
		SequenceFiles:        s.SequenceFiles,
		FetchTimeoutPerPoint: s.FetchTimeoutPerPoint,
		QueueSize:            s.QueueSize,
		QueueTimeout:         s.QueueTimeout,
		DatedBackups:         s.DatedBackups,
	}
}

// HealthConfig converts the storage section to monitor settings.
func (c *ServerConfig) HealthConfig() health.Config {
	return health.Config{
		Threshold: c.Storage.IOErrorThreshold,
		Remount:   c.Storage.Remount,
	}
}
