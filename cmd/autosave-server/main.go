package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/yndnr/autosave-go/internal/core/definition"
	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/core/engine"
	"github.com/yndnr/autosave-go/internal/infra/buildinfo"
	"github.com/yndnr/autosave-go/internal/infra/confloader"
	"github.com/yndnr/autosave-go/internal/infra/shutdown"
	"github.com/yndnr/autosave-go/internal/infra/tlsroots"
	"github.com/yndnr/autosave-go/internal/server/config"
	"github.com/yndnr/autosave-go/internal/server/httpserver"
	"github.com/yndnr/autosave-go/internal/server/localserver"
	"github.com/yndnr/autosave-go/internal/server/reloader"
	"github.com/yndnr/autosave-go/internal/storage/health"
	"github.com/yndnr/autosave-go/internal/storage/journal"
	"github.com/yndnr/autosave-go/internal/telemetry/logger"
	"github.com/yndnr/autosave-go/internal/telemetry/metric"
	"github.com/yndnr/autosave-go/internal/telemetry/status"
	"github.com/yndnr/autosave-go/internal/valuesource"
	"github.com/yndnr/autosave-go/internal/valuesource/memory"
	"github.com/yndnr/autosave-go/internal/valuesource/modbus"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		hashKey     = flag.Bool("hash-api-key", false, "Read an API key from stdin and print its hash for server.http.api_keys")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("autosave-server %s\n", buildinfo.String())
		return nil
	}
	if *hashKey {
		return hashAPIKey(os.Stdin, os.Stdout)
	}

	loader, cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting autosave-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	source, err := newSource(cfg, log)
	if err != nil {
		return fmt.Errorf("init value source: %w", err)
	}

	metrics := metric.NewRegistry()
	board := status.NewBoard()

	jrnl, err := journal.Open(journal.Config{
		Dir:  cfg.Storage.JournalDir,
		Keep: cfg.Storage.JournalKeep,
	}, log.With("component", "journal"))
	if err != nil {
		_ = source.Close()
		return fmt.Errorf("open journal: %w", err)
	}
	jrnl.RegisterMetrics(metrics.Registerer())

	resolver := definition.NewFileResolver(cfg.Save.DefinitionPath...)
	eng, err := engine.NewEngine(cfg.EngineConfig(), engine.Deps{
		Source:    source,
		Resolver:  resolver,
		Health:    health.NewMonitor(cfg.HealthConfig(), health.SyscallMounter{}, log.With("component", "health")),
		Journal:   jrnl,
		Publisher: status.Multi{board, metrics},
		Logger:    log.With("component", "engine"),
	})
	if err != nil {
		_ = jrnl.Close()
		_ = source.Close()
		return fmt.Errorf("init engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdownHandler := shutdown.NewHandler(shutdownTimeout, log)
	// abort unwinds whatever hooks are registered so far.
	abort := func(err error) error {
		shutdownHandler.Trigger(err.Error())
		return errors.Join(err, shutdownHandler.Wait(ctx))
	}

	// Registered first, run last.
	shutdownHandler.OnShutdown("journal", func(context.Context) error { return jrnl.Close() })
	shutdownHandler.OnShutdown("value source", func(context.Context) error { return source.Close() })
	shutdownHandler.OnShutdown("engine", func(context.Context) error {
		eng.Shutdown()
		return nil
	})

	go func() {
		if err := eng.Run(ctx); err != nil {
			log.Error("scheduler exited", "error", err)
		}
		shutdownHandler.Trigger("scheduler stopped")
	}()

	defineSets(ctx, eng, cfg.Sets, log)

	if cfg.Definitions.Watch {
		r, err := reloader.New(eng, resolver, cfg.Save.DefinitionPath, reloader.WithLogger(log.With("component", "reloader")))
		if err != nil {
			log.Warn("definition watch disabled", "error", err)
		} else {
			go r.Run(ctx)
		}
	}

	if *configFile != "" {
		if stop, err := watchConfig(loader, *configFile, eng, log); err != nil {
			log.Warn("config watch disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error { return stop() })
		}
	}

	routerCfg := httpserver.RouterConfig{
		Engine:      eng,
		Board:       board,
		Storage:     eng.Health(),
		Metrics:     metrics,
		Logger:      log.With("component", "http"),
		RateLimit:   cfg.Server.HTTP.RateLimit,
		RateBurst:   cfg.Server.HTTP.RateBurst,
		APIKeys:     cfg.Server.HTTP.APIKeys,
		EnableAudit: cfg.Log.Level == "debug",
	}
	router := httpserver.NewRouter(&routerCfg)
	if len(routerCfg.APIKeys) == 0 {
		log.Warn("server.http.api_keys is empty, the HTTP admin API accepts unauthenticated requests")
	}
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router)
	shutdownHandler.OnShutdown("http", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})
	serve := httpServer.ListenAndServe
	if cfg.Server.HTTP.TLSEnabled() {
		tlsCfg, stop, err := watchKeyPair(cfg.Server.HTTP, log)
		if err != nil {
			return abort(fmt.Errorf("init tls: %w", err))
		}
		shutdownHandler.OnShutdown("certificate watcher", func(context.Context) error { return stop() })
		serve = func() error { return httpServer.ListenAndServeTLS(tlsCfg) }
	}

	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr, "tls", cfg.Server.HTTP.TLSEnabled())
		if err := serve(); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger("http server failed")
		}
	}()

	if path := cfg.Server.Local.Socket; path != "" {
		// Socket file permissions guard the local listener.
		localCfg := routerCfg
		localCfg.APIKeys = nil
		local := localserver.New(path, httpserver.NewRouter(&localCfg))
		if err := local.Listen(); err != nil {
			return abort(fmt.Errorf("listen on %s: %w", path, err))
		}
		shutdownHandler.OnShutdown("local socket", func(ctx context.Context) error { return local.Shutdown(ctx) })
		go func() {
			log.Info("local socket listening", "path", path)
			if err := local.Serve(); err != nil {
				log.Error("local socket error", "error", err)
			}
		}()
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// hashAPIKey reads one key from in and writes its argon2id hash to out.
func hashAPIKey(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return errors.New("read key: empty input")
	}
	hash, err := domain.HashAPIKey(key)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*confloader.Loader, *config.ServerConfig, error) {
	cfg := config.Default()

	var opts []confloader.Option
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return loader, cfg, nil
}

type closingSource interface {
	valuesource.Source
	io.Closer
}

func newSource(cfg *config.ServerConfig, log *slog.Logger) (closingSource, error) {
	switch cfg.Source.Kind {
	case config.SourceModbus:
		return modbus.New(cfg.Source.Modbus, log.With("component", "modbus"))
	default:
		return memory.New(cfg.Source.Memory.Initial()), nil
	}
}

// defineSets registers the sets listed in the configuration. A set that
// cannot be defined is logged and skipped.
func defineSets(ctx context.Context, eng *engine.Engine, sets []config.SetConfig, log *slog.Logger) {
	for _, sc := range sets {
		m, sched, err := sc.Parse()
		if err != nil {
			log.Error("invalid set", "set", sc.Name, "error", err)
			continue
		}
		res, err := eng.Define(ctx, sc.Name, m, sched, sc.Macros)
		if err != nil {
			log.Error("set not defined", "set", sc.Name, "error", err)
			continue
		}
		log.Info("set configured", "set", sc.Name, "method", sc.Method, "status", res.Status.String())
	}
}

// watchConfig applies log level and scheduler tunables when the config
// file changes. Sets, sources and listeners need a restart.
func watchConfig(loader *confloader.Loader, path string, eng *engine.Engine, log *slog.Logger) (func() error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		fresh := config.Default()
		if err := loader.Reload(fresh); err != nil {
			log.Error("config reload failed", "error", err)
			return
		}
		if err := config.Verify(fresh); err != nil {
			log.Error("config reload rejected", "error", err)
			return
		}
		if err := logger.SetLevel(fresh.Log.Level); err != nil {
			log.Error("log level not applied", "error", err)
		}
		eng.SetConfig(fresh.EngineConfig())
		log.Info("configuration reloaded", "log_level", fresh.Log.Level)
	})
	w.StartAsync()
	return w.Stop, nil
}

// watchKeyPair loads the HTTPS certificate and reloads it when the files
// change.
func watchKeyPair(cfg config.HTTPConfig, log *slog.Logger) (*tls.Config, func() error, error) {
	kp, err := tlsroots.LoadKeyPair(cfg.TLSCertFile, cfg.TLSKeyFile, log.With("component", "tls"))
	if err != nil {
		return nil, nil, err
	}
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, nil, err
	}
	if err := kp.Watch(w); err != nil {
		_ = w.Stop()
		return nil, nil, err
	}
	w.StartAsync()
	return kp.ServerConfig(), w.Stop, nil
}
