package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/Passion-Never-Dissipate/candy-tools/cmd"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/api"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/carpet"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/config"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/events"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/logging"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/metrics"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/minecraft"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/process"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/query"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/region"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/systemd"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// HTTP API settings
	Port         string `help:"Address to listen on" short:"p" default:":8090" toml:"http.port" env:"HTTP_PORT"`
	CORSOrigin   string `help:"Access-Control-Allow-Origin value" default:"*" toml:"http.cors_origin" env:"HTTP_CORS_ORIGIN"`
	AuthUsername string `help:"Basic auth username (auth disabled when empty)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Managed server settings
	ServerCommand         string `help:"Command that starts the Minecraft server" default:"java -Xmx2G -jar server.jar nogui" toml:"server.command" env:"SERVER_COMMAND"`
	ServerWorkdir         string `help:"Working directory of the server process" default:"." toml:"server.workdir" env:"SERVER_WORKDIR"`
	ServerStopCommand     string `help:"Console command sent before SIGINT on shutdown" default:"stop" toml:"server.stop_command" env:"SERVER_STOP_COMMAND"`
	ServerGracefulTimeout string `help:"Time the server gets to exit before it is killed" default:"30s" toml:"server.graceful_timeout" env:"SERVER_GRACEFUL_TIMEOUT"`
	ServerRestartDelay    string `help:"Delay before restarting a crashed server (0 disables)" default:"10s" toml:"server.restart_delay" env:"SERVER_RESTART_DELAY"`

	// Query bridge settings
	QueryDefaultTimeout string `help:"Wait timeout when a request gives none" default:"5s" toml:"query.default_timeout" env:"QUERY_DEFAULT_TIMEOUT"`
	QueryMatchTimeout   string `help:"Upper bound for matching one pattern against one line" default:"100ms" toml:"query.match_timeout" env:"QUERY_MATCH_TIMEOUT"`

	// Carpet settings
	CarpetProbeTimeout  string `help:"Timeout of the carpet probe command" default:"5s" toml:"carpet.probe_timeout" env:"CARPET_PROBE_TIMEOUT"`
	CarpetDetectTimeout string `help:"How long start-up detection listens for the loader banner" default:"10s" toml:"carpet.detect_timeout" env:"CARPET_DETECT_TIMEOUT"`
	CarpetDetectOnStart bool   `help:"Detect carpet from start-up output" default:"true" toml:"carpet.detect_on_start" env:"CARPET_DETECT_ON_START"`

	// Region query settings
	RegionDefaultTimeout string `help:"Overall budget of a region query" default:"10s" toml:"region.default_timeout" env:"REGION_DEFAULT_TIMEOUT"`
	RegionConcurrency    int    `help:"Sub-commands in flight per region query phase" default:"4" toml:"region.concurrency" env:"REGION_CONCURRENCY"`
	RegionPresets        string `help:"File with named region queries" default:"regions.toml" toml:"region.presets" env:"REGION_PRESETS"`

	// Logging settings
	LoggingLevel       string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat      string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingHistorySize int    `help:"Log entries kept for /api/logs" default:"1000" toml:"logging.history_size" env:"LOGGING_HISTORY_SIZE"`
}

// loggingConfig merges the [logging.modules] table with the resolved options.
func loggingConfig(opts *Options) logging.Config {
	cfg := config.LoadLoggingConfig(opts.Config)
	cfg.Level = opts.LoggingLevel
	cfg.Format = opts.LoggingFormat
	cfg.HistorySize = opts.LoggingHistorySize
	return cfg
}

// duration parses a duration option, falling back to def.
func duration(logger *slog.Logger, name, value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("Invalid duration, using default", "option", name, "value", value, "default", def)
		return def
	}
	return d
}

// runServer keeps the managed server running until shutdown. A crashed
// server is restarted after delay; a non-positive delay disables that.
func runServer(proc *process.Process, delay time.Duration, logger *slog.Logger) {
	for {
		exitCode := proc.RunWithRestart()
		if proc.ShuttingDown() || delay <= 0 {
			logger.Info("Server process finished", "exit_code", exitCode)
			return
		}
		logger.Warn("Server exited unexpectedly, restarting", "exit_code", exitCode, "delay", delay)
		time.Sleep(delay)
		if proc.ShuttingDown() {
			return
		}
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(loggingConfig(opts))
		logger := logging.GetLogger("main")

		eventBus := events.New()
		appCtx, cancelApp := context.WithCancel(context.Background())

		// The process is the command sink; the service is the process's line consumer.
		var proc *process.Process
		svc := query.NewService(query.ServiceOptions{
			Sink:           query.SinkFunc(func(command string) error { return proc.Execute(command) }),
			Publisher:      eventBus,
			Logger:         logging.GetLogger("query"),
			MatchTimeout:   duration(logger, "query.match_timeout", opts.QueryMatchTimeout, 0),
			DefaultTimeout: duration(logger, "query.default_timeout", opts.QueryDefaultTimeout, query.DefaultTimeout),
		})
		guard := query.NewGuard(svc.Registry(), query.GuardOptions{
			Publisher: eventBus,
			Logger:    logging.GetLogger("query"),
		})

		carpetCap := carpet.New(carpet.Options{
			Waiter:        svc,
			Publisher:     eventBus,
			Logger:        logging.GetLogger("carpet"),
			ProbeTimeout:  duration(logger, "carpet.probe_timeout", opts.CarpetProbeTimeout, carpet.DefaultProbeTimeout),
			DetectTimeout: duration(logger, "carpet.detect_timeout", opts.CarpetDetectTimeout, carpet.DefaultDetectTimeout),
		})
		// Carpet may be added or removed across a restart or plugin reload.
		guard.OnTransition(func(query.Transition) { carpetCap.Reset() })

		aggregator := region.NewAggregator(region.Options{
			Waiter:         svc,
			Capability:     carpetCap,
			Logger:         logging.GetLogger("region"),
			Concurrency:    opts.RegionConcurrency,
			DefaultTimeout: duration(logger, "region.default_timeout", opts.RegionDefaultTimeout, region.DefaultTimeout),
		})

		feed := minecraft.NewFeed(svc, logging.GetLogger("minecraft"))
		proc = process.NewProcess("minecraft", opts.ServerCommand, logging.GetLogger("server"), feed)
		proc.SetWorkDir(opts.ServerWorkdir)
		proc.SetStopCommand(opts.ServerStopCommand)
		proc.SetGracefulTimeout(duration(logger, "server.graceful_timeout", opts.ServerGracefulTimeout, 30*time.Second))
		proc.SetLogParser(logging.GetLogger("minecraft"), minecraft.LogLevel)
		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		proc.SetStateCallback(func(_ string, oldState, newState process.State, err error) {
			notifier.Status("minecraft server %s", newState)
			switch newState {
			case process.StateRunning:
				guard.Start("server running")
				if opts.CarpetDetectOnStart {
					// Listeners are registered before the first output line is delivered.
					carpetCap.StartDetection(appCtx)
				}
			case process.StateStopping, process.StateIdle, process.StateError:
				if guard.Running() {
					guard.Stop("server " + string(newState))
				}
			}

			ev := events.ServerStateChangedEvent{
				OldState:  string(oldState),
				NewState:  string(newState),
				Timestamp: time.Now().Format(time.RFC3339),
			}
			if err != nil {
				ev.Error = err.Error()
			}
			eventBus.Publish(ev)
		})

		presets, presetErr := config.LoadRegionPresets(opts.RegionPresets)
		if presetErr != nil {
			logger.Warn("Failed to load region presets", "file", opts.RegionPresets, "error", presetErr)
		}
		presetStore := config.NewPresetStore(presets)

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			CORSOrigin:        opts.CORSOrigin,
			Bridge:            svc,
			Lifecycle:         guard,
			Server:            proc,
			Carpet:            carpetCap,
			Regions:           aggregator,
			Presets:           presetStore,
			EventBus:          eventBus,
			PrometheusHandler: metrics.Handler(),
		})
		if opts.AuthUsername == "" {
			logger.Warn("Basic auth disabled; anyone reaching the API can run console commands")
		}

		// Config hot-reload: logging levels apply in place, a new server command restarts the server.
		configWatcher := config.NewConfigWatcher(
			opts.Config,
			func(path string) (Options, error) {
				next := *opts
				next.Config = path
				err := config.LoadConfig(&next, cli.Root())
				return next, err
			},
			logging.GetLogger("config"),
			config.WithDebounce[Options](1500*time.Millisecond),
		)
		configWatcher.OnReload(func(next Options) {
			logging.Initialize(loggingConfig(&next))
		})
		configWatcher.OnReload(func(next Options) {
			if next.ServerCommand != proc.GetCommand() {
				logger.Info("Server command changed, requesting restart")
				proc.RequestRestart(next.ServerCommand)
			}
		})

		presetWatcher := config.NewConfigWatcher(
			opts.RegionPresets,
			config.LoadRegionPresets,
			logging.GetLogger("config"),
		)
		presetWatcher.OnReload(func(next map[string]config.RegionQuery) {
			presetStore.Set(next)
			logger.Info("Region presets reloaded", "count", len(next))
		})

		serverDone := make(chan struct{})

		hooks.OnStart(func() {
			for _, w := range []interface{ Start() error }{configWatcher, presetWatcher} {
				if startErr := w.Start(); startErr != nil {
					logger.Warn("Failed to start config watcher, hot-reload disabled", "error", startErr)
				}
			}

			logger.Info("Starting Minecraft server", "command", opts.ServerCommand, "workdir", opts.ServerWorkdir)
			go func() {
				defer close(serverDone)
				runServer(proc, duration(logger, "server.restart_delay", opts.ServerRestartDelay, 10*time.Second), logging.GetLogger("server"))
			}()

			notifier.Ready()
			go notifier.Watchdog(appCtx)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			notifier.Stopping()

			// Release blocked callers before the server goes away.
			guard.Stop("shutdown")
			cancelApp()
			proc.Shutdown()

			graceful := duration(logger, "server.graceful_timeout", opts.ServerGracefulTimeout, 30*time.Second)
			select {
			case <-serverDone:
			case <-time.After(graceful + 10*time.Second):
				logger.Error("Server process did not stop in time")
			}

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			_ = configWatcher.Stop()
			_ = presetWatcher.Stop()
		})
	})

	root := cli.Root()
	root.Use = "candy-tools"
	root.Short = "Synchronous request/response bridge over a Minecraft server console"
	root.Version = version.String()

	root.AddCommand(
		cmd.CreateExecCmd(),
		cmd.CreateListenCmd(),
		cmd.CreateCarpetCmd(),
		cmd.CreateRegionsCmd(),
		cmd.CreateStatusCmd(),
	)

	cli.Run()
}
