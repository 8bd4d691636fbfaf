package app

import (
	"context"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/config"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/httpserver"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/metrics"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/nomad"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/reconcile"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/redis"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/scheduler"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/status"
	redisstore "github.com/MrSnakeDoc/nomad-reconciler/internal/store/redis"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/utils"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/version"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	tracker     *status.Tracker
	loop        *scheduler.Loop
	server      *httpserver.Server
	redisClient *goredis.Client
	reports     *redisstore.ReportStore
}

// New wires the reconciler from cfg. Nothing talks to Nomad until Run.
// An unreachable redis only disables the report sink.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	m := metrics.New()

	client, err := nomad.New(nomad.Options{
		Endpoint:   cfg.Endpoint,
		Version:    cfg.APIVersion,
		Token:      cfg.Token,
		Timeout:    cfg.APITimeout,
		Verbose:    cfg.VerboseMode,
		Instrument: m.InstrumentTransport,
	}, log)
	if err != nil {
		return nil, err
	}

	engine := reconcile.NewEngine(client, log, m, reconcile.Options{
		SkipEmptyServiceRestart: cfg.SkipEmptyServiceRestart,
		StrictOrphanLookup:      cfg.StrictOrphanLookup,
	})

	a := &App{
		cfg:     cfg,
		logger:  log,
		tracker: status.NewTracker(),
	}
	sinks := []scheduler.ReportSink{a.tracker}

	if cfg.RedisAddr != "" {
		rc, err := redis.New(ctx, redis.DefaultConnectOptions(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), log)
		if err != nil {
			log.Warn("redis report sink disabled", logger.Error(err))
		} else {
			a.redisClient = rc
			a.reports = redisstore.NewReportStore(rc, cfg.ReportTTL)
			sinks = append(sinks, a.reports)
		}
	}

	a.loop = scheduler.NewLoop(engine, log, m, cfg.TickInterval, cfg.Oneshot, sinks...)

	// status server runs in continuous mode only
	if cfg.ListenAddr != "" && !cfg.Oneshot {
		d := deps.Deps{
			Logger:       log,
			StartTime:    time.Now(),
			Version:      version.Version,
			Commit:       version.Commit,
			BuildDate:    version.BuildDate,
			GoVersion:    version.GoVersion,
			TimeNow:      time.Now,
			AllowedCIDRs: cfg.AllowedCIDRs,
			Tracker:      a.tracker,
			Metrics:      m,
			Interval:     cfg.TickInterval,
		}
		if a.reports != nil {
			d.ReportStore = a.reports
		}
		a.server = httpserver.New(cfg, log, d)
	}

	return a, nil
}

// Run blocks until the scheduler loop terminates and returns its error.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting nomad reconciler",
		logger.String("version", version.Version),
		logger.String("commit", version.Commit),
		logger.String("go", version.GoVersion))
	a.logger.Debug("configuration",
		logger.String("endpoint", a.cfg.Endpoint),
		logger.String("api_version", a.cfg.APIVersion),
		logger.Bool("token", a.cfg.HasToken()),
		logger.Duration("interval", a.cfg.TickInterval),
		logger.Bool("oneshot", a.cfg.Oneshot),
		logger.Bool("skip_empty_service_restart", a.cfg.SkipEmptyServiceRestart),
		logger.Bool("strict_orphan_lookup", a.cfg.StrictOrphanLookup),
		logger.String("listen_addr", a.cfg.ListenAddr),
		logger.Bool("redis_sink", a.reports != nil))

	if a.server != nil {
		if err := a.server.Listen(); err != nil {
			a.close()
			return fmt.Errorf("status server: %w", err)
		}
		go func() {
			if err := a.server.Serve(); err != nil {
				a.logger.Error("status server stopped", logger.Error(err))
			}
		}()
	}

	err := a.loop.Run(ctx)

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if serr := a.server.Stop(shutdownCtx); serr != nil {
			a.logger.Warn("failed to stop status server", logger.Error(serr))
		}
		cancel()
	}
	a.close()

	return err
}

func (a *App) close() {
	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, a.logger, "redis")
	}
}

// Main loads the configuration, runs the reconciler until it terminates and
// returns the process exit code.
func Main(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		// no valid configuration yet: log with whatever level the env asks for
		log := logger.New(os.Getenv("LOGGER_LEVEL"), false)
		defer func() { _ = log.Sync() }()
		return Diagnose(log, err, os.Getenv("NOMAD_TOKEN") != "")
	}

	log := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer func() { _ = log.Sync() }()
	if !logger.ValidLevel(cfg.LogLevel) {
		log.Warn("unknown log level, using info", logger.String("level", cfg.LogLevel))
	}

	ctx, stop := WithSignals(ctx)
	defer stop()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return Diagnose(log, err, cfg.HasToken())
	}
	return Diagnose(log, a.Run(ctx), cfg.HasToken())
}
