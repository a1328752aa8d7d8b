package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tempestmod/tempest/automod"
	"github.com/tempestmod/tempest/automod/actions"
	"github.com/tempestmod/tempest/automod/audit"
	"github.com/tempestmod/tempest/automod/config"
	"github.com/tempestmod/tempest/automod/detectors"
	"github.com/tempestmod/tempest/automod/escalate"
	"github.com/tempestmod/tempest/automod/punish"
	"github.com/tempestmod/tempest/automod/score"
	"github.com/tempestmod/tempest/automod/windowstore"
	"github.com/tempestmod/tempest/gateway"
)

type Server struct {
	gatewayHost string
	logger      *slog.Logger
	engine      *automod.Engine
	scheduler   *punish.Scheduler
	rdb         *redis.Client
	concurrency int
}

type Config struct {
	DatabaseURL      string
	MaxDBConnections int
	RedisURL         string
	GatewayHost      string
	ActionsHost      string
	ActionsToken     string
	ActionsRateLimit int
	ScoreHost        string
	ScoreToken       string
	AuditWebhookURL  string
	EventConcurrency int
	Logger           *slog.Logger
}

func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if !strings.HasPrefix(cfg.GatewayHost, "ws") {
		return nil, fmt.Errorf("specified gateway host must include 'ws://' or 'wss://'")
	}

	db, err := setupDatabase(cfg.DatabaseURL, cfg.MaxDBConnections)
	if err != nil {
		return nil, err
	}

	baseConfigs, err := config.NewGormStore(db)
	if err != nil {
		return nil, fmt.Errorf("initializing config store: %w", err)
	}

	var windows windowstore.WindowStore
	var configs config.Store
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		// generic client, for cursor state
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}

		win, err := windowstore.NewRedisWindowStore(cfg.RedisURL, windowRetention)
		if err != nil {
			return nil, fmt.Errorf("initializing redis window store: %w", err)
		}
		windows = win
		configs = config.NewRedisCachedStore(baseConfigs, rdb, configCacheTTL)
	} else {
		windows = windowstore.NewMemWindowStore(windowRetention)
		configs = config.NewMemCachedStore(baseConfigs, 5_000, configCacheTTL)
	}

	notifier := &audit.MultiNotifier{
		Sinks: []audit.Notifier{audit.NewSlogNotifier(logger)},
	}
	if cfg.AuditWebhookURL != "" {
		logger.Info("configuring audit webhook notifier")
		notifier.Sinks = append(notifier.Sinks, audit.NewWebhookNotifier(cfg.AuditWebhookURL, logger))
	}

	actionClient := actions.NewHTTPClient(cfg.ActionsHost, cfg.ActionsToken, cfg.ActionsRateLimit)

	scheduler, err := punish.NewScheduler(db, actionClient, notifier, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing punishment scheduler: %w", err)
	}

	history, err := escalate.NewGormStore(db)
	if err != nil {
		return nil, fmt.Errorf("initializing violation history store: %w", err)
	}

	engine := automod.Engine{
		Logger:    logger,
		Config:    configs,
		Rules:     detectors.DefaultRules(),
		Windows:   windows,
		History:   history,
		Scheduler: scheduler,
		Actions:   actionClient,
		Notifier:  notifier,
	}

	if cfg.ScoreHost != "" {
		logger.Info("configuring content scoring service", "host", cfg.ScoreHost)
		engine.Scores = score.NewHTTPClient(cfg.ScoreHost, cfg.ScoreToken)
	}

	s := &Server{
		gatewayHost: cfg.GatewayHost,
		logger:      logger,
		engine:      &engine,
		scheduler:   scheduler,
		rdb:         rdb,
		concurrency: cfg.EventConcurrency,
	}

	return s, nil
}

func setupDatabase(dburl string, maxConnections int) (*gorm.DB, error) {
	var dial gorm.Dialector

	openConns := maxConnections
	if strings.HasPrefix(dburl, "sqlite://") {
		sqliteSuffix := dburl[len("sqlite://"):]
		// ensure the directory exists unless this is an in-memory db
		if !strings.Contains(sqliteSuffix, ":?") && sqliteSuffix != ":memory:" {
			os.MkdirAll(filepath.Dir(sqliteSuffix), os.ModePerm)
		}
		dial = sqlite.Open(sqliteSuffix)
		openConns = 1
	} else if strings.HasPrefix(dburl, "postgresql://") || strings.HasPrefix(dburl, "postgres://") {
		// can pass entire URL, with prefix, to gorm driver
		dial = postgres.Open(dburl)
	} else {
		return nil, fmt.Errorf("unsupported or unrecognized DATABASE_URL value")
	}

	gormLogger := slogGorm.New()

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(openConns)
	sqldb.SetMaxIdleConns(openConns)
	sqldb.SetConnMaxIdleTime(time.Hour)

	return db, nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

const (
	// retention must cover the longest detector window a community may set
	windowRetention = 15 * time.Minute
	configCacheTTL  = 2 * time.Minute
)

var cursorKey = "tempest/seq"

func (s *Server) ReadLastCursor(ctx context.Context) (int64, error) {
	// if redis isn't configured, just skip
	if s.rdb == nil {
		s.logger.Info("redis not configured, skipping cursor read")
		return 0, nil
	}

	val, err := s.rdb.Get(ctx, cursorKey).Int64()
	if err == redis.Nil {
		s.logger.Info("no pre-existing cursor in redis")
		return 0, nil
	}
	s.logger.Info("found prior subscription cursor seq in redis", "seq", val)
	return val, err
}

func (s *Server) PersistCursor(ctx context.Context, seq int64) error {
	// if redis isn't configured, just skip
	if s.rdb == nil {
		return nil
	}
	if seq <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, cursorKey, seq, 14*24*time.Hour).Err()
}

// runs in a loop, persisting the current cursor state every 5 seconds
func (s *Server) RunPersistCursor(ctx context.Context, consumer *gateway.Consumer) error {
	if s.rdb == nil {
		return nil
	}
	ticker := time.NewTicker(5 * time.Second)
	for {
		select {
		case <-ctx.Done():
			seq := consumer.LastSeq()
			if seq > 0 {
				s.logger.Info("persisting final cursor seq value", "seq", seq)
				if err := s.PersistCursor(context.Background(), seq); err != nil {
					s.logger.Error("failed to persist cursor", "err", err, "seq", seq)
				}
			}
			return nil
		case <-ticker.C:
			seq := consumer.LastSeq()
			if err := s.PersistCursor(ctx, seq); err != nil {
				s.logger.Error("failed to persist cursor", "err", err, "seq", seq)
			}
		}
	}
}

// Run re-arms pending punishment expiries, then consumes the gateway event
// stream until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	// recovery must finish before any new events are processed, so that a
	// punishment scheduled pre-restart cannot race its own expiry
	if err := s.scheduler.Recover(ctx); err != nil {
		return fmt.Errorf("recovering punishment schedule: %w", err)
	}

	cursor, err := s.ReadLastCursor(ctx)
	if err != nil {
		return err
	}

	pool := gateway.NewScheduler(s.concurrency, "events", s.engine.ProcessEvent)
	defer pool.Shutdown()

	consumer := &gateway.Consumer{
		Host:      s.gatewayHost,
		Scheduler: pool,
		Logger:    s.logger,
	}

	go func() {
		if err := s.RunPersistCursor(ctx, consumer); err != nil {
			s.logger.Error("cursor persistence loop failed", "err", err)
		}
	}()

	return consumer.Run(ctx, cursor)
}
