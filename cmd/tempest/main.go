package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "tempest",
		Usage:   "community policy enforcement daemon",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string (sqlite:// or postgres://)",
			Value:   "sqlite://data/tempest/tempest.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection string for windows, config cache, and stream cursor (optional; in-process stores if unset)",
			EnvVars: []string{"TEMPEST_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "gateway-host",
			Usage:   "websocket host of the event gateway to subscribe to",
			Value:   "ws://localhost:8700",
			EnvVars: []string{"TEMPEST_GATEWAY_HOST"},
		},
		&cli.StringFlag{
			Name:    "actions-host",
			Usage:   "base URL of the action executor service",
			Value:   "http://localhost:8701",
			EnvVars: []string{"TEMPEST_ACTIONS_HOST"},
		},
		&cli.StringFlag{
			Name:    "actions-token",
			Usage:   "bearer token for the action executor service",
			EnvVars: []string{"TEMPEST_ACTIONS_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "score-host",
			Usage:   "base URL of the content scoring service (optional)",
			EnvVars: []string{"TEMPEST_SCORE_HOST"},
		},
		&cli.StringFlag{
			Name:    "score-token",
			Usage:   "bearer token for the content scoring service",
			EnvVars: []string{"TEMPEST_SCORE_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "audit-webhook-url",
			Usage:   "webhook URL for audit notifications (optional)",
			EnvVars: []string{"TEMPEST_AUDIT_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":8702",
			EnvVars: []string{"TEMPEST_METRICS_LISTEN"},
		},
		&cli.IntFlag{
			Name:    "event-concurrency",
			Usage:   "number of concurrent event processing workers",
			Value:   40,
			EnvVars: []string{"TEMPEST_EVENT_CONCURRENCY"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.IntFlag{
			Name:    "actions-rate-limit",
			Usage:   "max punishment apply/reverse requests per second to the action executor",
			Value:   20,
			EnvVars: []string{"TEMPEST_ACTIONS_RATE_LIMIT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		// Enable OTLP HTTP exporter
		// For relevant environment variables:
		// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
		// At a minimum, you need to set
		// OTEL_EXPORTER_OTLP_ENDPOINT=http://localhost:4318
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			slog.Info("setting up trace exporter", "endpoint", ep)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			exp, err := otlptracehttp.New(ctx)
			if err != nil {
				log.Fatal("failed to create trace exporter", "error", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := exp.Shutdown(ctx); err != nil {
					slog.Error("failed to shutdown trace exporter", "error", err)
				}
			}()

			tp := tracesdk.NewTracerProvider(
				tracesdk.WithBatcher(exp),
				tracesdk.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceNameKey.String("tempest"),
					attribute.String("env", os.Getenv("ENVIRONMENT")),         // DataDog
					attribute.String("environment", os.Getenv("ENVIRONMENT")), // Others
					attribute.Int64("ID", 1),
				)),
			)
			otel.SetTracerProvider(tp)
		}

		srv, err := NewServer(Config{
			DatabaseURL:      cctx.String("database-url"),
			MaxDBConnections: cctx.Int("max-db-connections"),
			RedisURL:         cctx.String("redis-url"),
			GatewayHost:      cctx.String("gateway-host"),
			ActionsHost:      cctx.String("actions-host"),
			ActionsToken:     cctx.String("actions-token"),
			ActionsRateLimit: cctx.Int("actions-rate-limit"),
			ScoreHost:        cctx.String("score-host"),
			ScoreToken:       cctx.String("score-token"),
			AuditWebhookURL:  cctx.String("audit-webhook-url"),
			EventConcurrency: cctx.Int("event-concurrency"),
			Logger:           logger,
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run enforcement service: %w", err)
		}
		return nil
	},
}
