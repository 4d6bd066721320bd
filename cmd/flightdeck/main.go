package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flightdeck-social/flightdeck/autopilot"
	"github.com/flightdeck-social/flightdeck/autopilot/outcomestore"
	"github.com/flightdeck-social/flightdeck/platform"
	"github.com/flightdeck-social/flightdeck/util"

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
		Name:    "flightdeck",
		Usage:   "social autopilot scheduling daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "platform-host",
			Usage:   "scheme, hostname, and port of the content platform API",
			Value:   "http://localhost:9600",
			EnvVars: []string{"PLATFORM_HOST"},
		},
		&cli.IntFlag{
			Name:    "platform-rate-limit",
			Usage:   "max requests per second to the platform, across all users",
			Value:   2,
			EnvVars: []string{"PLATFORM_RATE_LIMIT"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
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
			Value:   "sqlite://data/flightdeck/flightdeck.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for outcome counters; in-memory store when empty",
			EnvVars: []string{"FLIGHTDECK_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the admin API",
			Value:   ":4100",
			EnvVars: []string{"FLIGHTDECK_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":4101",
			EnvVars: []string{"FLIGHTDECK_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "admin-jwt-secret",
			Usage:   "HS256 secret for admin API bearer tokens; auth is disabled when empty",
			EnvVars: []string{"FLIGHTDECK_ADMIN_JWT_SECRET"},
		},
		&cli.DurationFlag{
			Name:    "tick-interval",
			Usage:   "scheduler loop period per session",
			Value:   30 * time.Second,
			EnvVars: []string{"FLIGHTDECK_TICK_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "min-delay",
			Usage:   "lower bound of the randomized pre-dispatch delay",
			Value:   1 * time.Minute,
			EnvVars: []string{"FLIGHTDECK_MIN_DELAY"},
		},
		&cli.DurationFlag{
			Name:    "max-delay",
			Usage:   "upper bound of the randomized pre-dispatch delay",
			Value:   6 * time.Minute,
			EnvVars: []string{"FLIGHTDECK_MAX_DELAY"},
		},
		&cli.DurationFlag{
			Name:    "min-spacing",
			Usage:   "floor between consecutive executed actions per user",
			Value:   10 * time.Minute,
			EnvVars: []string{"FLIGHTDECK_MIN_SPACING"},
		},
		&cli.DurationFlag{
			Name:    "call-timeout",
			Usage:   "timeout per external platform call",
			Value:   60 * time.Second,
			EnvVars: []string{"FLIGHTDECK_CALL_TIMEOUT"},
		},
		&cli.BoolFlag{
			Name:    "resume",
			Usage:   "resume sessions persisted as active at startup",
			Value:   true,
			EnvVars: []string{"FLIGHTDECK_RESUME"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Enable OTLP HTTP exporter
		// For relevant environment variables:
		// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
		// At a minimum, you need to set
		// OTEL_EXPORTER_OTLP_ENDPOINT=http://localhost:4318
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			logger.Info("setting up trace exporter", "endpoint", ep)
			exp, err := otlptracehttp.New(ctx)
			if err != nil {
				return fmt.Errorf("failed to create trace exporter: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := exp.Shutdown(ctx); err != nil {
					logger.Error("failed to shutdown trace exporter", "err", err)
				}
			}()

			tp := tracesdk.NewTracerProvider(
				tracesdk.WithBatcher(exp),
				tracesdk.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceNameKey.String("flightdeck"),
					attribute.String("env", os.Getenv("ENVIRONMENT")),
				)),
			)
			otel.SetTracerProvider(tp)
		}

		db, err := util.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}
		store, err := autopilot.NewGormStore(db)
		if err != nil {
			return fmt.Errorf("initializing session store: %w", err)
		}

		var outcomes outcomestore.Store
		if redisURL := cctx.String("redis-url"); redisURL != "" {
			rs, err := outcomestore.NewRedisStore(redisURL)
			if err != nil {
				return fmt.Errorf("initializing redis outcome store: %w", err)
			}
			outcomes = rs
		} else {
			logger.Info("redis not configured, using in-memory outcome store")
			outcomes = outcomestore.NewMemStore()
		}

		pc := platform.NewAPIClient(
			cctx.String("platform-host"),
			func(ctx context.Context, userID string) (string, error) {
				cred, err := store.GetCredential(ctx, userID)
				if err != nil {
					return "", err
				}
				return cred.AccessToken, nil
			},
			&platform.APIClientOptions{
				RequestsPerSecond: cctx.Int("platform-rate-limit"),
			},
		)

		engine, err := autopilot.NewEngine(autopilot.EngineConfig{
			Logger:      logger,
			Platform:    pc,
			Store:       store,
			Credentials: store,
			Outcomes:    outcomes,
			Safety: &autopilot.SafetyGate{
				MinDelay:   cctx.Duration("min-delay"),
				MaxDelay:   cctx.Duration("max-delay"),
				MinSpacing: cctx.Duration("min-spacing"),
			},
			TickInterval: cctx.Duration("tick-interval"),
			CallTimeout:  cctx.Duration("call-timeout"),
		})
		if err != nil {
			return err
		}

		if cctx.Bool("resume") {
			n, err := engine.ResumeSessions(ctx)
			if err != nil {
				return fmt.Errorf("resuming sessions: %w", err)
			}
			if n > 0 {
				logger.Info("resumed sessions", "count", n)
			}
		}

		srv := NewServer(engine, logger, Config{
			JWTSecret: []byte(cctx.String("admin-jwt-secret")),
		})

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				logger.Error("failed to start metrics endpoint", "err", err)
				os.Exit(-1)
			}
		}()

		go func() {
			if err := srv.RunAPI(cctx.String("bind")); err != nil {
				logger.Error("admin API server stopped", "err", err)
			}
		}()

		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down admin API", "err", err)
		}
		engine.Shutdown(shutdownCtx)
		return nil
	},
}
