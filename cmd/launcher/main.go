package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deployra/launcher/internal/config"
	"github.com/deployra/launcher/internal/events"
	"github.com/deployra/launcher/internal/handlers/deployments"
	"github.com/deployra/launcher/internal/logger"
	"github.com/deployra/launcher/internal/metrics"
	"github.com/deployra/launcher/internal/orchestrator"
	"github.com/deployra/launcher/internal/packager"
	"github.com/deployra/launcher/internal/registry"
	"github.com/deployra/launcher/internal/routes"
	"github.com/deployra/launcher/internal/server"
	"github.com/deployra/launcher/internal/websocket"
	"github.com/deployra/launcher/pkg/build"
	"github.com/deployra/launcher/pkg/cloud"
	"github.com/deployra/launcher/pkg/compute"
	"github.com/deployra/launcher/pkg/github"
	"github.com/deployra/launcher/pkg/invoke"
	"github.com/deployra/launcher/pkg/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.New(cfg.LogLevel, cfg.LogPath)
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := cloud.LoadConfig(ctx, cloud.Options{
		Region:          cfg.AWSRegion,
		EndpointURL:     cfg.AWSEndpointURL,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		SessionToken:    cfg.AWSSessionToken,
		MaxAttempts:     cfg.AWSMaxAttempts,
	})
	if err != nil {
		log.Fatal("failed to load AWS configuration", zap.Error(err))
	}

	provisioner := compute.NewFromConfig(awsCfg)
	reg := registry.New(registry.NewMemoryStore(), provisioner, cfg.DeleteTerminationMode, log)
	m := metrics.New()

	g, gctx := errgroup.WithContext(ctx)

	// Status fan-out: through Redis when configured so every replica's
	// websocket clients see every deployment, in-process otherwise.
	hub := websocket.NewHub(log.Named("websocket"))
	var publisher events.Publisher = events.NewLocalPublisher(hub)
	if cfg.RedisEnabled() {
		client, err := events.NewRedisClient(ctx, cfg)
		if err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		publisher = events.NewRedisPublisher(client)
		g.Go(func() error {
			events.Subscribe(gctx, client, hub, log.Named("events"))
			return nil
		})
	}

	deps := orchestrator.Dependencies{
		Registry:  reg,
		Packager:  packager.New(packager.GitCloner{}, cfg.WorkDir, cfg.CloneTimeout, log.Named("packager")),
		Store:     storage.NewFromConfig(awsCfg, cfg.ArtifactBucket),
		Compute:   provisioner,
		Builder:   build.NewFromConfig(awsCfg),
		Invoker:   invoke.NewFromConfig(awsCfg, cfg.DeployFunction),
		Publisher: publisher,
		Metrics:   m,
		Log:       log,
	}
	if cfg.GitHubPreflight {
		deps.Preflight = github.NewClient(ctx, cfg.GitHubToken)
	}
	orch := orchestrator.New(deps, orchestrator.SettingsFromConfig(cfg))

	app := routes.NewApp(routes.Options{
		CorsOrigins: cfg.CorsOrigins,
		Log:         log,
		Metrics:     m,
		Deployments: deployments.New(orch, log),
		Socket:      websocket.NewHandler(hub, orch.Get, log.Named("websocket")),
	})

	ln, err := server.Listen(":"+cfg.Port, cfg.ProxyProtocol)
	if err != nil {
		log.Fatal("failed to open listener", zap.Error(err))
	}

	log.Info("server starting",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Environment),
		zap.String("region", cfg.AWSRegion),
		zap.Bool("proxy_protocol", cfg.ProxyProtocol),
		zap.Bool("redis", cfg.RedisEnabled()),
		zap.Bool("github_preflight", cfg.GitHubPreflight))

	g.Go(func() error {
		return app.Listener(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", zap.Error(err))
	}
}
