package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/adapter/awsadapter"
	"github.com/phasemirror/dissonance-oracle/internal/adapter/gcpadapter"
	"github.com/phasemirror/dissonance-oracle/internal/adapter/local"
	"github.com/phasemirror/dissonance-oracle/internal/adapter/ociadapter"
	"github.com/phasemirror/dissonance-oracle/internal/calibration"
	"github.com/phasemirror/dissonance-oracle/internal/config"
	"github.com/phasemirror/dissonance-oracle/internal/evaluator"
	"github.com/phasemirror/dissonance-oracle/internal/nonce"
	"github.com/phasemirror/dissonance-oracle/internal/oracle"
	"github.com/phasemirror/dissonance-oracle/internal/reputation"
	"github.com/phasemirror/dissonance-oracle/internal/rules"
	"github.com/phasemirror/dissonance-oracle/internal/semantic"
	"github.com/phasemirror/dissonance-oracle/pkg/logger"
	"github.com/phasemirror/dissonance-oracle/pkg/metrics"
)

// app bundles every long-lived collaborator cmd/oracle's subcommands
// need, assembled once from a loaded config. Mirrors the teacher's
// cmd/server/main.go wiring order: logging, then storage, then the
// HTTP-facing layer — here, the Oracle itself takes the HTTP layer's
// place since transport is out of scope.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *metrics.MetricsRegistry
	providers adapter.ProviderSet
	nonceCache *nonce.Cache
	ruleRegistry      *evaluator.Registry
	calibrationEngine *calibration.Engine
	asyncUpdater      *calibration.AsyncUpdater
	tracerProvider    *sdktrace.TracerProvider
	oracle    *oracle.Oracle
}

// buildApp resolves configPath into a fully wired app.
func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("cmd/oracle: loading config: %w", err)
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	slog.SetDefault(log)

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.App.Name),
		attribute.String("service.version", cfg.App.Version),
		attribute.String("deployment.environment", cfg.App.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("cmd/oracle: building trace resource: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tracerProvider)

	registry := metrics.NewMetricsRegistry("dissonance")

	providers, err := adapter.NewProviderSet(cfg.Provider.AdapterProvider(), adapter.Builders{
		Local: func() (adapter.ProviderSet, error) { return local.New(cfg.Local.DataDir) },
		AWS: func() (adapter.ProviderSet, error) {
			return awsadapter.New(ctx, awsadapter.Config{
				Region:                cfg.Cloud.Region,
				Endpoint:              cfg.Cloud.Endpoint,
				FPTableName:           cfg.Cloud.FPTableName,
				ConsentTableName:      cfg.Cloud.ConsentTableName,
				BlockCounterTableName: cfg.Cloud.BlockCounterTableName,
				CalibrationTableName:  cfg.Cloud.CalibrationTableName,
				BaselineBucket:        cfg.Cloud.BaselineBucket,
				RetryMaxAttempts:      cfg.Cloud.RetryMaxAttempts,
			})
		},
		GCP: func() (adapter.ProviderSet, error) {
			return gcpadapter.New(ctx, gcpadapter.Config{
				ProjectID:              cfg.Cloud.ProjectID,
				FPCollection:           cfg.Cloud.FPTableName,
				ConsentCollection:      cfg.Cloud.ConsentTableName,
				BlockCounterCollection: cfg.Cloud.BlockCounterTableName,
				CalibrationCollection:  cfg.Cloud.CalibrationTableName,
				BaselineBucket:         cfg.Cloud.BaselineBucket,
				RetryMaxAttempts:       cfg.Cloud.RetryMaxAttempts,
			})
		},
		Oracle: func() (adapter.ProviderSet, error) {
			return ociadapter.New(ctx, ociadapter.Config{
				CompartmentID:          cfg.Cloud.CompartmentID,
				VaultID:                cfg.Cloud.VaultID,
				VaultKeyID:             cfg.Cloud.VaultKeyID,
				ObjectStorageNamespace: cfg.Cloud.ObjectStorageNamespace,
				FPTable:                cfg.Cloud.FPTableName,
				ConsentTable:           cfg.Cloud.ConsentTableName,
				BlockCounterTable:      cfg.Cloud.BlockCounterTableName,
				CalibrationTable:       cfg.Cloud.CalibrationTableName,
				BaselineBucket:         cfg.Cloud.BaselineBucket,
				RetryMaxAttempts:       cfg.Cloud.RetryMaxAttempts,
			})
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cmd/oracle: resolving provider set: %w", err)
	}

	nonceCache := nonce.NewCache(
		nonce.WithTTL(cfg.Nonce.TTL),
		nonce.WithLogger(log),
	)
	if err := nonceCache.LoadNonce(ctx, providers.SecretStore.GetNonce, cfg.Cloud.NonceParameterName); err != nil {
		log.Warn("initial nonce load failed, starting with an empty cache", "error", err)
	}

	var repEngine reputation.Engine
	if cfg.Reputation.BaseURL != "" {
		var repOpts []reputation.Option
		if cfg.Reputation.RateLimit > 0 {
			repOpts = append(repOpts, reputation.WithRateLimit(cfg.Reputation.RateLimit, cfg.Reputation.Burst))
		}
		repEngine = reputation.New(cfg.Reputation.BaseURL, cfg.Reputation.Timeout, repOpts...)
	}

	var asyncUpdater *calibration.AsyncUpdater
	var calibrationEngine *calibration.Engine
	if repEngine != nil {
		asyncUpdater = calibration.NewAsyncUpdater(calibration.AsyncUpdaterConfig{
			Engine: repEngine,
			Logger: log,
			Metrics: registry.Calibration(),
		})
		asyncUpdater.Start(ctx)

		calibrationEngine = calibration.New(
			providers.FPStore,
			providers.CalibrationStore,
			repEngine,
			asyncUpdater,
			calibration.Config{
				ByzantineFilterPercentile: cfg.Calibration.ByzantineFilterPercentile,
				ZScoreThreshold:           cfg.Calibration.ZScoreThreshold,
				KAnonymityThreshold:       cfg.Calibration.KAnonymityThreshold,
			},
			registry.Calibration(),
		)
	} else {
		log.Warn("reputation.base_url not set, calibration pipeline disabled")
	}

	reg := evaluator.NewRegistry()
	rules.RegisterDefaults(reg)
	eval := evaluator.New(reg,
		evaluator.WithMaxConcurrency(cfg.Evaluator.MaxConcurrency),
		evaluator.WithRuleTimeout(cfg.Evaluator.RuleTimeout),
		evaluator.WithLogger(log),
		evaluator.WithMetrics(registry.Evaluator()),
	)

	var windowCacheRedis *redis.Client
	if cfg.Cache.RedisAddr != "" {
		windowCacheRedis = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	}
	windowCache, err := semantic.NewWindowCache(cfg.Cache.LocalSize, windowCacheRedis, cfg.Cache.TTL, log)
	if err != nil {
		return nil, fmt.Errorf("cmd/oracle: building window cache: %w", err)
	}

	fpService := semantic.NewFPService(providers.FPStore, log, semantic.WithWindowCache(windowCache))
	blockService := semantic.NewBlockCounterService(providers.BlockCounter, cfg.Decision.CircuitBreakerThreshold)

	o := oracle.New(eval, fpService, blockService, nonceCache,
		oracle.WithLogger(log),
		oracle.WithMetrics(registry),
		oracle.WithRedactionPatterns(cfg.RedactionPatterns()),
	)

	return &app{
		cfg:               cfg,
		logger:            log,
		registry:          registry,
		providers:         providers,
		nonceCache:        nonceCache,
		ruleRegistry:      reg,
		calibrationEngine: calibrationEngine,
		asyncUpdater:      asyncUpdater,
		tracerProvider:    tracerProvider,
		oracle:            o,
	}, nil
}

// shutdown stops any background work the app started.
func (a *app) shutdown(ctx context.Context) {
	if a.asyncUpdater != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		a.asyncUpdater.Stop(stopCtx)
	}
	if a.tracerProvider != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("tracer provider shutdown failed", "error", err)
		}
	}
}
