// cmd/intake-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"application-intake/internal/common/auth"
	"application-intake/internal/common/aws"
	"application-intake/internal/common/camunda"
	"application-intake/internal/common/config"
	"application-intake/internal/common/database"
	"application-intake/internal/common/logger"
	"application-intake/internal/common/observability"
	"application-intake/internal/common/validation"
	"application-intake/internal/drafts"
	"application-intake/internal/flow"
	"application-intake/internal/models"
	"application-intake/internal/server"
	"application-intake/internal/store"
	"application-intake/internal/submission"
	loadapplication "application-intake/internal/workers/intake/load-application"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// closers run in reverse order on shutdown.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting intake server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("store", cfg.Store.Backend),
	)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()
	var cleanup closers
	defer cleanup.run()

	// --- Flows ---
	registry, loaded, err := flow.LoadRegistry(models.Role(cfg.Flow.BaselineRole), cfg.Flow.DefinitionsDir)
	if err != nil {
		zapLog.Fatal("flow definitions invalid", zap.Error(err))
	}
	zapLog.Info("Flows registered", zap.Strings("fromFiles", loaded), zap.String("baseline", cfg.Flow.BaselineRole))

	// --- Draft store ---
	draftStore, err := openStore(ctx, cfg, zapLog, &cleanup)
	if err != nil {
		zapLog.Fatal("draft store unavailable", zap.Error(err))
	}

	validator, err := validation.NewDraftValidator()
	if err != nil {
		zapLog.Fatal("draft schema invalid", zap.Error(err))
	}

	// --- Zeebe ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		zeebe, err = connectZeebe(cfg, zapLog)
		if err != nil {
			zapLog.Fatal("Zeebe unavailable", zap.Error(err))
		}
		cleanup.add(func() { zeebe.Close() })
	}

	// --- Submission hooks ---
	hooks, err := buildHooks(ctx, cfg, zeebe, zapLog)
	if err != nil {
		zapLog.Fatal("submission hooks failed", zap.Error(err))
	}
	dispatcher := submission.NewDispatcher(config.GetDuration(cfg.Notifications.HookTimeout), log, hooks...)
	zapLog.Info("Submission hooks configured", zap.Strings("hooks", dispatcher.Hooks()))

	svc := drafts.NewService(draftStore, validator, dispatcher, obs, config.GetDuration(cfg.Store.Timeout), log)

	// --- Job workers ---
	if wcfg, ok := cfg.Workers[loadapplication.TaskType]; ok && wcfg.Enabled {
		handler := loadapplication.NewHandler(
			&loadapplication.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			svc, log,
		)
		w := zeebe.OpenWorker(loadapplication.TaskType, wcfg.MaxJobsActive, config.GetDuration(wcfg.Timeout), handler, log)
		cleanup.add(w.Stop)
	}

	// --- Token decoding ---
	var decoder auth.TokenDecoder
	if cfg.Server.RequireAuth {
		decoder = buildDecoder(cfg, log)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.New(svc, decoder, registry, log).SetupRoutes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("API listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}
	svc.Wait()

	zapLog.Info("Intake server stopped gracefully")
}

func openStore(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, cleanup *closers) (store.DraftStore, error) {
	opts := store.Options{StrictVersions: cfg.Store.StrictVersions}

	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		cleanup.add(func() { pg.Close() })

		s := store.NewPostgresStore(pg.GetDB(), opts)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		zapLog.Info("PostgreSQL connected successfully")
		return s, nil

	case config.StoreBackendRedis:
		var rc *database.RedisClient
		err := retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return nil, err
		}
		cleanup.add(func() { rc.Close() })
		zapLog.Info("Redis connected successfully")
		return store.NewRedisStore(rc.GetClient(), cfg.Store.KeyPrefix, config.GetDuration(cfg.Store.DraftTTL), opts), nil

	default:
		zapLog.Warn("Using in-memory draft store, drafts are lost on restart")
		return store.NewMemoryStore(opts), nil
	}
}

func connectZeebe(cfg *config.Config, zapLog *zap.Logger) (*camunda.Client, error) {
	var zeebe *camunda.Client
	err := retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: cfg.Camunda.Plaintext,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			RetryConfig: &camunda.RetryConfig{
				MaxRetries: cfg.Camunda.MaxRetries,
				BaseDelay:  config.GetDuration(cfg.Camunda.RetryBaseDelayMS),
				MaxDelay:   10 * time.Second,
			},
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		return nil, err
	}
	zapLog.Info("Zeebe client initialized", zap.String("gateway", cfg.Camunda.BrokerAddress))
	return zeebe, nil
}

func buildHooks(ctx context.Context, cfg *config.Config, zeebe *camunda.Client, zapLog *zap.Logger) ([]submission.Hook, error) {
	var hooks []submission.Hook

	if zeebe != nil {
		hooks = append(hooks, submission.NewZeebeHook(zeebe, cfg.Camunda.SubmitProcessID))
	}

	if cfg.Notifications.Email.Enabled || cfg.Notifications.Topic.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return nil, err
		}
		if cfg.Notifications.Email.Enabled {
			ses := aws.NewSESClient(awsCfg, cfg.Notifications.Email.FromEmail)
			hooks = append(hooks, submission.NewEmailHook(ses, cfg.Notifications.Email.Subject))
		}
		if cfg.Notifications.Topic.Enabled {
			sns := aws.NewSNSClient(awsCfg, cfg.Notifications.Topic.TopicARN)
			hooks = append(hooks, submission.NewTopicHook(sns))
		}
	}

	if cfg.Database.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, submission.NewIndexHook(es.Client, cfg.Database.Elasticsearch.Index))
	}

	return hooks, nil
}

func buildDecoder(cfg *config.Config, log logger.Logger) auth.TokenDecoder {
	if cfg.Auth.TokenMode == config.TokenModeKeycloak {
		kc := auth.NewKeycloakClient(
			cfg.Auth.Keycloak.URL,
			cfg.Auth.Keycloak.Realm,
			cfg.Auth.Keycloak.ClientID,
			cfg.Auth.Keycloak.ClientSecret,
		)
		return auth.NewIntrospectionDecoder(kc, log)
	}
	return auth.NewClaimsDecoder()
}
