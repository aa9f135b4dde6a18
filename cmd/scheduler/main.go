package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attenda/scheduling/internal/adapters/cache"
	"github.com/attenda/scheduling/internal/adapters/database"
	"github.com/attenda/scheduling/internal/adapters/events"
	"github.com/attenda/scheduling/internal/adapters/payments"
	"github.com/attenda/scheduling/internal/application/services"
	"github.com/attenda/scheduling/internal/domain/providers"
	"github.com/attenda/scheduling/internal/domain/repositories"
	"github.com/attenda/scheduling/internal/infrastructure/clients/postgres"
	"github.com/attenda/scheduling/internal/infrastructure/clients/redis"
	"github.com/attenda/scheduling/internal/infrastructure/observability"
	"github.com/attenda/scheduling/pkg/config"
	"github.com/attenda/scheduling/pkg/secrets"
)

func main() {
	// Pull secrets from Vault into the environment before reading config
	vaultResult, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv())
	if err != nil {
		log.Printf("Warning: Vault secrets unavailable: %v", err)
	} else if vaultResult.Enabled {
		log.Printf("Loaded %d secrets from Vault (%d already set)", vaultResult.Loaded, vaultResult.Skipped)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.App.ServiceName, cfg.App.Environment)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	log.Println("PostgreSQL client initialized successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Continue without Redis - the service works without caching
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	// Initialize event bus for schedule notifications
	var eventBus providers.EventBus
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		log.Println("Event bus initialized successfully")
	} else {
		log.Println("Event bus disabled (Redis not available)")
	}

	// Initialize adapters
	baseCommitmentAdapter := database.NewCommitmentAdapter(pgClient, metrics)

	// Wrap with the day-view cache when Redis is available
	var commitmentStore repositories.CommitmentStore
	if cacheProvider != nil {
		commitmentStore = database.NewCachedCommitmentAdapter(baseCommitmentAdapter, cacheProvider, metrics)
		log.Println("Commitment store wrapped with day-view caching layer")
	} else {
		commitmentStore = baseCommitmentAdapter
		log.Println("Commitment store running without cache (Redis unavailable)")
	}

	providerAdapter := database.NewProviderAdapter(pgClient)

	var paymentProvider providers.PaymentProvider
	if cfg.Payments.BaseURL == "" || cfg.Payments.APIKey == "" {
		log.Println("Warning: payment gateway not configured; using mock payment provider")
		paymentProvider = payments.NewMockAdapter()
	} else {
		paymentProvider = payments.NewGatewayAdapter(cfg.Payments.BaseURL, cfg.Payments.APIKey)
	}

	// Initialize services
	notificationService := services.NewNotificationService(eventBus)

	scheduleService := services.NewScheduleService(
		commitmentStore,
		providerAdapter,
		notificationService,
		metrics,
	)

	cancellationService := services.NewCancellationService(
		commitmentStore,
		providerAdapter,
		paymentProvider,
		notificationService,
	)

	// Initialize cache invalidation service
	var cacheInvalidationService *services.CacheInvalidationService
	if cacheProvider != nil && eventBus != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := cacheInvalidationService.Start(); err != nil {
			log.Printf("Warning: Failed to start cache invalidation service: %v", err)
		} else {
			log.Println("Cache invalidation service started successfully")
		}
	}

	// Start cache warming for the configured tenants
	if cacheProvider != nil && len(cfg.App.WarmTenants) > 0 {
		warmingService := services.NewCacheWarmingService(
			commitmentStore,
			providerAdapter,
			cfg.App.WarmTenants,
		)
		go warmingService.StartPeriodicWarming(ctx, 5*time.Minute)
		log.Printf("Cache warming started for %d tenants (refreshes every 5 minutes)", len(cfg.App.WarmTenants))
	}

	log.Printf("Scheduler service started (env: %s)", cfg.App.Environment)

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Scheduler service shutting down...")

	// Stop cache invalidation service
	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}

	// Close event bus
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}

	log.Println("Scheduler service stopped")

	// Suppress unused variable warnings (the API layer wires these)
	_ = scheduleService
	_ = cancellationService
}
