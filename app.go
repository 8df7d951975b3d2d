package main

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/config"
	"github.com/kendall-kelly/consulting-portal-api/controllers"
	"github.com/kendall-kelly/consulting-portal-api/middleware"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/routes"
	"github.com/kendall-kelly/consulting-portal-api/services"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// application is the wired server plus everything that needs closing on shutdown
type application struct {
	router  *gin.Engine
	closers []func() error
}

// Close releases clients in reverse order of creation
func (a *application) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}

// authSetup is the authentication middleware and the matching profile source
type authSetup struct {
	authenticate gin.HandlerFunc
	identity     services.IdentityProvider
}

// newApplication wires stores, storage, services and routes from cfg.
// A non-nil auth replaces the provider configured in cfg.
func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger, auth *authSetup) (*application, error) {
	app := &application{}
	fail := func(err error) (*application, error) {
		return nil, multierr.Append(err, app.Close())
	}

	var fbApp *firebase.App
	if cfg.UsesFirebase() {
		var err error
		fbApp, err = config.InitFirebase(ctx, cfg)
		if err != nil {
			return fail(err)
		}
	}

	store, err := openStore(ctx, cfg, fbApp, app)
	if err != nil {
		return fail(err)
	}

	blobs, err := services.NewBlobStorage(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize blob storage: %w", err))
	}
	if gcs, ok := blobs.(*services.GCSBlobStorage); ok {
		app.closers = append(app.closers, gcs.Close)
	}

	var publisher services.EventPublisher = services.NoopEventPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := services.NewKafkaEventPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, logger)
		if err != nil {
			return fail(err)
		}
		publisher = kafka
		app.closers = append(app.closers, kafka.Close)
		logger.Info("Publishing order events to Kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaOrderTopic))
	}

	if auth == nil {
		auth, err = buildAuth(ctx, cfg, fbApp, logger)
		if err != nil {
			return fail(err)
		}
	}

	orderService := services.NewOrderService(store, blobs, publisher, logger, services.OrderServiceConfig{
		Policy:                     models.NewTransitionPolicy(cfg.OrderTransitionMode),
		PaymentFailureCancelsOrder: cfg.PaymentFailureCancelsOrder,
	})
	documentService := services.NewDocumentService(orderService, store, blobs, logger, cfg.DownloadStagger)
	messageService := services.NewMessageService(store, orderService, blobs, logger)
	userService := services.NewUserService(store, blobs, logger)
	catalogService := services.NewCatalogService(store, services.NewImageService(blobs, logger), logger)

	handlers := routes.Handlers{
		Health:    controllers.NewHealthController(store, cfg.DBDriver),
		Orders:    controllers.NewOrderController(orderService, cfg.DestructiveConfirmation),
		Documents: controllers.NewDocumentController(documentService),
		Messages:  controllers.NewMessageController(messageService),
		Users:     controllers.NewUserController(userService, auth.identity, logger, cfg.DestructiveConfirmation),
		Catalog:   controllers.NewCatalogController(catalogService, cfg.DestructiveConfirmation),
	}
	if local, ok := blobs.(*services.LocalBlobStorage); ok {
		handlers.Uploads = controllers.NewUploadController(local)
	}

	app.router = routes.SetupRouter(handlers, routes.Options{
		Logger:       logger,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		Authenticate: auth.authenticate,
		Users:        userService,
		ChatLimiter:  middleware.NewUserRateLimiter(cfg.ChatRatePerMinute),
	})
	app.closers = append(app.closers, publisher.Close)
	return app, nil
}

// openStore connects the configured persistence backend
func openStore(ctx context.Context, cfg *config.Config, fbApp *firebase.App, app *application) (services.Store, error) {
	if cfg.DBDriver == "firestore" {
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Firestore client: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		return services.NewFirestoreStore(client), nil
	}

	if err := config.ConnectDatabase(); err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := config.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		app.closers = append(app.closers, sqlDB.Close)
	}
	return services.NewGormStore(db), nil
}

// buildAuth sets up token verification for the configured provider
func buildAuth(ctx context.Context, cfg *config.Config, fbApp *firebase.App, logger *zap.Logger) (*authSetup, error) {
	if cfg.AuthProvider == "firebase" {
		client, err := fbApp.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Firebase Auth client: %w", err)
		}
		return &authSetup{
			authenticate: middleware.EnsureFirebaseToken(client, logger),
			identity:     services.NewFirebaseIdentityProvider(client),
		}, nil
	}

	authenticate, err := middleware.EnsureValidToken(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the JWT validator: %w", err)
	}
	return &authSetup{
		authenticate: authenticate,
		identity:     services.NewAuth0Service(cfg),
	}, nil
}
