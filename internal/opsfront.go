package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tiffinstash/ops-front/internal/authflow"
	"github.com/tiffinstash/ops-front/internal/config"
	"github.com/tiffinstash/ops-front/internal/crypto"
	"github.com/tiffinstash/ops-front/internal/deliveries"
	"github.com/tiffinstash/ops-front/internal/idp"
	"github.com/tiffinstash/ops-front/internal/log"
	"github.com/tiffinstash/ops-front/internal/server"
	"github.com/tiffinstash/ops-front/internal/shopify"
	"github.com/tiffinstash/ops-front/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpsFront is the complete ops dashboard application
type OpsFront struct {
	config     config.Config
	httpServer *server.HTTPServer
	storage    storage.Storage
	dbPool     *pgxpool.Pool
}

// NewOpsFront builds the application with all dependencies wired
func NewOpsFront(ctx context.Context, cfg config.Config) (*OpsFront, error) {
	log.LogInfoWithFields("opsfront", "Building ops dashboard application", map[string]any{
		"baseURL":        cfg.Server.BaseURL,
		"ssoConfigured":  cfg.Auth.OAuthConfigured(),
		"shopify":        cfg.Shopify.Configured(),
		"deliveryDB":     cfg.Database.URL != "",
		"sessionStorage": string(cfg.Auth.Storage),
	})

	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	var provider idp.Provider
	if p := idp.NewGoogleProvider(cfg.Auth.GoogleClientID, string(cfg.Auth.GoogleClientSecret), cfg.Auth.GoogleRedirectURI); p != nil {
		provider = p
	} else {
		log.Logf("google sso not configured, password login only")
	}

	flow := authflow.New(provider, store, cfg.Auth)

	shopifyClient := shopify.NewClient(cfg.Shopify)

	var dbPool *pgxpool.Pool
	var deliveryStore *deliveries.Store
	if cfg.Database.URL != "" {
		if err := deliveries.RunMigrations(string(cfg.Database.URL)); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		dbPool, err = deliveries.NewPool(ctx, string(cfg.Database.URL))
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to connect to delivery db: %w", err)
		}
		deliveryStore = deliveries.NewStore(dbPool)
	} else {
		log.Logf("delivery database not configured, delivery endpoints disabled")
	}

	mux := buildHTTPHandler(cfg, flow, store, shopifyClient, deliveryStore)
	httpServer := server.NewHTTPServer(mux, cfg.Server.Addr)

	return &OpsFront{
		config:     cfg,
		httpServer: httpServer,
		storage:    store,
		dbPool:     dbPool,
	}, nil
}

// buildHTTPHandler assembles all routes and middleware
func buildHTTPHandler(
	cfg config.Config,
	flow *authflow.Flow,
	store storage.Storage,
	shopifyClient *shopify.Client,
	deliveryStore *deliveries.Store,
) http.Handler {
	authHandlers := server.NewAuthHandlers(flow, cfg.Server.Name, cfg.Auth.SessionTTL)
	orderHandlers := server.NewOrderHandlers(shopifyClient)
	deliveryHandlers := server.NewDeliveryHandlers(deliveryStore)
	dashboard := server.NewDashboardHandler(cfg.Server.Name, shopifyClient != nil)
	usersHandler := server.NewUsersHandler(store)

	requireSession := server.NewAuthMiddleware(flow)

	mux := http.NewServeMux()

	// Public surface
	mux.HandleFunc("GET /health", server.HealthHandler)
	mux.HandleFunc("GET /login", authHandlers.LoginPageHandler)
	mux.HandleFunc("GET /login/google", authHandlers.GoogleLoginHandler)
	mux.HandleFunc("GET /oauth/callback", authHandlers.CallbackHandler)
	mux.HandleFunc("POST /login/password", authHandlers.PasswordLoginHandler)
	mux.HandleFunc("POST /logout", authHandlers.LogoutHandler)

	// Protected pages and APIs
	mux.Handle("GET /{$}", requireSession(dashboard))

	protect := func(h http.HandlerFunc) http.Handler {
		return requireSession(h)
	}
	mux.Handle("GET /api/orders", protect(orderHandlers.OrdersHandler))
	mux.Handle("GET /api/orders/export", protect(orderHandlers.ExportHandler))
	mux.Handle("GET /api/orders/{id}", protect(deliveryHandlers.OrderDetailHandler))
	mux.Handle("GET /api/deliveries", protect(deliveryHandlers.ListHandler))
	mux.Handle("POST /api/skip-order", protect(deliveryHandlers.SkipOrderHandler))
	mux.Handle("POST /api/update-order", protect(deliveryHandlers.UpdateOrderHandler))
	mux.Handle("GET /api/master-data", protect(deliveryHandlers.MasterDataHandler))
	mux.Handle("POST /api/master-data", protect(deliveryHandlers.UpdateMasterRowHandler))
	mux.Handle("POST /api/master-data/upload", protect(deliveryHandlers.UploadMasterDataHandler))
	mux.Handle("GET /api/sellers", protect(deliveryHandlers.SellersHandler))
	mux.Handle("GET /api/users", protect(usersHandler.ListHandler))

	return server.ChainMiddleware(mux,
		server.NewRecoverMiddleware("server"),
		server.NewLoggerMiddleware("server"),
		server.NewCORSMiddleware([]string{cfg.Server.BaseURL}),
	)
}

// Run starts the application and blocks until shutdown
func (o *OpsFront) Run() error {
	log.LogInfoWithFields("opsfront", "Starting ops dashboard", map[string]any{
		"addr": o.config.Server.Addr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := o.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("opsfront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("opsfront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	case <-ctx.Done():
		shutdownReason = "context cancelled"
	}

	log.LogInfoWithFields("opsfront", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": "30s",
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := o.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("opsfront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	if o.dbPool != nil {
		o.dbPool.Close()
	}
	if err := o.storage.Close(); err != nil {
		log.LogWarnWithFields("opsfront", "Storage close error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("opsfront", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}

// setupStorage creates the session store based on configuration
func setupStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	if cfg.Auth.Storage == config.StorageFirestore {
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    cfg.Auth.GCPProject,
			"database":   cfg.Auth.FirestoreDatabase,
			"collection": cfg.Auth.FirestoreCollection,
		})
		encryptor, err := crypto.NewEncryptor([]byte(cfg.Auth.EncryptionKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
		firestoreStorage, err := storage.NewFirestoreStorage(
			ctx,
			cfg.Auth.GCPProject,
			cfg.Auth.FirestoreDatabase,
			cfg.Auth.FirestoreCollection,
			encryptor,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Firestore storage: %w", err)
		}
		return firestoreStorage, nil
	}

	log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
	return storage.NewMemoryStorage(), nil
}
