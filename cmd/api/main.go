package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/hongslab/aga-care/backend/internal/config"
	"github.com/hongslab/aga-care/backend/internal/handler"
	"github.com/hongslab/aga-care/backend/internal/repository"
	"github.com/hongslab/aga-care/backend/internal/service/ai"
	"github.com/hongslab/aga-care/backend/internal/service/identity"
	"github.com/hongslab/aga-care/backend/internal/service/session"
	"github.com/hongslab/aga-care/backend/internal/service/syncer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, err := newDocumentStore(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("failed to initialize family store: %v", err)
	}

	identitySvc := identity.NewService()
	synchronizer := syncer.New(store)

	// Initialize the session manager when the AI key is present; the
	// router keeps read and profile routes alive without it.
	var manager *session.Manager
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel()
		if err != nil {
			log.Fatalf("failed to initialize chat model: %v", err)
		}
		aiSvc, err := ai.NewService(ctx, chatModel)
		if err != nil {
			log.Fatalf("failed to initialize AI service: %v", err)
		}
		manager, err = session.NewManager(synchronizer, aiSvc)
		if err != nil {
			log.Fatalf("failed to initialize session manager: %v", err)
		}
		defer manager.CloseAll()
		log.Println("AI service initialized successfully")
	} else {
		log.Println("GEMINI_API_KEY not configured; chat endpoints will answer 503 until it is set")
	}

	router := handler.NewRouter(cfg, identitySvc, synchronizer, manager)

	startServer(ctx, cfg.Server, router)
}

// newDocumentStore picks DynamoDB when FAMILY_TABLE is set, otherwise
// an in-memory store suitable for local development.
func newDocumentStore(ctx context.Context, cfg config.StoreConfig) (syncer.DocumentStore, error) {
	if !cfg.Persistent() {
		log.Println("FAMILY_TABLE not configured; using in-memory family store")
		return syncer.NewMemoryStore(), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	store, err := repository.NewFamilyStore(dynamodb.NewFromConfig(awsCfg), cfg.TableName)
	if err != nil {
		return nil, err
	}
	log.Printf("using DynamoDB family store table=%s", cfg.TableName)
	return store, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Aga Care backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
