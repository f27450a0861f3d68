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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ledastudio/tablehost/backend/internal/actions"
	"github.com/ledastudio/tablehost/backend/internal/config"
	"github.com/ledastudio/tablehost/backend/internal/handler"
	"github.com/ledastudio/tablehost/backend/internal/model/persona"
	"github.com/ledastudio/tablehost/backend/internal/orchestrator"
	"github.com/ledastudio/tablehost/backend/internal/reservation"
	"github.com/ledastudio/tablehost/backend/internal/service/ai"
	"github.com/ledastudio/tablehost/backend/internal/store"
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

	// Text generation: real provider chain when credentials are present,
	// otherwise the deterministic fallbacks carry the whole dialogue.
	var gen ai.Generator = ai.Disabled{}
	if cfg.AI.Enabled() {
		svc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing with scripted replies only")
		} else {
			gen = svc
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("model credentials not configured, using scripted replies only")
	}

	sessionStore, err := newSessionStore(cfg.Store)
	if err != nil {
		log.Fatalf("failed to initialize session store: %v", err)
	}
	coalescing := store.NewCoalescing(sessionStore, cfg.Store.CoalesceDelay)
	defer func() {
		if err := coalescing.Close(); err != nil {
			log.Printf("warning: session store close: %v", err)
		}
	}()

	engine := reservation.NewMemoryEngine(10)
	personaStore := persona.NewMemoryStore(persona.Seed())
	coordinator := actions.New(engine, cfg.Dialogue.ActionTimeout)
	orch := orchestrator.New(coalescing, gen, coordinator, personaStore, cfg.Dialogue, cfg.Store.SessionTTL)

	router := handler.NewRouter(orch, cfg.Server.AllowedOrigins)

	startServer(ctx, cfg.Server, router)
}

func newSessionStore(cfg config.StoreConfig) (store.Store, error) {
	switch store.Type(cfg.Driver) {
	case store.TypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		log.Printf("session store: redis at %s", cfg.RedisAddr)
		return store.New(store.TypeRedis, store.WithRedisClient(client))
	default:
		log.Println("session store: in-process memory")
		return store.New(store.TypeMemory)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("TableHost backend listening on %s", addr)
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
