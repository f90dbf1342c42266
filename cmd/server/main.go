package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediascribe-backend/internal/api"
	"mediascribe-backend/internal/artifact"
	"mediascribe-backend/internal/chunkstore"
	"mediascribe-backend/internal/config"
	"mediascribe-backend/internal/jobs"
	"mediascribe-backend/internal/llm"
	"mediascribe-backend/internal/store"
	"mediascribe-backend/internal/transcriber"
	"mediascribe-backend/internal/upload"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var db store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer pg.Close()
		db = pg
	} else {
		log.Println("DATABASE_URL not set, using in-memory store")
		db = store.NewMemoryStore()
	}

	chunks, err := chunkstore.NewStore(cfg.ChunkDir)
	if err != nil {
		log.Fatalf("failed to initialize chunk store: %v", err)
	}

	uploadSvc := upload.NewService(cfg, db, chunks)
	artifactSvc := artifact.NewService(db, chunks)
	jobSvc := jobs.NewService(db, chunks,
		transcriber.NewHTTPClient(cfg.TranscriberURL),
		llm.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel),
		cfg.SummaryAttempts,
	)
	handler := api.NewHandler(cfg, uploadSvc, artifactSvc, jobSvc)

	go uploadSvc.RunReaper(ctx)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		log.Printf("mediascribe service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("shutting down mediascribe service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
