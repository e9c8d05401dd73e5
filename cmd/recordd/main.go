package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crmlite/api/internal/config"
	"crmlite/api/internal/record"
	"crmlite/api/internal/search"
)

// demoOwnerID receives the seeded demo data so a fresh install has records
// to browse before any real user signs up.
const demoOwnerID = "usr_demo"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()

	var store record.Store
	if cfg.DatabaseURL != "" {
		db, err := record.OpenDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		if err := record.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		store = record.NewPostgresStore(db)
		log.Printf("record store: postgres")
	} else {
		store = record.NewMemoryStore()
		log.Printf("record store: in-memory")
	}

	var indexer record.Indexer
	var searcher record.OpportunitySearcher
	if cfg.MeiliURL != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meili.Close()
		indexer = meili
		searcher = meili
		log.Printf("search: meilisearch at %s", cfg.MeiliURL)
	}

	service := record.NewService(store, nil, indexer)
	if cfg.SeedDemo {
		if err := service.SeedDemo(ctx, demoOwnerID); err != nil {
			log.Printf("demo seed failed: %v", err)
		}
	}

	httpServer := record.NewHTTPServer(service).WithSearch(searcher)
	server := &http.Server{
		Addr:              cfg.RecordAddr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Strategy generation runs inline on the request path.
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("record service listening on %s", cfg.RecordAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
