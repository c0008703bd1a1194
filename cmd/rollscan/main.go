package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"rollscan/internal/events"
	"rollscan/internal/extract"
	"rollscan/internal/platform/config"
	"rollscan/internal/platform/httpserver"
	"rollscan/internal/platform/logger"
	"rollscan/internal/platform/metrics"
	"rollscan/internal/platform/redis"
	"rollscan/internal/report"
	"rollscan/internal/store"
	httptransport "rollscan/internal/transport/http"
	"rollscan/internal/verify"
	"rollscan/internal/verify/cache"
)

// main wires high-level dependencies, optionally ingests a directory of
// extracted roll documents, and keeps the server lifecycle small. Business
// logic lives in internal services packages.
func main() {
	ingestDir := flag.String("ingest", "", "directory of extracted roll text files to load before serving")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.New()

	voters, dbPinger, closeDB := openStore(cfg, log)
	defer closeDB()

	payloads, redisPinger, closeRedis := openCache(cfg, log)
	defer closeRedis()

	publisher, err := events.NewPublisher(events.Config{
		Brokers:         cfg.Events.Brokers,
		RecordTopic:     cfg.Events.RecordTopic,
		ValidationTopic: cfg.Events.ValidationTopic,
	}, log)
	if err != nil {
		log.Fatalf("events: %v", err)
	}
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		if err := publisher.Run(eventsCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("event publisher stopped: %v", err)
		}
	}()

	verifier, stopVerifier := buildVerifier(cfg, voters, payloads, publisher, log)

	if *ingestDir != "" {
		if err := ingest(context.Background(), cfg, *ingestDir, voters, publisher, log); err != nil {
			log.Fatalf("ingest %s: %v", *ingestDir, err)
		}
	}

	pingers := map[string]httptransport.Pinger{}
	if dbPinger != nil {
		pingers["postgres"] = dbPinger
	}
	if redisPinger != nil {
		pingers["redis"] = redisPinger
	}

	appMetrics := metrics.New()
	handler := httptransport.NewHandler(voters, verifier, log, pingers)
	router := httptransport.NewRouter(handler, appMetrics)

	srv := httpserver.New(cfg.Addr, router)

	log.Printf("starting rollscan on %s", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	if err := httpserver.Shutdown(srv, 10*time.Second); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	stopVerifier()
	stopEvents()
	<-eventsDone
}

// openStore prefers Postgres and falls back to the in-memory store so the
// extraction pipeline stays usable without infrastructure.
func openStore(cfg config.Config, log *log.Logger) (store.VoterStore, httptransport.Pinger, func()) {
	if cfg.DatabaseURL == "" {
		log.Printf("no database configured, voter records are kept in memory")
		return store.NewMemoryStore(), nil, func() {}
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	return store.NewPostgresStore(db), db.PingContext, func() { _ = db.Close() }
}

func openCache(cfg config.Config, log *log.Logger) (*cache.PayloadCache, httptransport.Pinger, func()) {
	if cfg.Redis.URL == "" {
		return nil, nil, func() {}
	}

	client, err := redis.New(cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return cache.New(client.Client, cfg.Verify.CacheTTL), client.Health, func() { _ = client.Close() }
}

// buildVerifier returns a nil verifier when no lookup URL is configured,
// which turns the verification endpoints into 503s instead of guaranteed
// remote failures. The second return cancels in-flight runs on shutdown.
func buildVerifier(cfg config.Config, voters store.VoterStore, payloads *cache.PayloadCache, publisher *events.Publisher, log *log.Logger) (httptransport.Verifier, func()) {
	if cfg.Lookup.BaseURL == "" {
		log.Printf("no lookup URL configured, verification is disabled")
		return nil, func() {}
	}

	lookup := verify.NewClient(verify.ClientConfig{
		BaseURL:    cfg.Lookup.BaseURL,
		StateCode:  cfg.Verify.StateCode,
		Headers:    cfg.Lookup.Headers,
		Timeout:    cfg.Lookup.Timeout,
		MaxRetries: cfg.Lookup.MaxRetries,
	})
	svc := verify.NewService(voters, lookup, payloads, publisher, log, verify.NewMetrics(), verify.Config{
		StateCode:     cfg.Verify.StateCode,
		Threshold:     cfg.Verify.Threshold,
		MinDelay:      cfg.Verify.MinDelay,
		MaxConcurrent: cfg.Verify.MaxConcurrent,
	})
	return svc, svc.Close
}

func ingest(ctx context.Context, cfg config.Config, dir string, voters store.VoterStore, publisher *events.Publisher, log *log.Logger) error {
	docs, err := extract.ReadDir(dir)
	if err != nil {
		return err
	}
	log.Printf("ingesting %d documents from %s", len(docs), dir)

	pipeline := extract.New(log, extract.NewMetrics())
	results, err := pipeline.Batch(ctx, docs, cfg.ExtractWorkers)
	if err != nil {
		return err
	}

	var saved int
	for _, res := range results {
		for _, rec := range res.Records {
			inserted, err := voters.Save(ctx, rec)
			if err != nil {
				return err
			}
			if inserted {
				saved++
				if err := publisher.PublishRecord(ctx, rec); err != nil {
					log.Printf("publish record %s: %v", rec.Key(), err)
				}
			}
		}
	}

	summary := report.Build(results)
	if body, err := json.Marshal(summary); err == nil {
		log.Printf("ingest summary: %s", body)
	}
	log.Printf("ingest complete: %d records extracted, %d new", summary.TotalRecords, saved)
	return nil
}
