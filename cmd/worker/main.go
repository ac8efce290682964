package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"worksync/internal/config"
	"worksync/internal/kv"
	"worksync/internal/model"
	"worksync/internal/queue"
	"worksync/internal/store"
	"worksync/internal/timecard"
)

// Worker consumes clock-activity messages and logs an audit line with the
// worked and break durations for each event. It reads its own view of the
// record store from the shared persistence substrate.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	var redisKV *kv.Redis
	var substrate kv.Store
	switch cfg.PersistBackend {
	case "memory":
		log.Fatal("worker requires a shared persistence backend (redis or postgres)")
	case "postgres":
		pg, err := kv.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres connect failed: %v", err)
		}
		defer pg.Close()
		substrate = pg
	default:
		redisKV = kv.NewRedis(cfg.RedisAddr)
		substrate = redisKV
	}

	if redisKV == nil {
		redisKV = kv.NewRedis(cfg.RedisAddr)
	}
	q := queue.NewRedisQueue(redisKV.Client, "worksync:activity")

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("audit worker started, waiting for activity...")
	for msg := range messages {
		recordID, userID, ok := splitBody(msg.Body)
		if !ok {
			log.Printf("skipping malformed message %q", msg.Body)
			continue
		}

		rec, found := lookupRecord(ctx, substrate, recordID)
		if !found {
			log.Printf("%s: record %s not found for user %s", msg.Type, recordID, userID)
			continue
		}

		log.Printf("%s user=%s date=%s status=%s worked=%s breaks=%d",
			msg.Type, userID, rec.Date, rec.Status(), timecard.Worked(rec, time.Now()).Round(time.Second), len(rec.Breaks))

		time.Sleep(10 * time.Millisecond)
	}

	log.Println("audit worker stopped")
}

func splitBody(body []byte) (recordID, userID string, ok bool) {
	parts := strings.SplitN(string(body), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// lookupRecord loads the persisted record collection fresh so the audit
// line reflects what the api just wrote.
func lookupRecord(ctx context.Context, substrate kv.Store, recordID string) (model.TimeRecord, bool) {
	view := store.New(substrate)
	if err := view.Load(ctx, false); err != nil {
		log.Printf("load store view failed: %v", err)
		return model.TimeRecord{}, false
	}
	for _, rec := range view.Snapshot().TimeRecords {
		if rec.ID == recordID {
			return rec, true
		}
	}
	return model.TimeRecord{}, false
}
