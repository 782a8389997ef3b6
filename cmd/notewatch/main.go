package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	redisrepo "github.com/V4T54L/tradedesk/internal/adapter/repository/redis"
	"github.com/V4T54L/tradedesk/internal/pkg/config"
	"github.com/V4T54L/tradedesk/internal/pkg/logger"
)

func main() {
	interval := flag.Duration("interval", time.Second, "Polling interval")
	window := flag.Int64("n", 100, "Entries read per poll")
	desk := flag.String("desk", "", "Only show events for this desk id")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.RedactFieldList()...)
	if cfg.RedisAddr == "" {
		log.Error("REDIS_ADDR is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	stream := redisrepo.NewNoteStream(redisClient, log, cfg.NoteStreamKey)
	log.Info("watching note events", "stream", cfg.NoteStreamKey, "desk", *desk)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	// seen holds the ids of the previous poll window.
	seen := make(map[string]struct{})
	first := true

Loop:
	for {
		entries, err := stream.Recent(ctx, *window)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("error reading note stream", "error", err)
		} else {
			next := make(map[string]struct{}, len(entries))
			for i := len(entries) - 1; i >= 0; i-- {
				e := entries[i]
				next[e.ID] = struct{}{}
				if _, ok := seen[e.ID]; ok || first {
					continue
				}
				if *desk != "" && e.Event.DeskID != *desk {
					continue
				}
				log.Info("note event",
					"id", e.ID,
					"desk_id", e.Event.DeskID,
					"note_id", e.Event.NoteID,
					"status", e.Event.Status,
					"market", e.Event.Market,
					"at", e.Event.At,
				)
			}
			seen = next
			first = false
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			break Loop
		}
	}

	log.Info("note watcher shut down")
}
