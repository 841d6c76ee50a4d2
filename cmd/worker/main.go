package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/config"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/repository"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/repository/postgres"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/service/notification"
	"github.com/Aytsuu/CIUDAD-APP-sub005/pkg/logger"
	"github.com/Aytsuu/CIUDAD-APP-sub005/pkg/messaging/redis"
	"github.com/Aytsuu/CIUDAD-APP-sub005/pkg/metrics"
	"github.com/Aytsuu/CIUDAD-APP-sub005/pkg/worker"
)

func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)
	followUpRepo := postgres.NewFollowUpRepository(base)

	zl := log.Zerolog()
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &zl)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	m := metrics.NewMetrics("vaccination_worker")

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Worker.OutboxBatchSize,
		PollInterval:  cfg.Worker.OutboxPollInterval(),
		RetryAttempts: cfg.Worker.OutboxRetryAttempts,
		RetryDelay:    cfg.Worker.OutboxRetryDelay(),
	}, log, m)

	sender := notification.NewService(notification.Config{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		From:        cfg.SMTP.From,
		ClinicInbox: cfg.SMTP.ClinicInbox,
	})
	reminders := worker.NewReminderWorker(followUpRepo, sender, cfg.Worker.ReminderInterval(), log, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Start(ctx)
	go reminders.Start(ctx)
	go cleanupLoop(ctx, outboxRepo, cfg.Worker.OutboxRetentionDays, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down workers...")
	cancel()

	// Give in-flight batches a moment to finish.
	time.Sleep(time.Second)
	log.Info("Workers exited properly")
}

// cleanupLoop prunes processed outbox events past the retention window.
func cleanupLoop(ctx context.Context, repo repository.OutboxRepository, retentionDays int, log *logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := time.Now().AddDate(0, 0, -retentionDays)
			deleted, err := repo.DeleteProcessedBefore(ctx, before)
			if err != nil {
				log.Error(err, "Failed to prune outbox events")
				continue
			}
			if deleted > 0 {
				log.Info("Pruned processed outbox events", "count", deleted)
			}
		}
	}
}
