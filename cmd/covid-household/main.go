package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ARodriguezHacks/covid-calendar/common/database"
	"github.com/ARodriguezHacks/covid-calendar/common/logger"
	"github.com/ARodriguezHacks/covid-calendar/common/mqtt"
	commonredis "github.com/ARodriguezHacks/covid-calendar/common/redis"
	"github.com/ARodriguezHacks/covid-calendar/internal/config"
	"github.com/ARodriguezHacks/covid-calendar/internal/evaluator"
	httpapi "github.com/ARodriguezHacks/covid-calendar/internal/http"
	"github.com/ARodriguezHacks/covid-calendar/internal/metrics"
	"github.com/ARodriguezHacks/covid-calendar/internal/notifier"
	"github.com/ARodriguezHacks/covid-calendar/internal/repository"
	"github.com/ARodriguezHacks/covid-calendar/internal/service"
	"github.com/ARodriguezHacks/covid-calendar/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "covid-household")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 仓库：DB 不可用时回退到内存实现
	var db *sql.DB
	var repo repository.HouseholdRepository = repository.NewMemoryHouseholdRepo()
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(ctx, &cfg.Database); err == nil {
			pg := repository.NewPostgresHouseholdRepository(d)
			if err := pg.EnsureSchema(ctx); err != nil {
				log.Warn("Failed to ensure schema, falling back to memory repository", zap.Error(err))
				_ = database.Close(d)
			} else {
				db = d
				repo = pg
				log.Info("DB enabled for covid-household")
			}
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repository", zap.Error(err))
		}
	}

	// Redis：指导缓存 + 变更 Stream（不可用时两者都关闭）
	var redisClient *redis.Client
	var cache *store.GuidanceCache
	var publishers notifier.Multi
	if cfg.RedisEnabled {
		c := commonredis.NewRedisClient(&cfg.Redis)
		if err := commonredis.Ping(ctx, c); err == nil {
			redisClient = c
			cache = store.NewGuidanceCache(store.NewRedisKV(c), cfg.Guidance.CachePrefix, cfg.Guidance.CacheTTL)
			if cfg.Notify.Stream != "" {
				publishers = append(publishers, notifier.NewStreamPublisher(c, cfg.Notify.Stream))
			}
			log.Info("Redis enabled for covid-household", zap.String("addr", cfg.Redis.Addr))
		} else {
			log.Warn("Redis enabled but ping failed, guidance cache disabled", zap.Error(err))
			_ = commonredis.Close(c)
		}
	}

	var mqttClient *mqtt.Client
	if cfg.Notify.MQTTEnabled {
		if c, err := mqtt.NewClient(&cfg.Notify.MQTT); err == nil {
			mqttClient = c
			publishers = append(publishers, notifier.NewMQTTPublisher(c, cfg.Notify.TopicPrefix, c.QoS()))
			log.Info("MQTT enabled for covid-household", zap.String("broker", cfg.Notify.MQTT.Broker))
		} else {
			log.Warn("MQTT enabled but connection failed", zap.Error(err))
		}
	}

	if cfg.Notify.WebhookURL != "" {
		publishers = append(publishers, notifier.NewWebhookPublisher(
			cfg.Notify.WebhookURL, cfg.Notify.WebhookTimeout, cfg.Notify.WebhookRetries, log))
	}

	policy := evaluator.Policy{
		OnsetIsolationDays: cfg.Guidance.OnsetIsolationDays,
		SymptomsEndDays:    cfg.Guidance.SymptomsEndDays,
	}
	svc := service.NewHouseholdService(
		repo,
		evaluator.NewEvaluator(policy, log),
		cache,
		publishers,
		metrics.New(prometheus.DefaultRegisterer),
		log,
	)

	router := httpapi.NewRouter(log)
	router.RegisterHouseholdRoutes(httpapi.NewHouseholdHandler(svc, log))
	health := httpapi.NewHealthHandler(log)
	if db != nil {
		health.Register("database", db.PingContext)
	}
	if redisClient != nil {
		health.Register("redis", func(ctx context.Context) error {
			return commonredis.Ping(ctx, redisClient)
		})
	}
	if mqttClient != nil {
		health.Register("mqtt", func(context.Context) error {
			if !mqttClient.IsConnected() {
				return errors.New("mqtt broker not connected")
			}
			return nil
		})
	}
	router.RegisterOpsRoutes(health, promhttp.Handler())

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		log.Error("HTTP server stopped", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	_ = commonredis.Close(redisClient)
	_ = database.Close(db)
}
