package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/schoolwatch-hk/schoolwatch/config"
	"github.com/schoolwatch-hk/schoolwatch/internal/common/database"
	"github.com/schoolwatch-hk/schoolwatch/internal/extractor"
	"github.com/schoolwatch-hk/schoolwatch/internal/monitor"
	"github.com/schoolwatch-hk/schoolwatch/pkg"
	"github.com/schoolwatch-hk/schoolwatch/pkg/api"
)

func main() {
	var (
		configFile   = flag.String("config", "schoolwatch", "Name of the configuration file (without extension)")
		mode         = flag.String("mode", "monitor", "Mode: monitor, schedule, serve, seed or extract")
		limitSchools = flag.Int("schools", 0, "Max schools per run (0 = config default)")
		limitPages   = flag.Int("pages", 0, "Max pages per school (0 = config default)")
		schoolQuery  = flag.String("query", "", "Only monitor schools whose name contains this substring")
		seedFile     = flag.String("seedfile", "hk_primary_schools_seed.json", "Path to seed roster file")
		announcement = flag.String("announcement", "", "Announcement id to extract events from")
	)
	flag.Parse()

	cfg, err := config.LoadMonitorConfig(*configFile)
	if err != nil {
		log.Printf("Failed to load configuration from %s: %v", *configFile, err)
		log.Println("Using default configuration...")
		cfg = config.GetDefaultConfig()
	}

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()
	logger := zlog.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	pg, err := database.NewDBConnection(&cfg.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Fatalf("Failed to ensure schema: %v", err)
	}

	mongoClient, err := database.NewMongoClient(ctx, &cfg.Mongo)
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect()
	if err := mongoClient.EnsureIndexes(ctx); err != nil {
		logger.Fatalf("Failed to ensure Mongo indexes: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warnf("Redis unavailable, extraction caching disabled: %v", err)
			redisClient = nil
		}
	}

	store := database.NewStore(pg, mongoClient)
	fetcher := monitor.NewFetchPolicy(&cfg.Fetch, logger)
	mon := monitor.NewMonitor(store, fetcher, cfg, logger)
	ex := extractor.NewService(&cfg.Extractor, redisClient, logger)

	switch *mode {
	case "monitor":
		summary, err := mon.RunOnce(ctx, monitor.RunOptions{
			LimitSchools:        *limitSchools,
			LimitPagesPerSchool: *limitPages,
			SchoolQuery:         *schoolQuery,
		})
		if err != nil {
			logger.Fatalf("Monitoring run failed: %v", err)
		}
		logger.Infow("run finished", "summary", summary)

	case "schedule":
		c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
		_, err := c.AddFunc(cfg.Schedule, func() {
			if _, err := mon.RunOnce(ctx, monitor.RunOptions{}); err != nil {
				logger.Errorw("scheduled run failed", "error", err)
			}
		})
		if err != nil {
			logger.Fatalf("Invalid schedule %q: %v", cfg.Schedule, err)
		}
		logger.Infow("scheduler started", "schedule", cfg.Schedule)
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()

	case "serve":
		app := fiber.New(fiber.Config{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		})
		monitorAPI := api.NewMonitorAPI(mon, store, ex, logger)
		monitorAPI.RegisterRoutes(app)

		go func() {
			logger.Infof("Starting monitoring API on %s", cfg.API.HTTPAddr)
			if err := app.Listen(cfg.API.HTTPAddr); err != nil {
				logger.Fatalf("Fiber app failed: %v", err)
			}
		}()

		<-ctx.Done()
		logger.Info("Shutting down server...")
		if err := app.Shutdown(); err != nil {
			logger.Errorf("Fiber shutdown failed: %v", err)
		}

	case "seed":
		schools, err := pkg.LoadSeedSchools(*seedFile)
		if err != nil {
			logger.Fatalf("Failed to load seed roster: %v", err)
		}
		if err := pg.ReplaceSchools(ctx, schools); err != nil {
			logger.Fatalf("Failed to import seed roster: %v", err)
		}
		logger.Infow("seed roster imported", "schools", len(schools))

	case "extract":
		id, err := primitive.ObjectIDFromHex(*announcement)
		if err != nil {
			logger.Fatalf("Invalid announcement id %q: %v", *announcement, err)
		}
		res, err := ex.ExtractFromAnnouncement(ctx, store, id)
		if err != nil {
			logger.Fatalf("Extraction failed: %v", err)
		}
		logger.Infow("extraction finished",
			"provider", res.Provider, "events", len(res.Events))

	default:
		logger.Fatalf("Unknown mode: %s. Use monitor, schedule, serve, seed or extract.", *mode)
	}
}
