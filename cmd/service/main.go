package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/abcsxl/openfindbearings-sub001/config"
	"github.com/abcsxl/openfindbearings-sub001/internal/database"
	"github.com/abcsxl/openfindbearings-sub001/internal/events"
	"github.com/abcsxl/openfindbearings-sub001/internal/inventory"
	"github.com/abcsxl/openfindbearings-sub001/internal/logger"
	"github.com/abcsxl/openfindbearings-sub001/internal/match"
	"github.com/abcsxl/openfindbearings-sub001/internal/repository"
	"github.com/abcsxl/openfindbearings-sub001/internal/runtime"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)
	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)

	repos := repository.New(db)

	pub := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer pub.Close()

	owner := runtime.NewOwner(repos.Snapshots, cfg.Actor.IdleTTL, log)
	sched := runtime.NewScheduler(log)
	defer sched.Stop()

	_ = inventory.NewActor(owner, sched, pub, cfg.Actor.ReserveValidity, log)
	_ = match.NewActor(owner, sched, pub, cfg.Actor.MatchTimeout, cfg.Actor.Weights, log)

	log.Info("actor core started",
		zap.Duration("idle_ttl", cfg.Actor.IdleTTL),
		zap.Duration("match_timeout", cfg.Actor.MatchTimeout))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down actor core...")
	log.Info("Actor core stopped gracefully")
}
