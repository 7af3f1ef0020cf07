package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abcsxl/openfindbearings-sub001/internal/database"
	"github.com/abcsxl/openfindbearings-sub001/internal/match"
)

type Config struct {
	DB    DB
	Kafka Kafka
	Actor Actor
}

type DB struct {
	database.Config
}

type Kafka struct {
	Brokers []string
	Topic   string
}

type Actor struct {
	IdleTTL         time.Duration // выгрузка простаивающей сущности
	MatchTimeout    time.Duration // дедлайн подбора по умолчанию
	ReserveValidity time.Duration // срок жизни резервации по умолчанию
	Weights         match.Weights
}

func Load(log *zap.Logger) *Config {
	w := match.DefaultWeights()
	return &Config{
		DB: DB{
			Config: database.Config{
				Host:     getEnv("DB_HOST", log),
				Port:     getEnv("DB_PORT", log),
				User:     getEnv("DB_USER", log),
				Password: getEnv("DB_PASSWORD", log),
				Name:     getEnv("DB_NAME", log),
				SSLMode:  getEnv("DB_SSLMODE", log),
			},
		},
		Kafka: Kafka{
			Brokers: splitAndTrim(getEnv("KAFKA_BROKERS", log)),
			Topic:   getEnv("KAFKA_TOPIC_EVENTS", log),
		},
		Actor: Actor{
			IdleTTL:         durationDefault(os.Getenv("ACTOR_IDLE_TTL"), 5*time.Minute),
			MatchTimeout:    durationDefault(os.Getenv("MATCH_TIMEOUT"), 30*time.Minute),
			ReserveValidity: durationDefault(os.Getenv("RESERVE_VALIDITY"), 15*time.Minute),
			Weights: match.Weights{
				Price:    floatDefault(os.Getenv("SCORE_WEIGHT_PRICE"), w.Price),
				Delivery: floatDefault(os.Getenv("SCORE_WEIGHT_DELIVERY"), w.Delivery),
				Credit:   floatDefault(os.Getenv("SCORE_WEIGHT_CREDIT"), w.Credit),
				Quantity: floatDefault(os.Getenv("SCORE_WEIGHT_QUANTITY"), w.Quantity),
			},
		},
	}
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("Обязательная переменная окружения не установлена", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func durationDefault(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func floatDefault(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(s, ",") {
		pt := strings.TrimSpace(p)
		if pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}
