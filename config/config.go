package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"macromap/services"
)

const (
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

type Config struct {
	Port        string
	StoreDriver string

	DBHost, DBUser, DBPassword, DBName, DBPort string
	BoltPath                                   string

	FatSecretClientID     string
	FatSecretClientSecret string
	FatSecretTokenURL     string
	FatSecretSearchURL    string
	FatSecretTimeout      time.Duration

	RefreshTTL time.Duration
	RankLimit  int
	ChunkSize  int

	GoogleMapsKey string
	JWTSecret     string
	StaticDir     string

	AWSRegion   string
	S3Bucket    string
	SNSTopicARN string
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[SYS] no .env file loaded: %v", err)
	}

	cfg := &Config{
		Port:                  getenv("PORT", "8080"),
		StoreDriver:           getenv("STORE_DRIVER", DriverPostgres),
		DBHost:                os.Getenv("DB_HOST"),
		DBUser:                os.Getenv("DB_USER"),
		DBPassword:            os.Getenv("DB_PASSWORD"),
		DBName:                os.Getenv("DB_NAME"),
		DBPort:                getenv("DB_PORT", "5432"),
		BoltPath:              getenv("BOLT_PATH", "macromap.db"),
		FatSecretClientID:     os.Getenv("FATSECRET_CLIENT_ID"),
		FatSecretClientSecret: os.Getenv("FATSECRET_CLIENT_SECRET"),
		FatSecretTokenURL:     getenv("FATSECRET_TOKEN_URL", services.DefaultTokenURL),
		FatSecretSearchURL:    getenv("FATSECRET_SEARCH_URL", services.DefaultSearchURL),
		GoogleMapsKey:         os.Getenv("GOOGLE_MAPS_KEY"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		StaticDir:             os.Getenv("STATIC_DIR"),
		AWSRegion:             os.Getenv("AWS_REGION"),
		S3Bucket:              os.Getenv("S3_BUCKET"),
		SNSTopicARN:           os.Getenv("SNS_TOPIC_ARN"),
	}

	var err error
	if cfg.FatSecretTimeout, err = durationEnv("FATSECRET_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = durationEnv("REFRESH_TTL", services.DefaultRefreshTTL); err != nil {
		return nil, err
	}
	if cfg.RankLimit, err = intEnv("RANK_LIMIT", services.DefaultRankLimit); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = intEnv("FETCH_CHUNK_SIZE", services.DefaultChunkSize); err != nil {
		return nil, err
	}

	switch cfg.StoreDriver {
	case DriverPostgres, DriverBolt:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", cfg.StoreDriver, DriverPostgres, DriverBolt)
	}
	return cfg, nil
}

// DSN is the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// InitDB opens the postgres connection; OpenStore runs the migration.
func InitDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// OpenStore opens the configured RestaurantStore.
func OpenStore(cfg *Config) (services.RestaurantStore, error) {
	switch cfg.StoreDriver {
	case DriverBolt:
		s, err := services.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		log.Printf("[DB] bbolt store at %s", cfg.BoltPath)
		return s, nil
	default:
		db, err := InitDB(cfg)
		if err != nil {
			return nil, err
		}
		s := services.NewGormStore(db)
		if err := s.Migrate(); err != nil {
			return nil, fmt.Errorf("AutoMigrate failed: %w", err)
		}
		log.Printf("[DB] postgres connected (%s@%s/%s)", cfg.DBUser, cfg.DBHost, cfg.DBName)
		return s, nil
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
