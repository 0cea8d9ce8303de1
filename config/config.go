package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/viper"
)

type Config struct {
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	ServerPort       string
	JWTSecret        string
	JWTTTL           time.Duration
	Debug            bool

	CacheTTL  time.Duration
	CacheSize int

	RateLimitRPS   float64
	RateLimitBurst int
	TxMaxRetries   uint64

	SeedAvailableCoins int
	SeedMinValue       int64
	SeedMaxValue       int64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_HOST", "db")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "password")
	v.SetDefault("DATABASE_NAME", "bitslow")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("JWT_SECRET", "secret")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("DEBUG", false)
	v.SetDefault("CACHE_TTL", "2m")
	v.SetDefault("CACHE_SIZE", 1024)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("TX_MAX_RETRIES", 5)
	v.SetDefault("SEED_AVAILABLE_COINS", 0)
	v.SetDefault("SEED_MIN_VALUE", 10000)
	v.SetDefault("SEED_MAX_VALUE", 100000)
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables
// win over it.
func LoadConfig() Config {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return Config{
		DatabaseHost:       v.GetString("DATABASE_HOST"),
		DatabasePort:       v.GetString("DATABASE_PORT"),
		DatabaseUser:       v.GetString("DATABASE_USER"),
		DatabasePassword:   v.GetString("DATABASE_PASSWORD"),
		DatabaseName:       v.GetString("DATABASE_NAME"),
		ServerPort:         v.GetString("SERVER_PORT"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTTTL:             v.GetDuration("JWT_TTL"),
		Debug:              v.GetBool("DEBUG"),
		CacheTTL:           v.GetDuration("CACHE_TTL"),
		CacheSize:          v.GetInt("CACHE_SIZE"),
		RateLimitRPS:       v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
		TxMaxRetries:       v.GetUint64("TX_MAX_RETRIES"),
		SeedAvailableCoins: v.GetInt("SEED_AVAILABLE_COINS"),
		SeedMinValue:       v.GetInt64("SEED_MIN_VALUE"),
		SeedMaxValue:       v.GetInt64("SEED_MAX_VALUE"),
	}
}

func (c Config) PostgresConnStr() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
	)
}

func InitDB(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.PostgresConnStr())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
