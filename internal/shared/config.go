package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	MetricsAddr   string
	StorageDriver string // mysql | memory
	MySQLDSN      string
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	CacheTTL      time.Duration
	JWTSecret     string
	BaseURL       string
	UploadDir     string
	MaxUploadSize int64
	NearbyKm      float64
	MaxPageSize   int
	AMQPURL       string
	RateLimitRPS  float64
	RateBurst     int
	TrustProxy    bool // honour X-Forwarded-For / X-Real-IP from a fronting proxy
	Workers       int
}

// Load reads the environment, after merging an optional .env file from the working directory.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ":9100"),
		StorageDriver: env("STORAGE_DRIVER", "mysql"),
		MySQLDSN:      env("MYSQL_DSN", "root:root@tcp(localhost:3306)/spherelink?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		JWTSecret:     env("JWT_SECRET", ""),
		BaseURL:       env("BASE_URL", "http://localhost:8080"),
		UploadDir:     env("UPLOAD_DIR", "Uploads"),
		MaxUploadSize: int64(atoi("MAX_UPLOAD_BYTES", 200<<20)),
		NearbyKm:      atof("NEARBY_RADIUS_KM", 10),
		MaxPageSize:   atoi("SEARCH_MAX_PAGE_SIZE", 100),
		AMQPURL:       env("AMQP_URL", ""),
		RateLimitRPS:  atof("RATE_LIMIT_RPS", 5),
		RateBurst:     atoi("RATE_LIMIT_BURST", 20),
		TrustProxy:    env("TRUST_PROXY", "false") == "true",
		Workers:       atoi("REAGGREGATE_WORKERS", 8),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty; authenticated routes will reject every token")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
