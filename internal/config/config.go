package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	// Server
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Auth (single operator)
	AdminUsername    string
	AdminPassword    string // plaintext in env, hashed at startup
	AdminDisplayName string
	AdminRole        string
	JWTSecret        string

	// Monitoring
	CheckTick          time.Duration
	CheckConcurrency   int
	ProbeTimeout       time.Duration
	FollowRedirects    bool // false reports 301/302 as DOWN
	TLSTimeout         time.Duration
	NotificationWindow time.Duration

	// Per-target lock. Empty RedisAddr keeps the lock in process.
	RedisAddr string
	LockTTL   time.Duration

	// Alerting
	AlertQueueSize int
	EmailProvider  string // resend, ses
	EmailFrom      string
	ResendAPIKey   string
	AWSRegion      string
	DashboardURL   string

	// KPI reports
	KPIReportInterval time.Duration // 0 disables the background loop
	KPIConcurrency    int
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8097"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", ""),
		DBName:             getEnv("DB_NAME", "markops"),
		DBSSLMode:          getEnv("DB_SSLMODE", "disable"),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		AdminDisplayName:   getEnv("ADMIN_DISPLAY_NAME", "Beheerder"),
		AdminRole:          getEnv("ADMIN_ROLE", "admin"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		CheckTick:          getDuration("CHECK_TICK", 30*time.Second),
		CheckConcurrency:   getInt("CHECK_CONCURRENCY", 8),
		ProbeTimeout:       getDuration("PROBE_TIMEOUT", 10*time.Second),
		FollowRedirects:    getBool("PROBE_FOLLOW_REDIRECTS", true),
		TLSTimeout:         getDuration("TLS_TIMEOUT", 5*time.Second),
		NotificationWindow: getDuration("NOTIFICATION_WINDOW", time.Hour),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		LockTTL:            getDuration("LOCK_TTL", 2*time.Minute),
		AlertQueueSize:     getInt("ALERT_QUEUE_SIZE", 256),
		EmailProvider:      getEnv("EMAIL_PROVIDER", "resend"),
		EmailFrom:          getEnv("EMAIL_FROM", "alerts@markops.local"),
		ResendAPIKey:       getEnv("RESEND_API_KEY", ""),
		AWSRegion:          getEnv("AWS_REGION", "eu-west-1"),
		DashboardURL:       getEnv("DASHBOARD_URL", "http://localhost:3000"),
		KPIReportInterval:  getDuration("KPI_REPORT_INTERVAL", 24*time.Hour),
		KPIConcurrency:     getInt("KPI_CONCURRENCY", 4),
	}
}

// DSN is the Postgres connection string for gorm's postgres driver.
func (c *Config) DSN() string {
	return "host=" + c.DBHost + " port=" + c.DBPort + " user=" + c.DBUser +
		" password=" + c.DBPassword + " dbname=" + c.DBName + " sslmode=" + c.DBSSLMode
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

// getDuration accepts Go durations ("90s") or plain seconds ("90").
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
