package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Ledger   LedgerConfig
	School   SchoolConfig
	Receipts ReceiptsConfig
	Reports  ReportsConfig
	Summary  SummaryConfig
	Backups  BackupsConfig
}

type DatabaseConfig struct {
	Driver       string
	Path         string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// LedgerConfig holds the fee policy shared by every student.
type LedgerConfig struct {
	TotalFee    decimal.Decimal
	Classes     []string
	RecentLimit int
}

// SchoolConfig is the institution identity printed on receipts.
type SchoolConfig struct {
	Name    string
	Slogan  string
	Address string
	Contact string
}

// ReceiptsConfig controls where receipt artifacts land and how download links are signed.
type ReceiptsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// ReportsConfig configures asynchronous report generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// SummaryConfig governs caching of institution-wide totals.
type SummaryConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// BackupsConfig sets the destination of database snapshots.
type BackupsConfig struct {
	StorageDir string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		Path:         v.GetString("DB_PATH"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}
	if cfg.Database.Driver != DriverSQLite && cfg.Database.Driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	totalFee, err := decimal.NewFromString(strings.TrimSpace(v.GetString("LEDGER_TOTAL_FEE")))
	if err != nil {
		return nil, fmt.Errorf("parse LEDGER_TOTAL_FEE: %w", err)
	}
	if !totalFee.IsPositive() {
		return nil, fmt.Errorf("LEDGER_TOTAL_FEE must be positive")
	}
	classes := splitAndTrim(v.GetString("LEDGER_CLASSES"))
	if len(classes) == 0 {
		return nil, fmt.Errorf("LEDGER_CLASSES must list at least one class")
	}
	cfg.Ledger = LedgerConfig{
		TotalFee:    totalFee,
		Classes:     classes,
		RecentLimit: v.GetInt("LEDGER_RECENT_LIMIT"),
	}

	cfg.School = SchoolConfig{
		Name:    v.GetString("SCHOOL_NAME"),
		Slogan:  v.GetString("SCHOOL_SLOGAN"),
		Address: v.GetString("SCHOOL_ADDRESS"),
		Contact: v.GetString("SCHOOL_CONTACT"),
	}

	cfg.Receipts = ReceiptsConfig{
		StorageDir:      v.GetString("RECEIPTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("RECEIPTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("RECEIPTS_SIGNED_URL_TTL"), time.Hour),
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
	}

	cfg.Summary = SummaryConfig{
		CacheEnabled: v.GetBool("ENABLE_SUMMARY_CACHE"),
		CacheTTL:     parseDuration(v.GetString("SUMMARY_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Backups = BackupsConfig{StorageDir: v.GetString("BACKUPS_STORAGE_DIR")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DB_PATH", "./db/students.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "fee_ledger")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LEDGER_TOTAL_FEE", "19000")
	v.SetDefault("LEDGER_CLASSES", "MINI KG,JR KG,SR KG")
	v.SetDefault("LEDGER_RECENT_LIMIT", 20)

	v.SetDefault("SCHOOL_NAME", "Little Angels Pre-School")
	v.SetDefault("SCHOOL_SLOGAN", "CHOOSE SMART, BE SMART")
	v.SetDefault("SCHOOL_ADDRESS", "Shivane, Pune-23")
	v.SetDefault("SCHOOL_CONTACT", "8657633646 & 9765848509")

	v.SetDefault("RECEIPTS_STORAGE_DIR", "./receipts")
	v.SetDefault("RECEIPTS_SIGNED_URL_SECRET", "dev_receipts_secret")
	v.SetDefault("RECEIPTS_SIGNED_URL_TTL", "1h")

	v.SetDefault("ENABLE_REPORTS", true)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_SUMMARY_CACHE", false)
	v.SetDefault("SUMMARY_CACHE_TTL", "5m")

	v.SetDefault("BACKUPS_STORAGE_DIR", "./backups")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory") || strings.Contains(err.Error(), "cannot find the file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
