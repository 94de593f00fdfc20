package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Classifier ClassifierConfig
	Archive    ArchiveConfig
	Ingest     IngestConfig
	Events     EventsConfig
	Reports    ReportsConfig
}

type DatabaseConfig struct {
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig verifies bearer tokens minted by the external sign-in flow.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ClassifierConfig points at the document classification service.
type ClassifierConfig struct {
	URL                     string
	Timeout                 time.Duration
	RateLimit               float64
	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// ArchiveConfig controls best-effort archival to the owner's cloud drive.
type ArchiveConfig struct {
	Enabled            bool
	RootFolder         string
	PipelineFolder     string
	FolderCacheTTL     time.Duration
	Timeout            time.Duration
	GoogleClientID     string
	GoogleClientSecret string
}

// IngestConfig tunes batch processing.
type IngestConfig struct {
	Concurrency         int
	MaxFileSizeBytes    int64
	StagingDir          string
	DefaultAcademicYear string
	DefaultSemester     string
}

// EventsConfig enables ingestion events on NATS. An empty URL disables publishing.
type EventsConfig struct {
	NATSURL string
	Subject string
}

// ReportsConfig configures IPCR report export.
type ReportsConfig struct {
	StorageDir      string
	TemplatePath    string
	SignedURLSecret string
	SignedURLTTL    time.Duration
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: v.GetString("JWT_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Classifier = ClassifierConfig{
		URL:                     strings.TrimRight(v.GetString("CLASSIFIER_URL"), "/"),
		Timeout:                 parseDuration(v.GetString("CLASSIFIER_TIMEOUT"), 60*time.Second),
		RateLimit:               v.GetFloat64("CLASSIFIER_RATE_LIMIT"),
		BreakerEnabled:          v.GetBool("CLASSIFIER_BREAKER_ENABLED"),
		BreakerMinRequests:      v.GetUint32("CLASSIFIER_BREAKER_MIN_REQUESTS"),
		BreakerFailureRatio:     v.GetFloat64("CLASSIFIER_BREAKER_FAILURE_RATIO"),
		BreakerOpenTimeout:      parseDuration(v.GetString("CLASSIFIER_BREAKER_OPEN_TIMEOUT"), 30*time.Second),
		BreakerHalfOpenMaxCalls: v.GetUint32("CLASSIFIER_BREAKER_HALF_OPEN_MAX_CALLS"),
	}

	cfg.Archive = ArchiveConfig{
		Enabled:            v.GetBool("ARCHIVE_ENABLED"),
		RootFolder:         v.GetString("ARCHIVE_ROOT_FOLDER"),
		PipelineFolder:     v.GetString("ARCHIVE_PIPELINE_FOLDER"),
		FolderCacheTTL:     parseDuration(v.GetString("ARCHIVE_FOLDER_CACHE_TTL"), 24*time.Hour),
		Timeout:            parseDuration(v.GetString("ARCHIVE_TIMEOUT"), 30*time.Second),
		GoogleClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
	}

	maxUpload := v.GetInt64("UPLOAD_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 25 * 1024 * 1024
	}
	concurrency := v.GetInt("INGEST_CONCURRENCY")
	if concurrency <= 0 {
		concurrency = 1
	}
	cfg.Ingest = IngestConfig{
		Concurrency:         concurrency,
		MaxFileSizeBytes:    maxUpload,
		StagingDir:          v.GetString("STAGING_DIR"),
		DefaultAcademicYear: v.GetString("DEFAULT_ACADEMIC_YEAR"),
		DefaultSemester:     v.GetString("DEFAULT_SEMESTER"),
	}

	cfg.Events = EventsConfig{
		NATSURL: v.GetString("NATS_URL"),
		Subject: v.GetString("NATS_SUBJECT"),
	}

	cfg.Reports = ReportsConfig{
		StorageDir:      v.GetString("REPORTS_STORAGE_DIR"),
		TemplatePath:    v.GetString("REPORTS_TEMPLATE_PATH"),
		SignedURLSecret: v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 3001)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ipcr")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CLASSIFIER_URL", "http://localhost:5000")
	v.SetDefault("CLASSIFIER_TIMEOUT", "60s")
	v.SetDefault("CLASSIFIER_RATE_LIMIT", 0)
	v.SetDefault("CLASSIFIER_BREAKER_ENABLED", true)
	v.SetDefault("CLASSIFIER_BREAKER_MIN_REQUESTS", 5)
	v.SetDefault("CLASSIFIER_BREAKER_FAILURE_RATIO", 0.6)
	v.SetDefault("CLASSIFIER_BREAKER_OPEN_TIMEOUT", "30s")
	v.SetDefault("CLASSIFIER_BREAKER_HALF_OPEN_MAX_CALLS", 1)

	v.SetDefault("ARCHIVE_ENABLED", true)
	v.SetDefault("ARCHIVE_ROOT_FOLDER", "LSPUDOCS")
	v.SetDefault("ARCHIVE_PIPELINE_FOLDER", "IPCR")
	v.SetDefault("ARCHIVE_FOLDER_CACHE_TTL", "24h")
	v.SetDefault("ARCHIVE_TIMEOUT", "30s")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")

	v.SetDefault("INGEST_CONCURRENCY", 1)
	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 25*1024*1024)
	v.SetDefault("STAGING_DIR", "./uploads")
	v.SetDefault("DEFAULT_ACADEMIC_YEAR", "2023-2024")
	v.SetDefault("DEFAULT_SEMESTER", "1st")

	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_SUBJECT", "ipcr.document.ingested")

	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_TEMPLATE_PATH", "")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "1h")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
