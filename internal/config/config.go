package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	HTTPPort    string
	GRPCPort    string
	MetricsPort string
	LogLevel    string

	DB    DBConfig
	Store StoreConfig
	Kafka KafkaConfig
	S3    S3Config

	DebounceInterval time.Duration
	SessionTTL       time.Duration

	DateLayout string
	TimeLayout string
	Location   *time.Location
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// StoreConfig holds the document store connection credentials. APIKey, when
// set, authenticates the postgres backend in place of POSTGRES_PASSWORD.
type StoreConfig struct {
	Backend   string
	ProjectID string
	APIKey    string
}

type KafkaConfig struct {
	Brokers      []string
	ActionsTopic string
	AuditTopic   string
	GroupID      string
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// DSN renders the libpq connection string understood by pgx.
func (c DBConfig) DSN(applicationName string) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
	if applicationName != "" {
		dsn += " application_name=" + applicationName
	}
	return dsn
}

// Load reads .env files (if any) and then the process environment.
func Load() (Config, error) {
	loadEnv()
	return FromEnv()
}

func loadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("config: cannot resolve working directory: %v", err)
		return
	}

	possiblePaths := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}

	for _, envPath := range possiblePaths {
		if err := godotenv.Load(envPath); err == nil {
			log.Printf("Loaded environment variables from %s", envPath)
			return
		}
	}

	for _, envPath := range possiblePaths {
		examplePath := filepath.Join(filepath.Dir(envPath), ".example.env")
		if err := godotenv.Load(examplePath); err == nil {
			log.Printf("Loaded environment variables from %s", examplePath)
			return
		}
	}
}

func GetOrDefault(key string, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	return value
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (Config, error) {
	var cfg Config

	cfg.HTTPPort = GetOrDefault("HTTP_PORT", "9000")
	cfg.GRPCPort = GetOrDefault("GRPC_PORT", "9001")
	cfg.MetricsPort = GetOrDefault("METRICS_PORT", "9002")
	cfg.LogLevel = GetOrDefault("LOG_LEVEL", "debug")

	port, err := strconv.Atoi(GetOrDefault("DB_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.DB = DBConfig{
		Host:     GetOrDefault("DB_HOST", "localhost"),
		Port:     port,
		User:     GetOrDefault("POSTGRES_USER", "postgres"),
		Password: GetOrDefault("POSTGRES_PASSWORD", "postgres"),
		Name:     GetOrDefault("POSTGRES_DB", "returns"),
	}

	cfg.Store = StoreConfig{
		Backend:   GetOrDefault("STORE_BACKEND", BackendPostgres),
		ProjectID: GetOrDefault("STORE_PROJECT_ID", "dashboard"),
		APIKey:    GetOrDefault("STORE_API_KEY", ""),
	}
	if cfg.Store.APIKey != "" {
		cfg.DB.Password = cfg.Store.APIKey
	}
	if cfg.Store.Backend != BackendPostgres && cfg.Store.Backend != BackendMemory {
		return Config{}, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.Store.Backend)
	}

	cfg.Kafka = KafkaConfig{
		Brokers:      splitList(GetOrDefault("KAFKA_BROKERS", "localhost:9092")),
		ActionsTopic: GetOrDefault("KAFKA_ACTIONS_TOPIC", "return_actions"),
		AuditTopic:   GetOrDefault("KAFKA_AUDIT_TOPIC", "audit_logs"),
		GroupID:      GetOrDefault("KAFKA_GROUP_ID", "returns-dashboard-consumer"),
	}

	cfg.S3 = S3Config{
		Endpoint:  GetOrDefault("S3_ENDPOINT", ""),
		Region:    GetOrDefault("S3_REGION", "us-east-1"),
		Bucket:    GetOrDefault("S3_BUCKET", "return-documents"),
		AccessKey: GetOrDefault("S3_ACCESS_KEY", ""),
		SecretKey: GetOrDefault("S3_SECRET_KEY", ""),
	}

	if cfg.DebounceInterval, err = time.ParseDuration(GetOrDefault("DEBOUNCE_INTERVAL", "300ms")); err != nil {
		return Config{}, fmt.Errorf("invalid DEBOUNCE_INTERVAL: %w", err)
	}
	if cfg.SessionTTL, err = time.ParseDuration(GetOrDefault("SESSION_TTL", "30m")); err != nil {
		return Config{}, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}

	cfg.DateLayout = GetOrDefault("DISPLAY_DATE_LAYOUT", "1/2/2006")
	cfg.TimeLayout = GetOrDefault("DISPLAY_TIME_LAYOUT", "3:04:05 PM")
	if cfg.Location, err = time.LoadLocation(GetOrDefault("DISPLAY_TIMEZONE", "Local")); err != nil {
		return Config{}, fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
