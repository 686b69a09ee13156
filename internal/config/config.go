package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/todomini/todomini-server/pkg/logger"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMinIO    = "minio"
)

// Notifier modes.
const (
	NotifyNone  = "none"
	NotifyLocal = "local"
	NotifyRedis = "redis"
)

// pollCap mirrors the poller's hard limit; the HTTP write timeout must
// outlast it.
const pollCap = 25

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	SQL       SQLConfig
	MinIO     MinIOConfig
	Poll      PollConfig
	Todo      TodoConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type StoreConfig struct {
	Backend string
}

type MongoDBConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Prefix   string
}

type SQLConfig struct {
	PostgresDSN string
	SQLitePath  string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type PollConfig struct {
	MaxWait int
	Notify  string
}

type TodoConfig struct {
	Suffix string
}

type RateLimitConfig struct {
	Enabled  bool
	RPS      float64
	Burst    int
	UseRedis bool
	Window   time.Duration
}

type AuthConfig struct {
	OIDCIssuer       string
	OIDCClientID     string
	OIDCFoldersClaim string
	JWTSecret        string
	AllowInsecure    bool
}

// Enabled reports whether any bearer verification is configured.
func (a AuthConfig) Enabled() bool {
	return a.OIDCIssuer != "" || a.JWTSecret != ""
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LoadConfig loads configuration from environment variables and an optional
// .env file (path from DOTENV_PATH, default ".env").
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DOTENV_PATH", ".env")
	if err := godotenv.Load(v.GetString("DOTENV_PATH")); err == nil {
		logger.Debugf("config: loaded %s", v.GetString("DOTENV_PATH"))
	}

	v.SetDefault("SERVER_PORT", "8000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", pollCap+10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("STORE_BACKEND", BackendMemory)
	v.SetDefault("MONGODB_DATABASE", "todomini")
	v.SetDefault("MONGODB_COLLECTION", "todo_files")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "todo:")
	v.SetDefault("SQLITE_PATH", "todomini.db")
	v.SetDefault("MINIO_BUCKET", "todomini")
	v.SetDefault("POLL_MAX_WAIT", pollCap)
	v.SetDefault("POLL_NOTIFY", NotifyLocal)
	v.SetDefault("TODO_SUFFIX", ".txt")
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_WINDOW", 1)
	v.SetDefault("OIDC_FOLDERS_CLAIM", "folders")

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  time.Duration(v.GetInt("SERVER_READ_TIMEOUT")) * time.Second,
			WriteTimeout: time.Duration(v.GetInt("SERVER_WRITE_TIMEOUT")) * time.Second,
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(v.GetString("STORE_BACKEND")),
		},
		MongoDB: MongoDBConfig{
			URI:        v.GetString("MONGODB_URI"),
			Database:   v.GetString("MONGODB_DATABASE"),
			Collection: v.GetString("MONGODB_COLLECTION"),
			Timeout:    time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Prefix:   v.GetString("REDIS_PREFIX"),
		},
		SQL: SQLConfig{
			PostgresDSN: v.GetString("POSTGRES_DSN"),
			SQLitePath:  v.GetString("SQLITE_PATH"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		Poll: PollConfig{
			MaxWait: v.GetInt("POLL_MAX_WAIT"),
			Notify:  strings.ToLower(v.GetString("POLL_NOTIFY")),
		},
		Todo: TodoConfig{
			Suffix: v.GetString("TODO_SUFFIX"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:      v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:    v.GetInt("RATE_LIMIT_BURST"),
			UseRedis: v.GetBool("RATE_LIMIT_USE_REDIS"),
			Window:   time.Duration(v.GetInt("RATE_LIMIT_WINDOW")) * time.Second,
		},
		Auth: AuthConfig{
			OIDCIssuer:       v.GetString("OIDC_ISSUER"),
			OIDCClientID:     v.GetString("OIDC_CLIENT_ID"),
			OIDCFoldersClaim: v.GetString("OIDC_FOLDERS_CLAIM"),
			JWTSecret:        v.GetString("JWT_SECRET"),
			AllowInsecure:    v.GetBool("OIDC_ALLOW_INSECURE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Auth.Enabled() {
		logger.Warnf("config: no OIDC_ISSUER or JWT_SECRET set; the todo API is unauthenticated")
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("config: MONGODB_URI is required for the %s backend", c.Store.Backend)
		}
	case BackendRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("config: REDIS_HOST is required for the %s backend", c.Store.Backend)
		}
	case BackendPostgres:
		if c.SQL.PostgresDSN == "" {
			return fmt.Errorf("config: POSTGRES_DSN is required for the %s backend", c.Store.Backend)
		}
	case BackendSQLite:
		if c.SQL.SQLitePath == "" {
			return fmt.Errorf("config: SQLITE_PATH is required for the %s backend", c.Store.Backend)
		}
	case BackendMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("config: MINIO_ENDPOINT and MINIO_BUCKET are required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Poll.Notify {
	case NotifyNone, NotifyLocal, NotifyRedis:
	default:
		return fmt.Errorf("config: unknown POLL_NOTIFY %q", c.Poll.Notify)
	}
	if c.Poll.MaxWait < 1 || c.Poll.MaxWait > pollCap {
		return fmt.Errorf("config: POLL_MAX_WAIT must be between 1 and %d, got %d", pollCap, c.Poll.MaxWait)
	}
	if min := time.Duration(c.Poll.MaxWait+5) * time.Second; c.Server.WriteTimeout < min {
		return fmt.Errorf("config: SERVER_WRITE_TIMEOUT %s must be at least %s to outlast a poll", c.Server.WriteTimeout, min)
	}
	if c.Todo.Suffix == "" {
		return fmt.Errorf("config: TODO_SUFFIX must not be empty")
	}
	if c.Auth.OIDCIssuer != "" && c.Auth.OIDCClientID == "" {
		return fmt.Errorf("config: OIDC_CLIENT_ID is required when OIDC_ISSUER is set")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.Store.Backend == BackendRedis || c.Poll.Notify == NotifyRedis || (c.RateLimit.Enabled && c.RateLimit.UseRedis)
}
