package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"

	"home-services/realtime-service/internal/utils/mongodb"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	MongoDB  mongodb.Config
	Redis    RedisConfig
	Auth     AuthConfig
	Minio    MinioConfig
	Realtime RealtimeConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string   `env:"SERVER_PORT" envDefault:"8009"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty      bool     `env:"LOG_PRETTY" envDefault:"false"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:8001"`
	// StoreBackend is "mongo" or "memory"; memory keeps everything in process.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"mongo"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
}

// AuthConfig selects how bearer credentials are verified. When ServiceURL is
// set, tokens are validated by the auth service; otherwise locally with JWTSecret.
type AuthConfig struct {
	JWTSecret  string `env:"JWT_SECRET"`
	ServiceURL string `env:"AUTH_SERVICE_URL"`
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"chat-attachments"`
	PublicURL string `env:"MINIO_PUBLIC_URL" envDefault:"http://localhost:9000"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type RealtimeConfig struct {
	AllowedOrigins    []string      `env:"WS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"localhost:3000,localhost:8001"`
	SendQueueSize     int           `env:"WS_SEND_QUEUE" envDefault:"256"`
	WriteTimeout      time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"5s"`
	HeartbeatInterval time.Duration `env:"WS_HEARTBEAT_INTERVAL" envDefault:"25s"`
	HeartbeatTimeout  time.Duration `env:"WS_HEARTBEAT_TIMEOUT" envDefault:"5s"`
	HandshakeTimeout  time.Duration `env:"WS_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	MaxFrameBytes     int64         `env:"WS_MAX_FRAME_BYTES" envDefault:"15728640"`
	RateEvents        int           `env:"WS_RATE_EVENTS" envDefault:"120"`
	RateWindow        time.Duration `env:"WS_RATE_WINDOW" envDefault:"10s"`
	InstanceID        string        `env:"INSTANCE_ID"`
}

// NewConfig creates a new Config
func NewConfig() (*Config, error) {
	cfg := new(Config)
	err := env.Parse(cfg)

	return cfg, err
}
