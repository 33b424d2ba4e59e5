package common

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from the environment.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	// BaseURL is the externally reachable address of this deployment; the
	// chainer posts continuations back to it.
	BaseURL        string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	InternalSecret string `env:"INTERNAL_TRIGGER_SECRET,notEmpty"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	S3Bucket   string `env:"S3_BUCKET,notEmpty"`
	S3Region   string `env:"S3_REGION" envDefault:"eu-north-1"`
	S3Endpoint string `env:"S3_ENDPOINT"`
	BlobPrefix string `env:"BLOB_PREFIX" envDefault:"pending/"`

	GeminiAPIKey  string `env:"GEMINI_API_KEY,notEmpty"`
	GeminiModel   string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`

	RetryMax          int           `env:"RETRY_MAX" envDefault:"3"`
	AttemptBudget     time.Duration `env:"ATTEMPT_BUDGET" envDefault:"8s"`
	ZombieAfter       time.Duration `env:"ZOMBIE_AFTER" envDefault:"10m"`
	JobTTL            time.Duration `env:"JOB_TTL" envDefault:"24h"`
	BlobMaxAge        time.Duration `env:"BLOB_MAX_AGE" envDefault:"24h"`
	UploadGrantTTL    time.Duration `env:"UPLOAD_GRANT_TTL" envDefault:"5m"`
	PendingSweepLimit int           `env:"PENDING_SWEEP_LIMIT" envDefault:"5"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, WrapError(err, "parse config")
	}
	return c, nil
}
