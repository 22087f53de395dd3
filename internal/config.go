package internal

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerTag            string        `env:"SERVER_TAG,required=true" validate:"required,excludes=:"`
	ChatConfigPath       string        `env:"CHAT_CONFIG_PATH"`
	AuditStore           string        `env:"AUDIT_STORE,default=badger" validate:"oneof=badger sqlite postgres"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH" validate:"required_if=AuditStore badger"`
	SQLiteFilepath       string        `env:"SQLITE_FILEPATH" validate:"required_if=AuditStore sqlite"`
	PostgresDSN          string        `env:"POSTGRES_DSN" validate:"required_if=AuditStore postgres"`
	BufferSize           int           `env:"BUFFER_SIZE,required=true" validate:"gt=0"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true" validate:"gt=0"`
	NumberOfWorkers      int           `env:"NUMBER_OF_WORKERS,required=true" validate:"gt=0"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,required=true" validate:"gt=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true" validate:"gt=0"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true" validate:"gt=0"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,required=true" validate:"gte=1,lte=100"`
	DrainTimeout         time.Duration `env:"DRAIN_TIMEOUT,default=5s" validate:"gte=0"`
	FilterMatchTimeout   time.Duration `env:"FILTER_MATCH_TIMEOUT,default=100ms" validate:"gte=0"`
	BreakerMaxFailures   int           `env:"BREAKER_MAX_FAILURES,default=5" validate:"gte=0"`
	BreakerOpenTimeout   time.Duration `env:"BREAKER_OPEN_TIMEOUT,default=30s" validate:"gte=0"`
	LogLevel             string        `env:"LOG_LEVEL,required=true" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=25575" validate:"gte=0,lte=65535"`
}

// Load reads envFile when given, an optional .env otherwise, then the environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("env file %q: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, err
	}
	if err := validator.New().Struct(config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
