package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Logger   LoggerConfig
	Security SecurityConfig
	Tracing  TracingConfig
}

type ServerConfig struct {
	Host            string        `envconfig:"HOST" default:"localhost" validate:"required"`
	Port            int           `envconfig:"PORT" default:"8084" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

type DataConfig struct {
	CSVFile  string `envconfig:"CSV_FILE" default:"ventas.csv" validate:"required"`
	CacheDir string `envconfig:"CACHE_DIR" default:".cache"`
}

type LoggerConfig struct {
	Level  string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
}

type SecurityConfig struct {
	EnableRateLimit bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RateLimitRPS    int           `envconfig:"RATE_LIMIT_RPS" default:"100" validate:"gt=0"`
	RateLimitBurst  int           `envconfig:"RATE_LIMIT_BURST" default:"10" validate:"gt=0"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8084"`
	TrustedProxies  []string      `envconfig:"TRUSTED_PROXIES" default:"127.0.0.1"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"8h"`
	SecureCookies   bool          `envconfig:"SECURE_COOKIES" default:"false"`
}

type TracingConfig struct {
	Exporter    string `envconfig:"EXPORTER" default:"none" validate:"oneof=none stdout"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"sales-dashboard"`
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	sections := []struct {
		prefix string
		spec   any
	}{
		{"SERVER", &cfg.Server},
		{"", &cfg.Data},
		{"LOG", &cfg.Logger},
		{"SECURITY", &cfg.Security},
		{"TRACING", &cfg.Tracing},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.spec); err != nil {
			return nil, fmt.Errorf("read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

var validate = validator.New()

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return errors.New(strings.Join(fields, "; "))
		}
		return err
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if slices.Contains(c.Security.AllowedOrigins, "*") && len(c.Security.AllowedOrigins) > 1 {
		return fmt.Errorf("allowed origins cannot mix %q with explicit origins", "*")
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// fileExists reports whether path names a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// CheckDataFile verifies the configured data file before the server starts.
func (c *Config) CheckDataFile() error {
	if !fileExists(c.Data.CSVFile) {
		return fmt.Errorf("data file %q not found", c.Data.CSVFile)
	}
	return nil
}
