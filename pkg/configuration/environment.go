package configuration

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/leadflow/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the given env files from the working directory, or from the
// nearest directory containing go.mod when none exist in the working directory.
func LoadEnv(envFiles []string) (int, error) {
	existing := existingFiles("", envFiles)
	if len(existing) == 0 {
		if root, ok := findModuleRoot(); ok {
			existing = existingFiles(root, envFiles)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func existingFiles(dir string, envFiles []string) []string {
	result := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			result = append(result, path)
		}
	}
	return result
}

func findModuleRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type RedisOptions struct {
	URL             string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	ConnectTimeout  time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"2s"`
	ConversationTTL time.Duration `env:"CONVERSATION_TTL" envDefault:"720h"`
	KeyPrefix       string        `env:"STORE_KEY_PREFIX" envDefault:"leadflow:conversations:v1"`
}

type SMSOptions struct {
	GatewayURL          string        `env:"SMS_GATEWAY_URL"`
	GatewayToken        string        `env:"SMS_GATEWAY_TOKEN"`
	Timeout             time.Duration `env:"SMS_TIMEOUT" envDefault:"10s"`
	DailyLimit          int           `env:"SMS_DAILY_LIMIT" envDefault:"3"`
	FollowUpWeeklyLimit int           `env:"FOLLOWUP_WEEKLY_LIMIT" envDefault:"2"`
	LimiterStorage      string        `env:"SMS_LIMITER_STORAGE" envDefault:"redis"` // memory or redis
	LimiterSweep        time.Duration `env:"SMS_LIMITER_SWEEP_INTERVAL" envDefault:"1h"`
}

func (s *SMSOptions) Validate() error {
	if s.Timeout <= 0 {
		return fmt.Errorf("SMS_TIMEOUT must be positive, got %s", s.Timeout)
	}
	if s.DailyLimit < 0 || s.FollowUpWeeklyLimit < 0 {
		return fmt.Errorf("sms limits must be non-negative")
	}
	if s.LimiterStorage != "memory" && s.LimiterStorage != "redis" {
		return fmt.Errorf("SMS_LIMITER_STORAGE must be 'memory' or 'redis', got '%s'", s.LimiterStorage)
	}
	if s.LimiterSweep <= 0 {
		return fmt.Errorf("SMS_LIMITER_SWEEP_INTERVAL must be positive, got %s", s.LimiterSweep)
	}
	return nil
}

type QuietHoursOptions struct {
	Enabled  bool   `env:"QUIET_HOURS_ENABLED" envDefault:"true"`
	Start    int    `env:"QUIET_HOURS_START" envDefault:"21"`
	End      int    `env:"QUIET_HOURS_END" envDefault:"8"`
	Timezone string `env:"QUIET_HOURS_TZ" envDefault:"America/New_York"`
}

func (q *QuietHoursOptions) Validate() error {
	if q.Start < 0 || q.Start > 23 || q.End < 0 || q.End > 23 {
		return fmt.Errorf("quiet hours must be within 0-23, got start=%d end=%d", q.Start, q.End)
	}
	if _, err := time.LoadLocation(q.Timezone); err != nil {
		return fmt.Errorf("invalid QUIET_HOURS_TZ=%q: %w", q.Timezone, err)
	}
	return nil
}

type ScoringOptions struct {
	HotThresholdMonths  float64 `env:"HOT_THRESHOLD_MONTHS" envDefault:"3"`
	WarmThresholdMonths float64 `env:"WARM_THRESHOLD_MONTHS" envDefault:"6"`
}

func (s *ScoringOptions) Validate() error {
	if s.HotThresholdMonths < 0 || s.WarmThresholdMonths < s.HotThresholdMonths {
		return fmt.Errorf("scoring thresholds must satisfy 0 <= hot <= warm, got hot=%v warm=%v",
			s.HotThresholdMonths, s.WarmThresholdMonths)
	}
	return nil
}

type CRMOptions struct {
	BaseURL    string        `env:"CRM_BASE_URL"`
	APIKey     string        `env:"CRM_API_KEY"`
	Timeout    time.Duration `env:"CRM_TIMEOUT" envDefault:"10s"`
	MaxRetries uint64        `env:"CRM_MAX_RETRIES" envDefault:"3"`
}

type OpenAIOptions struct {
	Key         string  `env:"OPENAI_KEY"`
	BaseURL     string  `env:"OPENAI_BASE_URL"`
	Model       string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	Temperature float64 `env:"OPENAI_TEMPERATURE" envDefault:"0.4"`
	MaxTokens   int64   `env:"OPENAI_MAX_TOKENS" envDefault:"600"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"leadflow"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	GlobalRPS int    `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"1000"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL  string `env:"RATE_LIMIT_REDIS_URL"`
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if r.GlobalRPS < 0 {
		return fmt.Errorf("rate limit GlobalRPS must be non-negative, got %d", r.GlobalRPS)
	}
	if r.GlobalRPS > 1000000 {
		return fmt.Errorf("rate limit GlobalRPS too high, maximum is 1,000,000, got %d", r.GlobalRPS)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type WebhookOptions struct {
	Secret    string        `env:"WEBHOOK_SECRET"`
	ReplayTTL time.Duration `env:"WEBHOOK_REPLAY_TTL" envDefault:"10m"`
	MaxSkew   time.Duration `env:"WEBHOOK_MAX_SKEW" envDefault:"5m"`
}

type Configuration struct {
	Redis         RedisOptions
	SMS           SMSOptions
	QuietHours    QuietHoursOptions
	Scoring       ScoringOptions
	CRM           CRMOptions
	OpenAI        OpenAIOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	Webhook       WebhookOptions

	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/app.log"`
	// Looked up on every request; a random uuidv4 is generated when absent.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	RealIPHeader    string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`
	AllowedOrigins  string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	logFile io.Closer
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	return logging.ParseLevel(c.LogLevel)
}

func (c *Configuration) Origins() []string {
	var origins []string
	for _, part := range strings.Split(c.AllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := c.parse(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger
	return nil
}

// parse reads the process environment into c and validates every option group.
func (c *Configuration) parse() error {
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if err := c.SMS.Validate(); err != nil {
		return fmt.Errorf("sms configuration error: %w", err)
	}
	if err := c.QuietHours.Validate(); err != nil {
		return fmt.Errorf("quiet hours configuration error: %w", err)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring configuration error: %w", err)
	}

	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
