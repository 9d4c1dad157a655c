package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type RateLimitBucketConfig struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

type RateLimitConfig struct {
	Launch RateLimitBucketConfig `yaml:"launch"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

type Config struct {
	Port          int    `yaml:"port"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	Timezone      string `yaml:"timezone"`
	LogLevel      string `yaml:"logLevel"`
	LogFormat     string `yaml:"logFormat"`
	Env           string `yaml:"env"`

	// Static bearer tokens accepted by the API, mapped to owner ids. The
	// surrounding identity system is out of scope; this is the hook it plugs
	// into.
	APITokens map[string]string `yaml:"apiTokens"`

	// Tokens that may additionally call the admin endpoints. Each entry must
	// also be present in APITokens.
	AdminTokens []string `yaml:"adminTokens"`

	DefaultConcurrency    int `yaml:"defaultConcurrency"`
	MaxConcurrency        int `yaml:"maxConcurrency"`
	DefaultRequestDelayMs int `yaml:"defaultRequestDelayMs"`
	DispatchTimeoutSecs   int `yaml:"dispatchTimeoutSeconds"`
	MaxPromptsPerBatch    int `yaml:"maxPromptsPerBatch"`

	ReportRetentionHours          int    `yaml:"reportRetentionHours"`
	RetentionSweepIntervalSeconds int    `yaml:"retentionSweepIntervalSeconds"`
	WebhookHmacSecret             string `yaml:"webhookHmacSecret"`

	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// LoadConfigOptional loads the YAML file when a path is given and otherwise
// starts from defaults; environment variables override in both cases.
func LoadConfigOptional(filePath string) (*Config, error) {
	var c Config
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, err
		}
	}
	c.applyEnv()
	c.applyDefaults()

	log.Printf("geoscope config: {Port:%d Redis:%s TZ:%s Concurrency:%d Delay:%dms Retention:%dh}\n",
		c.Port, c.RedisAddr, c.Timezone, c.DefaultConcurrency, c.DefaultRequestDelayMs, c.ReportRetentionHours)
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("DEFAULT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DefaultConcurrency = n
		}
	}
	if v := os.Getenv("MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrency = n
		}
	}
	if v := os.Getenv("DEFAULT_REQUEST_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DefaultRequestDelayMs = n
		}
	}
	if v := os.Getenv("DISPATCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DispatchTimeoutSecs = n
		}
	}
	if v := os.Getenv("MAX_PROMPTS_PER_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxPromptsPerBatch = n
		}
	}
	if v := os.Getenv("REPORT_RETENTION_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ReportRetentionHours = n
		}
	}
	if v := os.Getenv("RETENTION_SWEEP_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RetentionSweepIntervalSeconds = n
		}
	}
	if v := os.Getenv("WEBHOOK_HMAC_SECRET"); v != "" {
		c.WebhookHmacSecret = v
	}
	if v := os.Getenv("GEOSCOPE_API_TOKEN"); v != "" {
		// Single-token dev shortcut; owner id defaults to "local".
		if c.APITokens == nil {
			c.APITokens = map[string]string{}
		}
		c.APITokens[v] = "local"
	}
	if v := os.Getenv("GEOSCOPE_ADMIN_TOKEN"); v != "" {
		if c.APITokens == nil {
			c.APITokens = map[string]string{}
		}
		if _, ok := c.APITokens[v]; !ok {
			c.APITokens[v] = "admin"
		}
		c.AdminTokens = append(c.AdminTokens, v)
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.DefaultConcurrency <= 0 {
		c.DefaultConcurrency = 3
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 20
	}
	if c.DefaultRequestDelayMs < 0 {
		c.DefaultRequestDelayMs = 0
	} else if c.DefaultRequestDelayMs == 0 {
		c.DefaultRequestDelayMs = 500
	}
	if c.DispatchTimeoutSecs <= 0 {
		c.DispatchTimeoutSecs = 30
	}
	if c.MaxPromptsPerBatch <= 0 {
		c.MaxPromptsPerBatch = 200
	}
	if c.ReportRetentionHours <= 0 {
		c.ReportRetentionHours = 24
	}
	if c.RetentionSweepIntervalSeconds <= 0 {
		c.RetentionSweepIntervalSeconds = 600
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "geoscope"
	}
}

func (c *Config) Validate() error {
	var errs []string
	env := strings.ToLower(strings.TrimSpace(c.Env))
	dev := env == "dev"

	if len(c.APITokens) == 0 && !dev {
		errs = append(errs, "apiTokens is required in non-dev")
	}
	if c.MaxConcurrency < c.DefaultConcurrency {
		errs = append(errs, "maxConcurrency must be >= defaultConcurrency")
	}
	for _, tok := range c.AdminTokens {
		if _, ok := c.APITokens[tok]; !ok {
			errs = append(errs, "adminTokens entries must also appear in apiTokens")
			break
		}
	}
	if c.Tracing.Enabled && strings.TrimSpace(c.Tracing.OTLPEndpoint) == "" && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		errs = append(errs, "tracing.otlpEndpoint is required when tracing is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
