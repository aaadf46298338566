package config

import "time"

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Understanding UnderstandingConfig `mapstructure:"understanding"`
	Speech        SpeechConfig        `mapstructure:"speech"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Orchestrator  OrchestratorConfig  `mapstructure:"orchestrator"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Vault         VaultConfig         `mapstructure:"vault"`
	OpenTelemetry OpenTelemetryConfig `mapstructure:"opentelemetry"`
	Prometheus    PrometheusConfig    `mapstructure:"prometheus"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	CORS          CORSConfig          `mapstructure:"cors"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// QueueConfig selects the turn-event broker: "nats", "rabbitmq", or ""
// to disable event publishing.
type QueueConfig struct {
	Provider string `mapstructure:"provider"`
	URL      string `mapstructure:"url"`
}

type EngineConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type UnderstandingConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SpeechConfig struct {
	RecognizerURL     string        `mapstructure:"recognizer_url"`
	SynthesizerURL    string        `mapstructure:"synthesizer_url"`
	RecognizerTimeout time.Duration `mapstructure:"recognizer_timeout"`
	SynthesisTimeout  time.Duration `mapstructure:"synthesis_timeout"`
}

type AudioConfig struct {
	RelayWorkers int `mapstructure:"relay_workers"`
}

type OrchestratorConfig struct {
	FailFast      bool          `mapstructure:"fail_fast"`
	CPULoadLimit  float64       `mapstructure:"cpu_load_limit"`
	SpeechTimeout time.Duration `mapstructure:"speech_timeout"`
	ActionWait    time.Duration `mapstructure:"action_wait"`
	ContextTTL    time.Duration `mapstructure:"context_ttl"`
	PageTTL       time.Duration `mapstructure:"page_ttl"`
}

type JWTConfig struct {
	// Secret is the HMAC verification key; left empty it is fetched from
	// Vault instead.
	Secret string `mapstructure:"secret"`
}

type VaultConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
}

type OpenTelemetryConfig struct {
	Enabled     bool         `mapstructure:"enabled"`
	ServiceName string       `mapstructure:"service_name"`
	Jaeger      JaegerConfig `mapstructure:"jaeger"`
}

type JaegerConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	ExposeHeaders  []string `mapstructure:"expose_headers"`
	MaxAge         int      `mapstructure:"max_age"`
	Credentials    bool     `mapstructure:"credentials"`
}
