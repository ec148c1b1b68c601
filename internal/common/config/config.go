// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Store         StoreConfig             `mapstructure:"store"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Flow          FlowConfig              `mapstructure:"flow"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	RequireAuth     bool   `mapstructure:"require_auth"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// Store backends.
const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
)

// StoreConfig selects and tunes the draft store.
type StoreConfig struct {
	Backend        string `mapstructure:"backend"`
	StrictVersions bool   `mapstructure:"strict_versions"`
	KeyPrefix      string `mapstructure:"key_prefix"`
	DraftTTL       int    `mapstructure:"draft_ttl"` // milliseconds, 0 keeps drafts forever
	Timeout        int    `mapstructure:"timeout"`   // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Token decoding modes.
const (
	TokenModeClaims   = "claims"
	TokenModeKeycloak = "keycloak"
)

// AuthConfig controls how resume tokens and API bearer tokens are decoded.
type AuthConfig struct {
	TokenMode string `mapstructure:"token_mode"`

	Keycloak struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"keycloak"`
}

type CamundaConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	BrokerAddress    string `mapstructure:"broker_address"`
	Plaintext        bool   `mapstructure:"plaintext"`
	SubmitProcessID  string `mapstructure:"submit_process_id"`
	RequestTimeout   int    `mapstructure:"request_timeout"` // milliseconds
	MaxRetries       int    `mapstructure:"max_retries"`
	RetryBaseDelayMS int    `mapstructure:"retry_base_delay"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

// NotificationConfig holds settings for the submission receipt hooks.
type NotificationConfig struct {
	HookTimeout int `mapstructure:"hook_timeout"` // milliseconds, per submission hook
	AWS         struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		Subject   string `mapstructure:"subject"`
	} `mapstructure:"email"`
	Topic struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"topic"`
}

// FlowConfig holds intake flow and session settings.
type FlowConfig struct {
	BaselineRole    string `mapstructure:"baseline_role"`
	BaselineTrack   string `mapstructure:"baseline_track"`
	DefinitionsDir  string `mapstructure:"definitions_dir"`
	LoginRedirect   string `mapstructure:"login_redirect"`
	SuccessRedirect string `mapstructure:"success_redirect"`
	FlowRedirect    string `mapstructure:"flow_redirect"` // e.g. /apply/%s
	BackendURL      string `mapstructure:"backend_url"`
	AutosaveTimeout int    `mapstructure:"autosave_timeout"` // milliseconds
	SubmitTimeout   int    `mapstructure:"submit_timeout"`   // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
