// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	APIs          APIsConfig         `mapstructure:"apis"`
	Pipeline      PipelineConfig     `mapstructure:"pipeline"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
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
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	Index      string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
		MaxRetries int    `mapstructure:"max_retries"`
	} `mapstructure:"genai"`
}

// ConfidenceWeights blends the analyzer and generator confidence estimates.
// The two weights should sum to 1.
type ConfidenceWeights struct {
	Analyzer  float64 `mapstructure:"analyzer"`
	Generator float64 `mapstructure:"generator"`
}

// PipelineConfig holds the tunable thresholds of the handoff workflow.
type PipelineConfig struct {
	SimilarityThreshold float64           `mapstructure:"similarity_threshold"`
	RetrievalLimit      int               `mapstructure:"retrieval_limit"`
	MaxSuggestions      int               `mapstructure:"max_suggestions"`
	ConfidenceWeights   ConfidenceWeights `mapstructure:"confidence_weights"`
	RedThreshold        float64           `mapstructure:"red_threshold"`
	YellowThreshold     float64           `mapstructure:"yellow_threshold"`
	SuggestionThreshold float64           `mapstructure:"suggestion_threshold"`
	EarlyExitConfidence float64           `mapstructure:"early_exit_confidence"`
	LLMPoolSize         int               `mapstructure:"llm_pool_size"`
	LLMMaxConcurrent    int               `mapstructure:"llm_max_concurrent"` // per pool handle
	BatchMaxConcurrency int               `mapstructure:"batch_max_concurrency"`
	CacheTTL            int               `mapstructure:"cache_ttl"` // seconds
	EagerRetrieval      bool              `mapstructure:"eager_retrieval"`
}

// NotificationConfig holds settings for escalation notifications on red
// transitions.
type NotificationConfig struct {
	Email EmailConfig `mapstructure:"email"`
	SMS   SMSConfig   `mapstructure:"sms"`
	AWS   AWSConfig   `mapstructure:"aws"`
}

type EmailConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FromEmail string `mapstructure:"from_email"`
	AgentDesk string `mapstructure:"agent_desk"` // destination address
}

type SMSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	TopicARN string `mapstructure:"topic_arn"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
