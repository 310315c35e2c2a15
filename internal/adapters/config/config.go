package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"arbiter/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	AI            AIConfig
	Decision      DecisionConfig
	Policy        PolicyConfig
	Explain       ExplainConfig
	ErrorTracking ErrorTrackingConfig
	Metrics       MetricsConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"arbiter"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"arbiter"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled       bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers       []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	GroupID       string   `envconfig:"KAFKA_GROUP_ID" default:"arbiter"`
	OutcomesTopic string   `envconfig:"KAFKA_OUTCOMES_TOPIC" default:"decision.outcomes"`
}

type AIConfig struct {
	APIKey        string        `envconfig:"OPENAI_API_KEY"`
	BaseURL       string        `envconfig:"OPENAI_BASE_URL"`
	Model         string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	MaxTokens     int           `envconfig:"AI_MAX_TOKENS" default:"1024"`
	Temperature   float64       `envconfig:"AI_TEMPERATURE" default:"0.3"`
	Timeout       time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	ReqPerMinute  float64       `envconfig:"AI_REQ_PER_MINUTE" default:"300"`
	MaxRetries    int           `envconfig:"AI_MAX_RETRIES" default:"3"`
	RetryBaseWait time.Duration `envconfig:"AI_RETRY_BASE_WAIT" default:"500ms"`
}

// DecisionConfig carries tunables of the collaboration protocol. The
// confidence-disagreement threshold is a tuned default, not a semantic
// constant.
type DecisionConfig struct {
	ConfidenceSpreadThreshold float64       `envconfig:"DECISION_CONFIDENCE_SPREAD_THRESHOLD" default:"0.3"`
	DebateTimeout             time.Duration `envconfig:"DECISION_DEBATE_TIMEOUT" default:"90s"`
	AgentTimeout              time.Duration `envconfig:"DECISION_AGENT_TIMEOUT" default:"60s"`
}

// PolicyConfig carries reinforcement-learning tunables.
type PolicyConfig struct {
	InitialExplorationRate float64 `envconfig:"POLICY_EXPLORATION_RATE" default:"0.1"`
	ExplorationFloor       float64 `envconfig:"POLICY_EXPLORATION_FLOOR" default:"0.01"`
	ExplorationDecay       float64 `envconfig:"POLICY_EXPLORATION_DECAY" default:"0.995"`
	BatchSize              int     `envconfig:"POLICY_BATCH_SIZE" default:"32"`
	MinRewardedExperiences int     `envconfig:"POLICY_MIN_REWARDED_EXPERIENCES" default:"10"`
	PriorityExponent       float64 `envconfig:"POLICY_PRIORITY_EXPONENT" default:"0.6"`
	ClipEpsilon            float64 `envconfig:"POLICY_CLIP_EPSILON" default:"0.2"`
	EntropyCoefficient     float64 `envconfig:"POLICY_ENTROPY_COEFFICIENT" default:"0.01"`
	LearningRate           float64 `envconfig:"POLICY_LEARNING_RATE" default:"0.01"`
	BufferCapacity         int     `envconfig:"POLICY_BUFFER_CAPACITY" default:"10000"`
	RewardStrategy         string  `envconfig:"POLICY_REWARD_STRATEGY" default:"balanced"`
}

type ExplainConfig struct {
	CacheTTL time.Duration `envconfig:"EXPLAIN_CACHE_TTL" default:"24h"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Addr    string `envconfig:"METRICS_ADDR" default:":9090"`
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	PolicyTrainerInterval time.Duration `envconfig:"WORKER_POLICY_TRAINER_INTERVAL" default:"5m"`
	PolicyTrainerEnabled  bool          `envconfig:"WORKER_POLICY_TRAINER_ENABLED" default:"true"`
	ModelSnapshotInterval time.Duration `envconfig:"WORKER_MODEL_SNAPSHOT_INTERVAL" default:"30m"`
	ModelSnapshotEnabled  bool          `envconfig:"WORKER_MODEL_SNAPSHOT_ENABLED" default:"true"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
