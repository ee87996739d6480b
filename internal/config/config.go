package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Store     StoreConfig     `mapstructure:"store"`
	Quiz      QuizConfig      `mapstructure:"quiz"`
	Source    SourceConfig    `mapstructure:"source"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Events    EventsConfig    `mapstructure:"events"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

// StoreConfig 会话存储后端: mysql | memory
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// QuizConfig 答题引擎可调参数，配置热更新时会整体替换
type QuizConfig struct {
	MaxQuestionsPerCombination     int           `mapstructure:"max_questions_per_combination"`
	DefaultQuestionsPerCombination int           `mapstructure:"default_questions_per_combination"`
	WeakTopicThreshold             float64       `mapstructure:"weak_topic_threshold"`
	GenerationConcurrency          int           `mapstructure:"generation_concurrency"`
	GenerationTimeout              time.Duration `mapstructure:"generation_timeout"`
}

// SourceConfig 题目来源: template | ai | gemini
type SourceConfig struct {
	Type            string        `mapstructure:"type"`
	FallbackEnabled bool          `mapstructure:"fallback_enabled"`
	AI              AIConfig      `mapstructure:"ai"`
	Gemini          GeminiConfig  `mapstructure:"gemini"`
	CacheEnabled    bool          `mapstructure:"cache_enabled"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

type AIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type TracingConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	ServiceName       string  `mapstructure:"service_name"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SampleRatio       float64 `mapstructure:"sample_ratio"`
}

// LogConfig 日志文件轮转参数，Level 为空时按 server.mode 决定
type LogConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type EventsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

// DefaultQuizConfig 未配置时使用的引擎参数
func DefaultQuizConfig() QuizConfig {
	return QuizConfig{
		MaxQuestionsPerCombination:     10,
		DefaultQuestionsPerCombination: 3,
		WeakTopicThreshold:             60,
		GenerationConcurrency:          4,
		GenerationTimeout:              60 * time.Second,
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultQuizConfig()
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("store.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("quiz.max_questions_per_combination", d.MaxQuestionsPerCombination)
	v.SetDefault("quiz.default_questions_per_combination", d.DefaultQuestionsPerCombination)
	v.SetDefault("quiz.weak_topic_threshold", d.WeakTopicThreshold)
	v.SetDefault("quiz.generation_concurrency", d.GenerationConcurrency)
	v.SetDefault("quiz.generation_timeout", d.GenerationTimeout)
	v.SetDefault("source.type", "template")
	v.SetDefault("source.fallback_enabled", true)
	v.SetDefault("source.ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("source.ai.model", "gpt-3.5-turbo")
	v.SetDefault("source.gemini.model", "gemini-1.5-flash")
	v.SetDefault("source.cache_ttl", 10*time.Minute)
	v.SetDefault("events.exchange", "quiz.events")
	v.SetDefault("tracing.service_name", "dynamic-quiz")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("log.file", "logs/quiz.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("QUIZ")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("store.driver", "STORE_DRIVER")

	// 题目来源
	v.BindEnv("source.type", "SOURCE_TYPE")
	v.BindEnv("source.ai.base_url", "AI_BASE_URL")
	v.BindEnv("source.ai.api_key", "AI_API_KEY")
	v.BindEnv("source.ai.model", "AI_MODEL")
	v.BindEnv("source.gemini.api_key", "GEMINI_API_KEY")

	// Events
	v.BindEnv("events.amqp_url", "AMQP_URL")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Log
	v.BindEnv("log.level", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Quiz.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (q QuizConfig) Validate() error {
	if q.MaxQuestionsPerCombination < 1 {
		return fmt.Errorf("quiz.max_questions_per_combination must be positive, got %d", q.MaxQuestionsPerCombination)
	}
	if q.DefaultQuestionsPerCombination < 1 || q.DefaultQuestionsPerCombination > q.MaxQuestionsPerCombination {
		return fmt.Errorf("quiz.default_questions_per_combination must be within [1, %d], got %d",
			q.MaxQuestionsPerCombination, q.DefaultQuestionsPerCombination)
	}
	if q.WeakTopicThreshold < 0 || q.WeakTopicThreshold > 100 {
		return fmt.Errorf("quiz.weak_topic_threshold must be within [0, 100], got %v", q.WeakTopicThreshold)
	}
	if q.GenerationConcurrency < 1 {
		return fmt.Errorf("quiz.generation_concurrency must be positive, got %d", q.GenerationConcurrency)
	}
	return nil
}
