package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	CourtListener CourtListenerConfig `yaml:"courtlistener" mapstructure:"courtlistener"`
	Gatekeeper    GatekeeperConfig    `yaml:"gatekeeper" mapstructure:"gatekeeper"`
	Scout         ScoutConfig         `yaml:"scout" mapstructure:"scout"`
	Fetcher       FetcherConfig       `yaml:"fetcher" mapstructure:"fetcher"`
	Budget        BudgetConfig        `yaml:"budget" mapstructure:"budget"`
	Telemetry     TelemetryConfig     `yaml:"telemetry" mapstructure:"telemetry"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CourtListenerConfig holds docket API settings.
type CourtListenerConfig struct {
	Token             string `yaml:"token" mapstructure:"token"`
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	SearchURL         string `yaml:"search_url" mapstructure:"search_url"`
	RequestsPerSecond int    `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GatekeeperConfig holds scoring-backend settings for the relevance gate.
type GatekeeperConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	ScoreThreshold float64 `yaml:"score_threshold" mapstructure:"score_threshold"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ScoutConfig configures candidate discovery.
type ScoutConfig struct {
	MaxKeywordQueriesPerDeal int      `yaml:"max_keyword_queries_per_deal" mapstructure:"max_keyword_queries_per_deal"`
	DateGuardDays            int      `yaml:"date_guard_days" mapstructure:"date_guard_days"`
	AllowedDomainPatterns    []string `yaml:"allowed_domain_patterns" mapstructure:"allowed_domain_patterns"`
	CascadeFile              string   `yaml:"cascade_file" mapstructure:"cascade_file"`
	SessionCheckEvery        int      `yaml:"session_check_every" mapstructure:"session_check_every"`
	InterDealDelayMinMS      int      `yaml:"inter_deal_delay_min_ms" mapstructure:"inter_deal_delay_min_ms"`
	InterDealDelayMaxMS      int      `yaml:"inter_deal_delay_max_ms" mapstructure:"inter_deal_delay_max_ms"`
}

// FetcherConfig configures document downloads.
type FetcherConfig struct {
	DownloadDir      string `yaml:"download_dir" mapstructure:"download_dir"`
	MaxDocumentBytes int64  `yaml:"max_document_bytes" mapstructure:"max_document_bytes"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	StorageBaseURL   string `yaml:"storage_base_url" mapstructure:"storage_base_url"`
}

// BudgetConfig configures the daily external-call budget.
type BudgetConfig struct {
	MaxCallsPerDay int    `yaml:"max_calls_per_day" mapstructure:"max_calls_per_day"`
	StateFile      string `yaml:"state_file" mapstructure:"state_file"`
}

// TelemetryConfig configures the event log and benchmark report.
type TelemetryConfig struct {
	LogDir string `yaml:"log_dir" mapstructure:"log_dir"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RETRIEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "retrieval.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("courtlistener.base_url", "https://www.courtlistener.com/api/rest/v4")
	v.SetDefault("courtlistener.search_url", "https://www.courtlistener.com/api/rest/v4/search/")
	v.SetDefault("courtlistener.requests_per_second", 10)
	v.SetDefault("courtlistener.timeout_secs", 30)
	v.SetDefault("gatekeeper.model", "claude-haiku-4-5-20251001")
	v.SetDefault("gatekeeper.score_threshold", 0.70)
	v.SetDefault("gatekeeper.max_tokens", 150)
	v.SetDefault("gatekeeper.timeout_secs", 30)
	v.SetDefault("scout.max_keyword_queries_per_deal", 6)
	v.SetDefault("scout.date_guard_days", 30)
	v.SetDefault("scout.session_check_every", 10)
	v.SetDefault("scout.inter_deal_delay_min_ms", 500)
	v.SetDefault("scout.inter_deal_delay_max_ms", 2500)
	v.SetDefault("scout.allowed_domain_patterns", []string{
		`kroll\.com`,
		`cases\.stretto\.com`,
		`dm\.epiq11\.com`,
		`storage\.courtlistener\.com`,
		`ecf\.\w+\.uscourts\.gov`,
		`assets\.kroll\.com`,
	})
	v.SetDefault("fetcher.download_dir", "./downloads")
	v.SetDefault("fetcher.max_document_bytes", 52_428_800) // 50 MB
	v.SetDefault("fetcher.timeout_secs", 60)
	v.SetDefault("fetcher.storage_base_url", "https://storage.courtlistener.com")
	v.SetDefault("budget.max_calls_per_day", 4800)
	v.SetDefault("budget.state_file", "./rate_limit_state.json")
	v.SetDefault("telemetry.log_dir", "./logs")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
