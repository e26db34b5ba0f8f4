// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like SLACK_WEBHOOK_URL
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored if not present
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations (for running from different directories)
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars replaces ${VAR} placeholders in string settings with env values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)
		if s, ok := val.(string); ok && strings.Contains(s, "${") {
			v.Set(key, os.ExpandEnv(s))
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "support-engine"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Search.Index == "" {
		cfg.Search.Index = "kb_articles"
	}
	if cfg.Search.PerQuerySize == 0 {
		cfg.Search.PerQuerySize = 8
	}
	if cfg.Search.GlobalAppSlug == "" {
		cfg.Search.GlobalAppSlug = "*"
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 3000
	}
	if cfg.Answer.MaxTokens == 0 {
		cfg.Answer.MaxTokens = 400
	}
	if cfg.Answer.Timeout == 0 {
		cfg.Answer.Timeout = 5000
	}
	if cfg.Guards.RateWindow == 0 {
		cfg.Guards.RateWindow = 60
	}
	if cfg.Guards.RateLimit == 0 {
		cfg.Guards.RateLimit = 10
	}
	if cfg.Guards.DedupTTL == 0 {
		cfg.Guards.DedupTTL = 300
	}
	if cfg.Guards.DedupPruneSize == 0 {
		cfg.Guards.DedupPruneSize = 1000
	}
	if cfg.Triage.LookbackHours == 0 {
		cfg.Triage.LookbackHours = 24
	}
	if cfg.Triage.CronSchedule == "" {
		cfg.Triage.CronSchedule = "0 8 * * *"
	}
	if cfg.Triage.ClusterExamples == 0 {
		cfg.Triage.ClusterExamples = 3
	}
	if cfg.Alerts.Timeout == 0 {
		cfg.Alerts.Timeout = 4000
	}
	if cfg.Alerts.AWSRegion == "" {
		cfg.Alerts.AWSRegion = "us-east-1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.url is required")
	}
	if cfg.Answer.Enabled && cfg.Answer.BaseURL == "" {
		return fmt.Errorf("answer.base_url is required when answer.enabled is set")
	}
	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL == "" {
		return fmt.Errorf("alerts.slack.webhook_url is required when alerts.slack.enabled is set")
	}
	if cfg.Alerts.SNS.Enabled && cfg.Alerts.SNS.TopicARN == "" {
		return fmt.Errorf("alerts.sns.topic_arn is required when alerts.sns.enabled is set")
	}
	return nil
}
