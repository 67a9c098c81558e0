package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Region              string  `mapstructure:"region"`                 // AWS region for Bedrock
	ModelID             string  `mapstructure:"model_id"`               // Bedrock model identifier
	InferenceProfileARN string  `mapstructure:"inference_profile_arn"`  // Optional routing profile; probed once per run
	MaxTokens           int     `mapstructure:"max_tokens"`             // Model response token cap
	InvokeAttempts      int     `mapstructure:"invoke_attempts"`        // Retry ceiling for transient inference failures
	DisableSSLVerify    bool    `mapstructure:"disable_ssl_verify"`     // Skip TLS verification on outbound calls
	KubeconfigPath      string  `mapstructure:"kubeconfig_path"`        // Empty = in-cluster, then ~/.kube/config
	Namespace           string  `mapstructure:"namespace"`              // Empty = all namespaces
	MaxPods             int     `mapstructure:"max_pods"`               // Pod fan-out cap per fetch
	ShardTimeoutSec     int     `mapstructure:"shard_timeout_sec"`      // Per-pod/per-query fetch timeout
	PrometheusURL       string  `mapstructure:"prometheus_url"`
	MaxRecords          int     `mapstructure:"max_records"`            // Record cap after filtering
	PromptBudget        int     `mapstructure:"prompt_budget"`          // Hard character budget for the rendered prompt
	SamplesPerPattern   int     `mapstructure:"samples_per_pattern"`    // Verbatim samples kept per signature
	ReportDir           string  `mapstructure:"report_dir"`             // Where the CLI writes analysis markdown
	LogLevel            string  `mapstructure:"log_level"`
	LogFormat           string  `mapstructure:"log_format"`             // "json" | "console"
	LogFilePath         string  `mapstructure:"log_file_path"`          // Empty = stderr only
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/log-explorer/")
	viper.AddConfigPath("$HOME/.log-explorer")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("region", "eu-west-1")
	viper.SetDefault("model_id", "anthropic.claude-3-sonnet-20240229-v1:0")
	viper.SetDefault("inference_profile_arn", "")
	viper.SetDefault("max_tokens", 4096)
	viper.SetDefault("invoke_attempts", 3)
	viper.SetDefault("disable_ssl_verify", false)
	viper.SetDefault("kubeconfig_path", "")
	viper.SetDefault("namespace", "")
	viper.SetDefault("max_pods", 20)
	viper.SetDefault("shard_timeout_sec", 30)
	viper.SetDefault("prometheus_url", "http://prometheus:9090")
	viper.SetDefault("max_records", 500)
	viper.SetDefault("prompt_budget", 24000)
	viper.SetDefault("samples_per_pattern", 3)
	viper.SetDefault("report_dir", "log_analysis")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "console")
	viper.SetDefault("log_file_path", "")

	// Environment variables (LOG_EXPLORER_REGION, LOG_EXPLORER_MODEL_ID, ...)
	viper.SetEnvPrefix("LOG_EXPLORER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
