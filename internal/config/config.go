package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Model struct {
		CheckpointPath string `yaml:"checkpoint_path"`
		FeatureDim     int    `yaml:"feature_dim"`
	} `yaml:"model"`
	Training struct {
		TrainerBin    string  `yaml:"trainer_bin"`
		BaseDataset   string  `yaml:"base_dataset"`
		MergedDataset string  `yaml:"merged_dataset"`
		ValDataset    string  `yaml:"val_dataset"`
		Epochs        int     `yaml:"epochs"`
		BatchSize     int     `yaml:"batch_size"`
		LearningRate  float64 `yaml:"learning_rate"`
	} `yaml:"training"`
	Redis struct {
		Enabled    bool   `yaml:"enabled"`
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		TTLSeconds int64  `yaml:"ttl_seconds"`
	} `yaml:"redis"`
	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Secrets can be overridden from the environment (.env in development).
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}

	return config, nil
}
