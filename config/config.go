// Package config loads server configuration from file, environment and
// defaults.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server. Secrets arrive via
// environment variables and are never logged in full.
type ServerConfig struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// AppURL is the public application root: base of the Discord OAuth
	// redirect URI and target of callback redirects.
	AppURL string `mapstructure:"APP_URL"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	// RedisAddr switches the nonce store to Redis when set; empty means
	// the in-memory store, which is only safe single-instance.
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	SessionSecret   string `mapstructure:"SESSION_SECRET"`
	SessionTTLHours int    `mapstructure:"SESSION_TTL_HOURS"`

	DiscordClientID     string `mapstructure:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string `mapstructure:"DISCORD_CLIENT_SECRET"`
	DiscordGuildID      string `mapstructure:"DISCORD_GUILD_ID"`
	DiscordHolderRoleID string `mapstructure:"DISCORD_HOLDER_ROLE_ID"`

	AlchemyBaseURL string `mapstructure:"ALCHEMY_BASE_URL"`
	AlchemyAPIKey  string `mapstructure:"ALCHEMY_API_KEY"`
	PlagueContract string `mapstructure:"PLAGUE_NFT_CONTRACT"`
	ExodusContract string `mapstructure:"EXODUS_PLAGUE_CONTRACT"`

	AuthRatePerSecond float64 `mapstructure:"AUTH_RATE_PER_SECOND"`
}

// LoadConfig reads configuration from an optional yaml file, environment
// variables and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/ribbit/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_URL", "http://localhost:3000")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/ribbit_dev")
	v.SetDefault("MONGO_DB_NAME", "ribbit_dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("SESSION_TTL_HOURS", 168) // 7 days
	v.SetDefault("ALCHEMY_BASE_URL", "https://eth-mainnet.g.alchemy.com")
	v.SetDefault("AUTH_RATE_PER_SECOND", 5)

	// Secrets default to empty so AutomaticEnv can bind them; Validate
	// rejects the empty values at startup.
	for _, key := range []string{
		"REDIS_ADDR", "SESSION_SECRET",
		"DISCORD_CLIENT_ID", "DISCORD_CLIENT_SECRET",
		"DISCORD_GUILD_ID", "DISCORD_HOLDER_ROLE_ID",
		"ALCHEMY_API_KEY", "PLAGUE_NFT_CONTRACT", "EXODUS_PLAGUE_CONTRACT",
	} {
		v.SetDefault(key, "")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults and env vars carry.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &cfg, nil
}

// Validate fails fast on missing required secrets so misconfiguration
// surfaces at startup, not at a user's first login.
func (c *ServerConfig) Validate() error {
	required := map[string]string{
		"SESSION_SECRET":         c.SessionSecret,
		"DISCORD_CLIENT_ID":      c.DiscordClientID,
		"DISCORD_CLIENT_SECRET":  c.DiscordClientSecret,
		"DISCORD_GUILD_ID":       c.DiscordGuildID,
		"DISCORD_HOLDER_ROLE_ID": c.DiscordHolderRoleID,
		"ALCHEMY_API_KEY":        c.AlchemyAPIKey,
		"PLAGUE_NFT_CONTRACT":    c.PlagueContract,
		"EXODUS_PLAGUE_CONTRACT": c.ExodusContract,
	}

	var missing []string
	for name, value := range required {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
