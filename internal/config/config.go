package config

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Discord  DiscordConfig
	Session  SessionConfig
	Roblox   RobloxConfig
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	ShutdownPeriod time.Duration `mapstructure:"shutdownPeriod"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DiscordConfig struct {
	BotToken              string `mapstructure:"botToken"`
	ClientID              string `mapstructure:"clientId"`
	ClientSecret          string `mapstructure:"clientSecret"`
	GuildID               string `mapstructure:"guildId"`
	AuthorizedRoleIDs     string `mapstructure:"authorizedRoleIds"`
	AuthorizedUserIDs     string `mapstructure:"authorizedUserIds"`
	VerificationChannelID string `mapstructure:"verificationChannelId"`
	Roles                 string `mapstructure:"roles"`
	ErrorLogChannelID     string `mapstructure:"errorLogChannelId"`
	OAuthRedirectURL      string `mapstructure:"oauthRedirectUrl"`
}

type SessionConfig struct {
	Secret string        `mapstructure:"secret"`
	MaxAge time.Duration `mapstructure:"maxAge"`
}

type RobloxConfig struct {
	// Cookies is a JSON array of .ROBLOSECURITY values shared by all guild
	// setups.
	Cookies        string        `mapstructure:"cookies"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
}

// AuthorizedRoleIDList splits the comma-separated role ID allow-list.
func (c *DiscordConfig) AuthorizedRoleIDList() []string {
	return splitIDs(c.AuthorizedRoleIDs)
}

func (c *DiscordConfig) AuthorizedUserIDList() []string {
	return splitIDs(c.AuthorizedUserIDs)
}

// RoleIDList returns the roles granted after a successful account link.
func (c *DiscordConfig) RoleIDList() []string {
	return splitIDs(c.Roles)
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

// CookiePool parses the configured JSON array of Roblox session credentials.
func (c *RobloxConfig) CookiePool() ([]string, error) {
	if c.Cookies == "" {
		return nil, nil
	}
	var cookies []string
	if err := json.Unmarshal([]byte(c.Cookies), &cookies); err != nil {
		return nil, err
	}
	return cookies, nil
}

func LoadConfig(configPath string) (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables and config file")
	}

	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.readTimeout", 5*time.Second)
	viper.SetDefault("server.writeTimeout", 10*time.Second)
	viper.SetDefault("server.idleTimeout", 120*time.Second)
	viper.SetDefault("server.shutdownPeriod", 15*time.Second)

	viper.SetDefault("database.maxOpenConns", 25)
	viper.SetDefault("database.maxIdleConns", 25)
	viper.SetDefault("database.connMaxLifetime", 5*time.Minute)

	viper.SetDefault("redis.db", "0")

	viper.SetDefault("log.level", "info")

	viper.SetDefault("session.maxAge", 24*time.Hour)

	viper.SetDefault("roblox.requestTimeout", 10*time.Second)

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AllowEmptyEnv(true)

	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			log.Printf("Warning: could not read config file: %s. Error: %v\n", configPath, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
