package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/aweist/whistle-bot/apperrors"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env          string
	Timezone     string
	DryRun       bool
	ScheduleFile string

	Log       LogConfig
	Storage   StorageConfig
	Twitter   TwitterConfig
	Scores    ScoresConfig
	Team      TeamConfig
	Whistle   WhistleConfig
	Gameday   GamedayConfig
	Commands  CommandConfig
	Web       WebConfig
	Cooldowns CooldownConfig
}

type LogConfig struct {
	Level       string
	Format      string
	File        string
	BufferLines int
}

type StorageConfig struct {
	DatabasePath string
}

// TwitterConfig carries the transport credentials and account identities.
type TwitterConfig struct {
	BaseURL           string
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
	OwnerUserID       string
	BotUserID         string
}

type ScoresConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type TeamConfig struct {
	Code      string
	RivalCode string
}

type WhistleConfig struct {
	PostCharLimit      int `validate:"min=1"`
	DMCharLimit        int `validate:"min=1"`
	RecentWindow       int `validate:"min=1"`
	MinWhistleInterval time.Duration
	Suffixes           bool
}

type GamedayConfig struct {
	SamplingInterval time.Duration
	MaxGameDuration  time.Duration
	FinalPeriods     []string
}

// CommandConfig bounds the owner's DM commands and toot replies.
type CommandConfig struct {
	LogDefaultLines int `validate:"min=1"`
	LogMaxLines     int `validate:"min=1"`
	LogLineMaxChars int `validate:"min=1"`
	MaxTootLength   int `validate:"min=1"`
	DMDelay         time.Duration
	PollInterval    time.Duration
}

type WebConfig struct {
	Enabled bool
	Port    string
}

type CooldownConfig struct {
	Error   time.Duration
	Startup time.Duration
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, apperrors.Config("config.load", err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Env:          v.GetString("ENV"),
		Timezone:     v.GetString("TIMEZONE"),
		DryRun:       v.GetBool("DRY_RUN"),
		ScheduleFile: v.GetString("SCHEDULE_FILE"),
	}

	cfg.Log = LogConfig{
		Level:       v.GetString("LOG_LEVEL"),
		Format:      v.GetString("LOG_FORMAT"),
		File:        v.GetString("LOG_FILE"),
		BufferLines: v.GetInt("LOG_BUFFER_LINES"),
	}

	cfg.Storage = StorageConfig{DatabasePath: v.GetString("DB_PATH")}

	cfg.Twitter = TwitterConfig{
		BaseURL:           v.GetString("TWITTER_API_BASE_URL"),
		ConsumerKey:       v.GetString("TWITTER_CONSUMER_KEY"),
		ConsumerSecret:    v.GetString("TWITTER_CONSUMER_SECRET"),
		AccessToken:       v.GetString("TWITTER_ACCESS_TOKEN"),
		AccessTokenSecret: v.GetString("TWITTER_ACCESS_TOKEN_SECRET"),
		OwnerUserID:       v.GetString("OWNER_USER_ID"),
		BotUserID:         v.GetString("BOT_USER_ID"),
	}

	cfg.Scores = ScoresConfig{
		Enabled: v.GetBool("SCORES_ENABLED"),
		BaseURL: v.GetString("SCORE_API_BASE_URL"),
		APIKey:  v.GetString("SCORE_API_KEY"),
		Timeout: parseDuration(v.GetString("SCORE_API_TIMEOUT"), 30*time.Second),
	}

	cfg.Team = TeamConfig{
		Code:      v.GetString("TEAM_CODE"),
		RivalCode: v.GetString("RIVAL_CODE"),
	}

	cfg.Whistle = WhistleConfig{
		PostCharLimit:      v.GetInt("POST_CHAR_LIMIT"),
		DMCharLimit:        v.GetInt("DM_CHAR_LIMIT"),
		RecentWindow:       v.GetInt("RECENT_WINDOW"),
		MinWhistleInterval: parseDuration(v.GetString("MIN_WHISTLE_INTERVAL"), time.Minute),
		Suffixes:           v.GetBool("WHISTLE_SUFFIXES"),
	}

	cfg.Gameday = GamedayConfig{
		SamplingInterval: parseDuration(v.GetString("SAMPLING_INTERVAL"), time.Minute),
		MaxGameDuration:  parseDuration(v.GetString("MAX_GAME_DURATION"), 6*time.Hour),
		FinalPeriods:     splitAndTrim(v.GetString("FINAL_PERIODS")),
	}

	cfg.Commands = CommandConfig{
		LogDefaultLines: v.GetInt("LOG_DEFAULT_LINES"),
		LogMaxLines:     v.GetInt("LOG_MAX_LINES"),
		LogLineMaxChars: v.GetInt("LOG_LINE_MAX_CHARS"),
		MaxTootLength:   v.GetInt("MAX_TOOT_LENGTH"),
		DMDelay:         parseDuration(v.GetString("DM_DELAY"), 5*time.Second),
		PollInterval:    parseDuration(v.GetString("DM_POLL_INTERVAL"), time.Minute),
	}

	cfg.Web = WebConfig{
		Enabled: v.GetBool("WEB_ENABLED"),
		Port:    v.GetString("WEB_PORT"),
	}

	cfg.Cooldowns = CooldownConfig{
		Error:   parseDuration(v.GetString("ERROR_COOLDOWN"), 15*time.Minute),
		Startup: parseDuration(v.GetString("STARTUP_DELAY"), 10*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("TIMEZONE", "US/Eastern")
	v.SetDefault("DRY_RUN", true)
	v.SetDefault("SCHEDULE_FILE", "schedule.yaml")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_BUFFER_LINES", 500)

	v.SetDefault("DB_PATH", "./whistle.db")

	v.SetDefault("TWITTER_API_BASE_URL", "https://api.twitter.com")

	v.SetDefault("SCORES_ENABLED", false)
	v.SetDefault("SCORE_API_BASE_URL", "https://api.fantasydata.net")
	v.SetDefault("SCORE_API_TIMEOUT", "30s")

	v.SetDefault("TEAM_CODE", "GTECH")
	v.SetDefault("RIVAL_CODE", "GA")

	v.SetDefault("POST_CHAR_LIMIT", 280)
	v.SetDefault("DM_CHAR_LIMIT", 10000)
	v.SetDefault("RECENT_WINDOW", 5)
	v.SetDefault("MIN_WHISTLE_INTERVAL", "1m")
	v.SetDefault("WHISTLE_SUFFIXES", true)

	v.SetDefault("SAMPLING_INTERVAL", "1m")
	v.SetDefault("MAX_GAME_DURATION", "6h")
	v.SetDefault("FINAL_PERIODS", "F,F/OT,Final")

	v.SetDefault("LOG_DEFAULT_LINES", 10)
	v.SetDefault("LOG_MAX_LINES", 50)
	v.SetDefault("LOG_LINE_MAX_CHARS", 200)
	v.SetDefault("MAX_TOOT_LENGTH", 100)
	v.SetDefault("DM_DELAY", "5s")
	v.SetDefault("DM_POLL_INTERVAL", "1m")

	v.SetDefault("WEB_ENABLED", true)
	v.SetDefault("WEB_PORT", "8080")

	v.SetDefault("ERROR_COOLDOWN", "15m")
	v.SetDefault("STARTUP_DELAY", "10s")
}

// Validate reports the first configuration problem as a config error.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return apperrors.Config("config.validate", err)
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	if c.ScheduleFile == "" {
		return fmt.Errorf("schedule_file is required")
	}

	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("db_path is required")
	}

	if !c.DryRun {
		t := c.Twitter
		if t.ConsumerKey == "" || t.ConsumerSecret == "" || t.AccessToken == "" || t.AccessTokenSecret == "" {
			return fmt.Errorf("twitter credentials are required unless dry_run is set")
		}
		if t.OwnerUserID == "" || t.BotUserID == "" {
			return fmt.Errorf("owner_user_id and bot_user_id are required unless dry_run is set")
		}
	}

	if c.Scores.Enabled {
		if c.Scores.APIKey == "" {
			return fmt.Errorf("score_api_key is required when scores are enabled")
		}
		if c.Team.Code == "" {
			return fmt.Errorf("team_code is required when scores are enabled")
		}
	}

	if c.Gameday.SamplingInterval <= 0 {
		return fmt.Errorf("sampling_interval must be positive")
	}

	if c.Web.Enabled && c.Web.Port == "" {
		return fmt.Errorf("web_port is required when web is enabled")
	}

	validate := validator.New()
	if err := validate.Struct(c.Whistle); err != nil {
		return fmt.Errorf("whistle settings: %w", err)
	}
	if err := validate.Struct(c.Commands); err != nil {
		return fmt.Errorf("command settings: %w", err)
	}

	return nil
}

// Location returns the configured time zone, falling back to local time.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
