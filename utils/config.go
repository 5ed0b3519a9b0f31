// File: utils/config.go
package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Limits that are part of the wire contract rather than tuning knobs.
const (
	MaxNicknameLength = 20 // code points, after trimming
	MaxAvatarLength   = 8
	MaxTeamNameLength = 20
	RoomCodeLength    = 6

	MaxRoomCodeAttempts = 10
)

// Config holds all configurable server parameters.
type Config struct {
	// HTTP / transport
	Port              int           `mapstructure:"port"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`    // empty = allow all
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"` // ping cadence per connection
	MaxWSMessageSize  int64         `mapstructure:"max_ws_message_size"`
	WSRateLimitPerSec float64       `mapstructure:"ws_rate_limit_per_sec"` // inbound frames per second per connection
	OutboundQueueSize int           `mapstructure:"outbound_queue_size"`   // per-subscriber bounded queue depth

	// Rooms
	RoomTTL           time.Duration `mapstructure:"room_ttl"`        // inactivity TTL
	OrganizerGrace    time.Duration `mapstructure:"organizer_grace"` // reconnect window after organizer drop
	MaxRooms          int           `mapstructure:"max_rooms"`
	MaxPlayersPerRoom int           `mapstructure:"max_players_per_room"`

	// Quizzes
	MaxQuizzes         int     `mapstructure:"max_quizzes"`
	DefaultTimeLimit   int     `mapstructure:"default_time_limit"` // seconds per question
	BonusRoundFraction float64 `mapstructure:"bonus_round_fraction"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Port:              8000,
		AllowedOrigins:    nil,
		HeartbeatInterval: 20 * time.Second,
		MaxWSMessageSize:  4096,
		WSRateLimitPerSec: 10,
		OutboundQueueSize: 64,

		RoomTTL:           30 * time.Minute,
		OrganizerGrace:    30 * time.Second,
		MaxRooms:          50,
		MaxPlayersPerRoom: 100,

		MaxQuizzes:         100,
		DefaultTimeLimit:   15,
		BonusRoundFraction: 0.3,

		LogLevel: "info",
	}
}

// LoadConfig reads configuration with priority env > config file > defaults.
// The config file (quizcast.yaml) is optional.
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()

	v.SetConfigName("quizcast")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/quizcast")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("port", "PORT")
	v.BindEnv("allowed_origins", "ALLOWED_ORIGINS")
	v.BindEnv("heartbeat_interval", "HEARTBEAT_INTERVAL_SECONDS")
	v.BindEnv("max_ws_message_size", "MAX_WS_MESSAGE_SIZE")
	v.BindEnv("ws_rate_limit_per_sec", "WS_RATE_LIMIT_PER_SEC")
	v.BindEnv("outbound_queue_size", "OUTBOUND_QUEUE_SIZE")
	v.BindEnv("room_ttl", "ROOM_TTL_SECONDS")
	v.BindEnv("organizer_grace", "ORGANIZER_GRACE_SECONDS")
	v.BindEnv("max_rooms", "MAX_ROOMS")
	v.BindEnv("max_players_per_room", "MAX_PLAYERS_PER_ROOM")
	v.BindEnv("max_quizzes", "MAX_QUIZZES")
	v.BindEnv("default_time_limit", "DEFAULT_TIME_LIMIT")
	v.BindEnv("bonus_round_fraction", "BONUS_ROUND_FRACTION")
	v.BindEnv("log_level", "LOG_LEVEL")

	def := DefaultConfig()
	v.SetDefault("port", def.Port)
	v.SetDefault("heartbeat_interval", int(def.HeartbeatInterval/time.Second))
	v.SetDefault("max_ws_message_size", def.MaxWSMessageSize)
	v.SetDefault("ws_rate_limit_per_sec", def.WSRateLimitPerSec)
	v.SetDefault("outbound_queue_size", def.OutboundQueueSize)
	v.SetDefault("room_ttl", int(def.RoomTTL/time.Second))
	v.SetDefault("organizer_grace", int(def.OrganizerGrace/time.Second))
	v.SetDefault("max_rooms", def.MaxRooms)
	v.SetDefault("max_players_per_room", def.MaxPlayersPerRoom)
	v.SetDefault("max_quizzes", def.MaxQuizzes)
	v.SetDefault("default_time_limit", def.DefaultTimeLimit)
	v.SetDefault("bonus_round_fraction", def.BonusRoundFraction)
	v.SetDefault("log_level", def.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok &&
			!strings.Contains(err.Error(), "no such file or directory") {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := Config{
		Port:              v.GetInt("port"),
		AllowedOrigins:    splitOrigins(v.GetString("allowed_origins")),
		HeartbeatInterval: time.Duration(v.GetInt("heartbeat_interval")) * time.Second,
		MaxWSMessageSize:  v.GetInt64("max_ws_message_size"),
		WSRateLimitPerSec: v.GetFloat64("ws_rate_limit_per_sec"),
		OutboundQueueSize: v.GetInt("outbound_queue_size"),

		RoomTTL:           time.Duration(v.GetInt("room_ttl")) * time.Second,
		OrganizerGrace:    time.Duration(v.GetInt("organizer_grace")) * time.Second,
		MaxRooms:          v.GetInt("max_rooms"),
		MaxPlayersPerRoom: v.GetInt("max_players_per_room"),

		MaxQuizzes:         v.GetInt("max_quizzes"),
		DefaultTimeLimit:   v.GetInt("default_time_limit"),
		BonusRoundFraction: v.GetFloat64("bonus_round_fraction"),

		LogLevel: v.GetString("log_level"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.OutboundQueueSize < 1 {
		return fmt.Errorf("outbound_queue_size must be positive, got %d", c.OutboundQueueSize)
	}
	if c.RoomTTL <= 0 {
		return fmt.Errorf("room_ttl must be positive, got %s", c.RoomTTL)
	}
	if c.OrganizerGrace < 30*time.Second {
		return fmt.Errorf("organizer_grace must be at least 30s, got %s", c.OrganizerGrace)
	}
	if c.MaxRooms < 1 || c.MaxPlayersPerRoom < 1 {
		return fmt.Errorf("max_rooms and max_players_per_room must be positive")
	}
	if c.DefaultTimeLimit < 1 {
		return fmt.Errorf("default_time_limit must be positive, got %d", c.DefaultTimeLimit)
	}
	if c.BonusRoundFraction < 0 || c.BonusRoundFraction > 1 {
		return fmt.Errorf("bonus_round_fraction must be in [0,1], got %f", c.BonusRoundFraction)
	}
	return nil
}

func splitOrigins(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
