package app

import (
	"fmt"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gobuffalo/nulls"
	"github.com/lefinal/pug-server/errors"
	"github.com/lefinal/pug-server/games"
	"github.com/lefinal/pug-server/lobby"
	"github.com/lefinal/pug-server/maps"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"reflect"
	"strings"
	"time"
)

// envPrefix is the prefix for environment variables overriding config values.
const envPrefix = "PUG"

// Config is the configuration needed in order to boot an App.
type Config struct {
	// DBConn is the connection string for the PostgreSQL database.
	DBConn string `mapstructure:"db_conn"`
	// MaxDBConnections limits the database connection pool.
	MaxDBConnections int `mapstructure:"max_db_connections"`
	// MQTTAddr is the address of the MQTT broker all commands and notifications
	// go through.
	MQTTAddr string      `mapstructure:"mqtt_addr"`
	Redis    RedisConfig `mapstructure:"redis"`
	Log      LogConfig   `mapstructure:"log"`
	// Lobby is the lobby configuration. Its capacity is the roster size of each
	// match.
	Lobby lobby.Config `mapstructure:"lobby"`
	Match MatchConfig  `mapstructure:"match"`
	// StatusInterval is the interval for publishing status snapshots.
	StatusInterval time.Duration `mapstructure:"status_interval"`
}

// RedisConfig is the configuration for the account pool in Redis.
type RedisConfig struct {
	Addr     string       `mapstructure:"addr"`
	Password nulls.String `mapstructure:"password"`
	DB       int          `mapstructure:"db"`
	// KeyPrefix is the prefix for all keys of the account pool.
	KeyPrefix string `mapstructure:"key_prefix"`
	// Accounts replace the free accounts of the pool on boot.
	Accounts []string `mapstructure:"accounts"`
}

// LogConfig is the configuration for logging.
type LogConfig struct {
	// StdoutLogLevel is the minimum level for logging to stdout.
	StdoutLogLevel zapcore.Level `mapstructure:"stdout_log_level"`
	// PublishLogLevel is the minimum level for log entries published via MQTT.
	PublishLogLevel zapcore.Level `mapstructure:"publish_log_level"`
	// HighPriorityOutput is the optional file for warnings and errors.
	HighPriorityOutput nulls.String `mapstructure:"high_priority_output"`
	// DebugOutput is the optional file for all log entries.
	DebugOutput nulls.String `mapstructure:"debug_output"`
	// MaxSize is the maximum size in megabytes of log files before rotation.
	MaxSize int `mapstructure:"max_size"`
	// KeepDays is the number of days rotated log files are kept.
	KeepDays int `mapstructure:"keep_days"`
	// SystemDebugStatsInterval is the interval for logging debug stats. Zero
	// disables it.
	SystemDebugStatsInterval time.Duration `mapstructure:"system_debug_stats_interval"`
}

// MatchConfig is the configuration for all match slots.
type MatchConfig struct {
	// RoundLength is the duration of each round.
	RoundLength time.Duration      `mapstructure:"round_length"`
	Slots       []games.SlotConfig `mapstructure:"slots"`
	// Factions maps faction names to their values.
	Factions map[string]int `mapstructure:"factions"`
	Maps     []maps.Map     `mapstructure:"maps"`
	// Countdown is the countdown before each round. If empty,
	// games.DefaultCountdown is used.
	Countdown      []games.CountdownStep `mapstructure:"countdown"`
	PickCueDelay   time.Duration         `mapstructure:"pick_cue_delay"`
	MapCueDelay    time.Duration         `mapstructure:"map_cue_delay"`
	ReadyCueDelay  time.Duration         `mapstructure:"ready_cue_delay"`
	SwapCueDelay   time.Duration         `mapstructure:"swap_cue_delay"`
	AccountTimeout time.Duration         `mapstructure:"account_timeout"`
	// ClipDurations holds the durations of audio clips by clip id.
	ClipDurations map[string]time.Duration `mapstructure:"clip_durations"`
}

// setDefaults sets the default values for the given viper.Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("db_conn", "")
	v.SetDefault("max_db_connections", defaultMaxDBConnections)
	v.SetDefault("mqtt_addr", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "")
	v.SetDefault("log.stdout_log_level", "info")
	v.SetDefault("log.publish_log_level", "info")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.keep_days", 30)
	v.SetDefault("log.system_debug_stats_interval", "0s")
	v.SetDefault("lobby.capacity", 10)
	v.SetDefault("lobby.reminder_delay", "5m")
	v.SetDefault("lobby.inactivity_grace", "5m")
	v.SetDefault("lobby.announce_delay", "1s")
	v.SetDefault("match.round_length", "30m")
	v.SetDefault("match.pick_cue_delay", "2s")
	v.SetDefault("match.map_cue_delay", "5s")
	v.SetDefault("match.ready_cue_delay", "2s")
	v.SetDefault("match.swap_cue_delay", "2s")
	v.SetDefault("match.account_timeout", "5s")
	v.SetDefault("status_interval", "10s")
}

// nullsStringHookFunc decodes strings into nulls.String.
func nullsStringHookFunc(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(nulls.String{}) {
		return data, nil
	}
	switch d := data.(type) {
	case nil:
		return nulls.String{}, nil
	case string:
		return nulls.NewString(d), nil
	}
	return data, nil
}

// decodeHook is used when unmarshalling the config.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		nullsStringHookFunc,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}

// LoadConfig reads the Config from the file at the given path. Values may be
// overwritten using environment variables prefixed with PUG_, for example
// PUG_LOBBY_CAPACITY. If the path is empty, only defaults and the environment
// are used.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		if err != nil {
			return Config{}, errors.Error{
				Code:    errors.ErrFatal,
				Kind:    errors.KindInvalidConfig,
				Err:     err,
				Message: "read config",
				Details: errors.Details{"path": path},
			}
		}
	}
	var config Config
	err := v.Unmarshal(&config, viper.DecodeHook(decodeHook()))
	if err != nil {
		return Config{}, errors.Error{
			Code:    errors.ErrFatal,
			Kind:    errors.KindInvalidConfig,
			Err:     err,
			Message: "unmarshal config",
			Details: errors.Details{"path": path},
		}
	}
	return config, nil
}

// invalidConfig returns an errors.KindInvalidConfig error with the given
// message.
func invalidConfig(message string, details errors.Details) error {
	return errors.Error{
		Code:    errors.ErrFatal,
		Kind:    errors.KindInvalidConfig,
		Message: message,
		Details: details,
	}
}

// ValidateConfig assures that the given Config is valid.
func ValidateConfig(config Config) error {
	if config.DBConn == "" {
		return invalidConfig("missing db connection string", nil)
	}
	if config.MQTTAddr == "" {
		return invalidConfig("missing mqtt address", nil)
	}
	if config.Redis.Addr == "" {
		return invalidConfig("missing redis address", nil)
	}
	if config.Lobby.Capacity < 2 || config.Lobby.Capacity%2 != 0 {
		return invalidConfig("lobby capacity must be even and at least 2",
			errors.Details{"was": config.Lobby.Capacity})
	}
	if config.Lobby.ReminderDelay < 0 || config.Lobby.InactivityGrace < 0 || config.Lobby.AnnounceDelay < 0 {
		return invalidConfig("lobby delays must not be negative", nil)
	}
	if config.Match.RoundLength <= 0 {
		return invalidConfig("round length must be positive", errors.Details{"was": config.Match.RoundLength})
	}
	if len(config.Match.Slots) == 0 {
		return invalidConfig("no match slots configured", nil)
	}
	slotIDs := make(map[string]struct{}, len(config.Match.Slots))
	for _, slot := range config.Match.Slots {
		if slot.ID == "" {
			return invalidConfig("missing match slot id", nil)
		}
		if _, ok := slotIDs[slot.ID]; ok {
			return invalidConfig(fmt.Sprintf("duplicate match slot %s", slot.ID), errors.Details{"slot": slot.ID})
		}
		slotIDs[slot.ID] = struct{}{}
	}
	if len(config.Match.Factions) < 2 {
		return invalidConfig("at least two factions required", errors.Details{"was": len(config.Match.Factions)})
	}
	if _, err := games.NewFactions(config.Match.Factions); err != nil {
		return errors.Wrap(err, "factions", nil)
	}
	if len(config.Match.Maps) == 0 {
		return invalidConfig("no maps configured", nil)
	}
	for i, m := range config.Match.Maps {
		if m.ID == "" || m.Name == "" {
			return invalidConfig("map requires id and name", errors.Details{"map_index": i})
		}
	}
	for i, step := range config.Match.Countdown {
		if step.Delay < 0 || step.Remaining < 0 {
			return invalidConfig("invalid countdown step", errors.Details{"step_index": i})
		}
	}
	return nil
}
