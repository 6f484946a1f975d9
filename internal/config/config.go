package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type ServerConfig struct {
	Port             int           `mapstructure:"port" validate:"min=1,max=65535"`
	GracefulShutdown time.Duration `mapstructure:"graceful-shutdown"`
	ReadTimeout      time.Duration `mapstructure:"read-timeout"`
	WriteTimeout     time.Duration `mapstructure:"write-timeout"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

type DBConfig struct {
	DataSource  string `mapstructure:"data-source"`
	PrepareStmt bool   `mapstructure:"prepare-stmt"`
	LogLevel    string `mapstructure:"log-level"`
	Pool        struct {
		Enable             bool          `mapstructure:"enable"`
		MaxOpenConnections int           `mapstructure:"max-open-connections"`
		MaxIdleConnections int           `mapstructure:"max-idle-connections"`
		MaxLifetime        time.Duration `mapstructure:"max-lifetime"`
	} `mapstructure:"pool"`
}

type CacheConfig struct {
	MaxSize   int    `mapstructure:"max-size"`
	RedisAddr string `mapstructure:"redis-addr"`
	RedisPass string `mapstructure:"redis-pass"`
}

// ShareConfig carries the sharing policy flags the resolution engine
// consumes read-only.
type ShareConfig struct {
	Enabled             bool     `mapstructure:"enabled"`
	AllowLinks          bool     `mapstructure:"allow-links"`
	AllowResharing      bool     `mapstructure:"allow-resharing"`
	GroupOnly           bool     `mapstructure:"group-only"`
	EnforceLinkPassword bool     `mapstructure:"enforce-link-password"`
	DefaultExpireDate   bool     `mapstructure:"default-expire-date"`
	EnforceExpireDate   bool     `mapstructure:"enforce-expire-date"`
	ExpireAfterDays     int      `mapstructure:"expire-after-days" validate:"min=1"`
	ExcludedGroups      []string `mapstructure:"excluded-groups"`
	LinkTokenLength     int      `mapstructure:"link-token-length" validate:"min=8,max=64"`
	RemoteTokenLength   int      `mapstructure:"remote-token-length" validate:"min=8,max=64"`
	HumanReadableTokens bool     `mapstructure:"human-readable-tokens"`
}

type FederationConfig struct {
	EndpointPath      string        `mapstructure:"endpoint-path"`
	ConnectTimeout    time.Duration `mapstructure:"connect-timeout"`
	AllowHTTPFallback bool          `mapstructure:"allow-http-fallback"`
	ServerHost        string        `mapstructure:"server-host"`
}

type ServerCmdConfig struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LoggingConfig    `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Share      ShareConfig      `mapstructure:"share"`
	Federation FederationConfig `mapstructure:"federation"`
}

type ConfigLoader struct {
	v *viper.Viper
}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{
		v: viper.New(),
	}
}

func (cl *ConfigLoader) InitializeConfig(cmd *cobra.Command) error {
	cl.v.SetConfigType("toml")

	cfgFile := cmd.Flags().Lookup("config").Value.String()

	if cfgFile != "" {
		cl.v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error getting home directory: %v", err)
		}
		cl.v.AddConfigPath(filepath.Join(home, ".server"))
		cl.v.AddConfigPath(".")
		cl.v.SetConfigName("config")
	}

	cl.v.SetEnvPrefix("server")
	cl.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	cl.v.AutomaticEnv()

	if err := cl.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	if err := cl.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %v", err)
		}
	}

	return nil
}

func (cl *ConfigLoader) Load(cfg interface{}) error {
	config := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           cfg,
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return fmt.Errorf("failed to create decoder: %v", err)
	}

	if err := decoder.Decode(cl.v.AllSettings()); err != nil {
		return fmt.Errorf("failed to decode config: %v", err)
	}

	return nil
}

func Validate(cfg *ServerCmdConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func AddCommonFlags(flags *pflag.FlagSet, config *ServerCmdConfig) {

	flags.StringP("config", "c", "", "Config file path (default $HOME/.server/config.toml)")

	// Log config
	flags.StringVar(&config.Log.Level, "log-level", zapcore.InfoLevel.String(), "Logging level")
	flags.StringVar(&config.Log.File, "log-file", "", "Logging file path")
	flags.BoolVar(&config.Log.Development, "log-development", false, "Enable development logging")

	// Server config
	flags.IntVar(&config.Server.Port, "server-port", 8080, "Server port")
	flags.DurationVar(&config.Server.GracefulShutdown, "server-graceful-shutdown", 10*time.Second, "Server graceful shutdown timeout")
	flags.DurationVar(&config.Server.ReadTimeout, "server-read-timeout", time.Minute, "Server read timeout")
	flags.DurationVar(&config.Server.WriteTimeout, "server-write-timeout", time.Minute, "Server write timeout")

	// DB config
	flags.StringVar(&config.DB.DataSource, "db-data-source", "", "Database connection string")
	flags.StringVar(&config.DB.LogLevel, "db-log-level", zapcore.InfoLevel.String(), "Database log level")
	flags.BoolVar(&config.DB.PrepareStmt, "db-prepare-stmt", true, "Enable prepared statements")
	flags.BoolVar(&config.DB.Pool.Enable, "db-pool-enable", true, "Enable database pool")
	flags.IntVar(&config.DB.Pool.MaxOpenConnections, "db-pool-max-open-connections", 25, "Database max open connections")
	flags.IntVar(&config.DB.Pool.MaxIdleConnections, "db-pool-max-idle-connections", 25, "Database max idle connections")
	flags.DurationVar(&config.DB.Pool.MaxLifetime, "db-pool-max-lifetime", 10*time.Minute, "Database max connection lifetime")

	// Cache config
	flags.IntVar(&config.Cache.MaxSize, "cache-max-size", 10*1024*1024, "Max cache size in bytes")
	flags.StringVar(&config.Cache.RedisAddr, "cache-redis-addr", "", "Redis address")
	flags.StringVar(&config.Cache.RedisPass, "cache-redis-pass", "", "Redis password")

	// Share config
	flags.BoolVar(&config.Share.Enabled, "share-enabled", true, "Enable sharing")
	flags.BoolVar(&config.Share.AllowLinks, "share-allow-links", true, "Allow public link shares")
	flags.BoolVar(&config.Share.AllowResharing, "share-allow-resharing", true, "Allow resharing of received shares")
	flags.BoolVar(&config.Share.GroupOnly, "share-group-only", false, "Restrict sharing to members of common groups")
	flags.BoolVar(&config.Share.EnforceLinkPassword, "share-enforce-link-password", false, "Require a password on link shares")
	flags.BoolVar(&config.Share.DefaultExpireDate, "share-default-expire-date", false, "Apply a default expiration date to link shares")
	flags.BoolVar(&config.Share.EnforceExpireDate, "share-enforce-expire-date", false, "Enforce the maximum expiration window")
	flags.IntVar(&config.Share.ExpireAfterDays, "share-expire-after-days", 7, "Default expiration window in days")
	flags.StringSliceVar(&config.Share.ExcludedGroups, "share-excluded-groups", nil, "Groups excluded from sharing")
	flags.IntVar(&config.Share.LinkTokenLength, "share-link-token-length", 15, "Length of link share tokens")
	flags.IntVar(&config.Share.RemoteTokenLength, "share-remote-token-length", 15, "Length of federated share tokens")
	flags.BoolVar(&config.Share.HumanReadableTokens, "share-human-readable-tokens", true, "Use the human readable token alphabet for link shares")

	// Federation config
	flags.StringVar(&config.Federation.EndpointPath, "federation-endpoint-path", "", "Remote share endpoint path override")
	flags.DurationVar(&config.Federation.ConnectTimeout, "federation-connect-timeout", 10*time.Second, "Remote server connect timeout")
	flags.BoolVar(&config.Federation.AllowHTTPFallback, "federation-allow-http-fallback", true, "Retry remote notifications over plain http")
	flags.StringVar(&config.Federation.ServerHost, "federation-server-host", "", "Externally visible host of this server")
}
