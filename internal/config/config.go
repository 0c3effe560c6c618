package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Log       LogConfig       `mapstructure:"log"`
	UID       UIDConfig       `mapstructure:"uid"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	RPCSocket         string        `mapstructure:"rpc_socket"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms"`
}

func (d DatabaseConfig) BusyTimeout() time.Duration {
	return time.Duration(d.BusyTimeoutMS) * time.Millisecond
}

type BootstrapConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type UIDConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

type AuthConfig struct {
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// Load reads magsav.yaml from ./configs or the working directory, or the
// file at path when it is not empty. MAGSAV_* environment variables override
// file values, e.g. MAGSAV_DATABASE_PATH for database.path.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("magsav")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MAGSAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rpc_socket", "/tmp/magsav.sock")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "magsav.db")
	v.SetDefault("database.busy_timeout_ms", 5000)

	v.SetDefault("bootstrap.admin_email", "admin@magsav.local")
	v.SetDefault("bootstrap.admin_password", "admin")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("uid.max_attempts", 32)
	v.SetDefault("auth.session_ttl", 12*time.Hour)
}
