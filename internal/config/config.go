package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Chrome    ChromeConfig    `mapstructure:"chrome"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	Retention RetentionConfig `mapstructure:"retention"`
	Logger    LoggerConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	Mode         string `mapstructure:"mode"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"name"`
	Charset  string `mapstructure:"charset"`
}

type ChromeConfig struct {
	Path          string        `mapstructure:"path"`
	HeadlessMode  bool          `mapstructure:"headless"`
	LoadTimeout   time.Duration `mapstructure:"load_timeout"`
	ReplayTimeout time.Duration `mapstructure:"replay_timeout"`
	MaxInstances  int           `mapstructure:"max_instances"`
}

type RecorderConfig struct {
	OutputDir       string  `mapstructure:"output_dir"`
	ExportDir       string  `mapstructure:"export_dir"`
	ScrollThreshold float64 `mapstructure:"scroll_threshold"`
	SelectorRepair  bool    `mapstructure:"selector_repair"`
	RecentLimit     int     `mapstructure:"recent_limit"`
}

type RetentionConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Schedule     string        `mapstructure:"schedule"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	ServiceName string `mapstructure:"service_name"`
	File        string `mapstructure:"file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

// SetDefaults registers every key so environment variables can override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.username", "root")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "autoqa")
	v.SetDefault("db.charset", "utf8mb4")

	v.SetDefault("chrome.path", "")
	v.SetDefault("chrome.headless", false)
	v.SetDefault("chrome.load_timeout", "30s")
	v.SetDefault("chrome.replay_timeout", "2m")
	v.SetDefault("chrome.max_instances", 2)

	v.SetDefault("recorder.output_dir", "recordings")
	v.SetDefault("recorder.export_dir", "exports")
	v.SetDefault("recorder.scroll_threshold", 100.0)
	v.SetDefault("recorder.selector_repair", false)
	v.SetDefault("recorder.recent_limit", 20)

	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.schedule", "0 0 3 * * *")
	v.SetDefault("retention.max_age", "168h")
	v.SetDefault("retention.sync_interval", "5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.service_name", "autoqa")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)
}

// NewViper returns a viper instance with defaults and environment binding.
// Keys map to environment names by upper-casing and replacing dots, so
// server.port reads SERVER_PORT and db.host reads DB_HOST.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads path, or ./config.yaml when path is empty and the file
// exists, and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port must be set")
	}
	if c.Recorder.ScrollThreshold <= 0 {
		return fmt.Errorf("recorder.scroll_threshold must be positive, got %v", c.Recorder.ScrollThreshold)
	}
	if c.Recorder.OutputDir == "" {
		return errors.New("recorder.output_dir must be set")
	}
	if c.Recorder.RecentLimit <= 0 {
		return fmt.Errorf("recorder.recent_limit must be positive, got %d", c.Recorder.RecentLimit)
	}
	if c.Retention.Enabled && c.Retention.MaxAge <= 0 {
		return errors.New("retention.max_age must be positive when retention is enabled")
	}
	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.Charset,
	)
}
