package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Stats   StatsConfig   `mapstructure:"stats"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	Timezone string `mapstructure:"timezone"` // 统计按天切分所用时区
}

// ServerConfig HTTP 配置
type ServerConfig struct {
	ListenAddr           string `mapstructure:"listen_addr"`
	ReadHeaderTimeoutSec int    `mapstructure:"read_header_timeout_sec"`
	RequestTimeoutSec    int    `mapstructure:"request_timeout_sec"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres
	DBPath string `mapstructure:"db_path"`
	DSN    string `mapstructure:"dsn"`
}

// StatsConfig 统计配置
type StatsConfig struct {
	DefaultPageLimit  int `mapstructure:"default_page_limit"`
	MaxPageLimit      int `mapstructure:"max_page_limit"`
	MaxDashboardDays  int `mapstructure:"max_dashboard_days"`
	DashboardWorkers  int `mapstructure:"dashboard_workers"`
	ExportMaxRows     int `mapstructure:"export_max_rows"`
	DefaultWindowDays int `mapstructure:"default_window_days"`
}

// Location 返回统计时区，非法值回退到 UTC
func (c *AppConfig) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("时区配置无效，使用 UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("INTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else if os.IsNotExist(err) {
			slog.Warn("配置文件不存在，使用默认配置", "path", configPath)
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 处理环境变量占位符
	cfg.Storage.DSN = expandEnv(cfg.Storage.DSN)

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Driver == "sqlite" && cfg.Storage.DBPath != ":memory:" {
		cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)
	}
	normalizeStats(&cfg.Stats)
	return &cfg, nil
}

// Default 返回默认配置（不读取文件与环境变量）
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		return &Config{}
	}
	return cfg
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "intrack")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_path", "")
	v.SetDefault("app.timezone", "UTC")

	// Server
	v.SetDefault("server.listen_addr", "127.0.0.1:5000")
	v.SetDefault("server.read_header_timeout_sec", 5)
	v.SetDefault("server.request_timeout_sec", 30)

	// Storage
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.db_path", "./data/intrack.db")
	v.SetDefault("storage.dsn", "")

	// Stats
	v.SetDefault("stats.default_page_limit", 50)
	v.SetDefault("stats.max_page_limit", 500)
	v.SetDefault("stats.max_dashboard_days", 92)
	v.SetDefault("stats.dashboard_workers", 4)
	v.SetDefault("stats.export_max_rows", 10000)
	v.SetDefault("stats.default_window_days", 7)
}

func normalizeStats(s *StatsConfig) {
	if s.DefaultPageLimit <= 0 {
		s.DefaultPageLimit = 50
	}
	if s.MaxPageLimit <= 0 {
		s.MaxPageLimit = 500
	}
	if s.DefaultPageLimit > s.MaxPageLimit {
		s.DefaultPageLimit = s.MaxPageLimit
	}
	if s.MaxDashboardDays <= 0 {
		s.MaxDashboardDays = 92
	}
	if s.DashboardWorkers <= 0 {
		s.DashboardWorkers = 4
	}
	if s.ExportMaxRows <= 0 {
		s.ExportMaxRows = 10000
	}
	if s.DefaultWindowDays <= 0 {
		s.DefaultWindowDays = 7
	}
}

// expandEnv 展开环境变量占位符 ${VAR}
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return s
}

// resolvePath 解析相对路径为绝对路径（相对可执行文件目录）
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	exe, err := os.Executable()
	if err != nil {
		return path
	}
	return filepath.Join(filepath.Dir(exe), path)
}
