package bootstrap

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yuqie6/intrack/internal/eventbus"
	"github.com/yuqie6/intrack/internal/export"
	"github.com/yuqie6/intrack/internal/pkg/config"
	"github.com/yuqie6/intrack/internal/repository"
	"github.com/yuqie6/intrack/internal/service"
)

// Core 持有跨二进制共享的核心依赖
type Core struct {
	Cfg        *config.Config
	ConfigPath string
	DB         *repository.Database
	Hub        *eventbus.Hub
	Location   *time.Location
	StartedAt  time.Time
	LogCloser  io.Closer

	Repos struct {
		Inspections *repository.InspectionRepository
		Catalog     *repository.CatalogRepository
	}

	Services struct {
		Production *service.ProductionService
		Dashboard  *service.DashboardService
		Catalog    *service.CatalogService
		Export     *export.Service
	}
}

// NewCore 构建核心依赖
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logCloser, _ := config.SetupLogger(config.LoggerOptions{
		Level:     cfg.App.LogLevel,
		Path:      cfg.App.LogPath,
		Component: filepath.Base(os.Args[0]),
	})

	db, err := repository.NewDatabase(repository.Options{
		Driver: cfg.Storage.Driver,
		DBPath: cfg.Storage.DBPath,
		DSN:    cfg.Storage.DSN,
		Debug:  config.ParseLevel(cfg.App.LogLevel) == slog.LevelDebug,
	})
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, err
	}

	c := NewCoreWith(cfg, db)
	c.ConfigPath = cfgPath
	c.LogCloser = logCloser
	return c, nil
}

// NewCoreWith 基于已打开的数据库装配仓储与服务（测试与嵌入场景）
func NewCoreWith(cfg *config.Config, db *repository.Database) *Core {
	c := &Core{
		Cfg:       cfg,
		DB:        db,
		Hub:       eventbus.NewHub(),
		Location:  cfg.App.Location(),
		StartedAt: time.Now(),
	}

	// Repos
	c.Repos.Inspections = repository.NewInspectionRepository(db.DB)
	c.Repos.Catalog = repository.NewCatalogRepository(db.DB)

	// Services
	c.Services.Production = service.NewProductionService(c.Repos.Inspections, c.Hub, &service.ProductionServiceConfig{
		Location:         c.Location,
		DefaultPageLimit: cfg.Stats.DefaultPageLimit,
		MaxPageLimit:     cfg.Stats.MaxPageLimit,
		ExportMaxRows:    cfg.Stats.ExportMaxRows,
	})
	c.Services.Dashboard = service.NewDashboardService(c.Services.Production, c.Repos.Catalog, c.Location, &service.DashboardServiceConfig{
		MaxDays:     cfg.Stats.MaxDashboardDays,
		Workers:     cfg.Stats.DashboardWorkers,
		DefaultDays: cfg.Stats.DefaultWindowDays,
	})
	c.Services.Catalog = service.NewCatalogService(c.Repos.Catalog)
	c.Services.Export = export.NewService(c.Services.Production)

	return c
}

// WatchConfig 监听配置文件，热更新日志级别
func (c *Core) WatchConfig() {
	if c == nil || c.ConfigPath == "" {
		return
	}
	config.Watch(c.ConfigPath, func(cfg *config.Config) {
		c.Cfg.App.LogLevel = cfg.App.LogLevel
	})
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	var dbErr error
	if c.DB != nil {
		dbErr = c.DB.Close()
	}
	if c.LogCloser != nil {
		_ = c.LogCloser.Close()
	}
	return dbErr
}
