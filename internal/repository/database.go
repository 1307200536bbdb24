package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite" // 纯 Go SQLite 驱动
	"github.com/yuqie6/intrack/internal/catalog"
	"github.com/yuqie6/intrack/internal/schema"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的存储驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options 数据库连接参数
type Options struct {
	Driver string
	DBPath string // sqlite
	DSN    string // postgres
	Debug  bool   // 打开 gorm 警告日志
}

// Database 数据库管理器
type Database struct {
	DB             *gorm.DB
	Driver         string
	SafeMode       bool
	SchemaVersion  int
	MigrationError string
}

// NewDatabase 创建数据库连接并执行迁移
func NewDatabase(opts Options) (*Database, error) {
	// TranslateError 让唯一约束冲突统一为 gorm.ErrDuplicatedKey
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true}
	if opts.Debug {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch opts.Driver {
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres 驱动需要配置 storage.dsn")
		}
		db, err = gorm.Open(postgres.Open(opts.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("连接数据库失败: %w", err)
		}
	case DriverSQLite, "":
		opts.Driver = DriverSQLite
		if opts.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("创建数据目录失败: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(opts.DBPath), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("连接数据库失败: %w", err)
		}
		if err := configureSQLite(db, opts.DBPath); err != nil {
			return nil, fmt.Errorf("配置数据库失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的存储驱动: %s", opts.Driver)
	}

	d := &Database{DB: db, Driver: opts.Driver}
	if err := migrateWithVersion(db, d); err != nil {
		// 迁移失败进入安全模式：服务仍可启动，由 /health 暴露原因
		d.SafeMode = true
		d.MigrationError = err.Error()
		slog.Error("数据库迁移失败，进入安全模式", "error", err)
	}

	slog.Info("数据库初始化成功", "driver", opts.Driver, "path", opts.DBPath)
	return d, nil
}

// configureSQLite 配置 SQLite 性能参数
func configureSQLite(db *gorm.DB, path string) error {
	if path == ":memory:" {
		// 内存库每个连接相互独立，只保留一个连接
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		sqlDB.SetMaxOpenConns(1)
		return nil
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // 读写并发
		"PRAGMA synchronous=NORMAL", // 平衡性能与安全
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("执行 %s 失败: %w", pragma, err)
		}
	}
	return nil
}

// AutoMigrate 迁移全部业务表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.SchemaMeta{},
		&schema.InspectionRecord{},
		&schema.ProductionLine{},
		&schema.QualityLabel{},
	)
}

const latestSchemaVersion = 1

func migrateWithVersion(db *gorm.DB, out *Database) error {
	if db == nil {
		return fmt.Errorf("db 不能为空")
	}
	if out == nil {
		return fmt.Errorf("out 不能为空")
	}

	// 先确保 schema_meta 存在（即使后续迁移失败，也能记录状态）
	if err := db.AutoMigrate(&schema.SchemaMeta{}); err != nil {
		return fmt.Errorf("创建 schema_meta 失败: %w", err)
	}

	var meta schema.SchemaMeta
	err := db.First(&meta, 1).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			meta = schema.SchemaMeta{ID: 1}
			if err := db.Create(&meta).Error; err != nil {
				return fmt.Errorf("初始化 schema_meta 失败: %w", err)
			}
		} else {
			return fmt.Errorf("读取 schema_meta 失败: %w", err)
		}
	}

	out.SchemaVersion = meta.SchemaVersion
	if meta.SchemaVersion > latestSchemaVersion {
		return fmt.Errorf("数据库 schema_version=%d 高于当前程序支持的版本=%d", meta.SchemaVersion, latestSchemaVersion)
	}

	if meta.SchemaVersion < latestSchemaVersion {
		if err := AutoMigrate(db); err != nil {
			return fmt.Errorf("迁移数据库失败: %w", err)
		}
		meta.SchemaVersion = latestSchemaVersion
		if err := db.Save(&meta).Error; err != nil {
			return fmt.Errorf("写入 schema_meta 失败: %w", err)
		}
		out.SchemaVersion = latestSchemaVersion
	}

	return seedCatalog(db, &meta)
}

// seedCatalog 导入内置产线与标签目录（按 seed_version 只导入一次，已存在的条目跳过）
func seedCatalog(db *gorm.DB, meta *schema.SchemaMeta) error {
	c, err := catalog.Default()
	if err != nil {
		return err
	}
	if meta.SeedVersion >= c.Version {
		return nil
	}

	if err := SeedCatalog(db, c); err != nil {
		return err
	}

	meta.SeedVersion = c.Version
	if err := db.Model(&schema.SchemaMeta{}).Where("id = ?", meta.ID).
		Update("seed_version", c.Version).Error; err != nil {
		return fmt.Errorf("写入 seed_version 失败: %w", err)
	}
	slog.Info("默认目录已导入", "version", c.Version, "lines", len(c.Lines))
	return nil
}

// Close 关闭数据库连接
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
