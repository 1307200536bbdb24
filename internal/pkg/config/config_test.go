package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.App.Name != "intrack" {
		t.Fatalf("name=%q, want intrack", cfg.App.Name)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("driver=%q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Stats.DefaultPageLimit != 50 || cfg.Stats.MaxPageLimit != 500 {
		t.Fatalf("stats=%+v", cfg.Stats)
	}
	if cfg.App.Location().String() != "UTC" {
		t.Fatalf("location=%s, want UTC", cfg.App.Location())
	}
}

func TestWriteFileAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config", "config.yaml")

	cfg := Default()
	cfg.App.Timezone = "Asia/Dhaka"
	cfg.Stats.MaxDashboardDays = 31
	cfg.Storage.DBPath = filepath.Join(dir, "intrack.db")
	if err := WriteFile(path, cfg); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.App.Timezone != "Asia/Dhaka" {
		t.Fatalf("timezone=%q", got.App.Timezone)
	}
	if got.Stats.MaxDashboardDays != 31 {
		t.Fatalf("max_dashboard_days=%d, want 31", got.Stats.MaxDashboardDays)
	}
	if got.Storage.DBPath != cfg.Storage.DBPath {
		t.Fatalf("db_path=%q, want %q", got.Storage.DBPath, cfg.Storage.DBPath)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("INTRACK_STATS_MAX_PAGE_LIMIT", "100")
	t.Setenv("PG_DSN", "postgres://u:p@localhost/intrack")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  driver: Postgres\n  dsn: ${PG_DSN}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Stats.MaxPageLimit != 100 {
		t.Fatalf("max_page_limit=%d, want 100", cfg.Stats.MaxPageLimit)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Fatalf("driver=%q, want postgres", cfg.Storage.Driver)
	}
	if cfg.Storage.DSN != "postgres://u:p@localhost/intrack" {
		t.Fatalf("dsn=%q", cfg.Storage.DSN)
	}
}

func TestLocationFallback(t *testing.T) {
	app := AppConfig{Timezone: "Not/AZone"}
	if app.Location().String() != "UTC" {
		t.Fatalf("invalid timezone should fall back to UTC")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", in, got, want)
		}
	}
}
