package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 容器镜像可能缺少系统时区库

	"github.com/spf13/cobra"
	"github.com/yuqie6/intrack/internal/bootstrap"
	"github.com/yuqie6/intrack/internal/httpapi"
	"github.com/yuqie6/intrack/internal/pkg/buildinfo"
	"github.com/yuqie6/intrack/internal/pkg/config"
)

func main() {
	var cfgFile, listen string

	rootCmd := &cobra.Command{
		Use:     "intrack-server",
		Short:   "InTrack 生产统计服务",
		Version: buildinfo.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgFile, listen)
		},
	}
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径（默认为可执行文件旁的 config/config.yaml）")
	rootCmd.Flags().StringVarP(&listen, "listen", "l", "", "监听地址，覆盖 server.listen_addr")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfgFile, listen string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := cfgFile
	if path == "" {
		if p, err := config.DefaultConfigPath(); err == nil {
			path = p
			if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
				_ = config.WriteFile(p, config.Default())
			}
		}
	}

	core, err := bootstrap.NewCore(path)
	if err != nil {
		slog.Error("启动失败", "error", err)
		return err
	}
	defer core.Close()
	core.WatchConfig()

	slog.Info("InTrack 启动中...", "name", core.Cfg.App.Name, "version", buildinfo.Version, "timezone", core.Location.String())

	srv, err := httpapi.Start(ctx, core, httpapi.Options{ListenAddr: listen})
	if err != nil {
		slog.Error("启动 HTTP 服务失败", "error", err)
		return err
	}

	<-ctx.Done()
	slog.Info("收到退出信号，正在关闭...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP 服务关闭超时", "error", err)
	}
	slog.Info("InTrack 已退出")
	return nil
}
