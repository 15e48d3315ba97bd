package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/palemoky/maze-rush/internal/config"
	"github.com/palemoky/maze-rush/internal/game/room"
	"github.com/palemoky/maze-rush/internal/logger"
	"github.com/palemoky/maze-rush/internal/network/server"
	"github.com/palemoky/maze-rush/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	debug := flag.Bool("debug", false, "调试日志")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("加载配置文件失败，使用默认配置: %v", err)
		cfg = config.Default()
	}

	zlog, err := logger.New(*debug)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// 统计上报是可选依赖，Redis 不可用时降级为不上报
	var recorder room.Recorder
	if client, err := storage.NewClient(cfg.Redis); err != nil {
		zlog.Warn("redis unavailable, stats disabled", zap.Error(err))
	} else {
		defer func() { _ = client.Close() }()
		recorder = storage.NewRedisRecorder(client, zlog)
	}

	srv := server.New(cfg, zlog, recorder)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		zlog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			zlog.Error("shutdown failed", zap.Error(err))
		}
	}()

	if err := srv.Run(); err != nil {
		zlog.Fatal("server failed", zap.Error(err))
	}
}
