package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服务端配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	Game   GameConfig   `yaml:"game"`
	Limits LimitsConfig `yaml:"limits"`
}

// ServerConfig HTTP/WebSocket 服务器配置
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RedisConfig Redis 配置（对局统计上报，尽力而为）
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GameConfig 对局配置
type GameConfig struct {
	MazeCells     int     `yaml:"maze_cells"`      // 迷宫边长（单元格数）
	MinPathFactor float64 `yaml:"min_path_factor"` // 起点到终点最短路径下限系数

	TickMillis        int `yaml:"tick_millis"`        // 物理帧间隔（毫秒）
	CountdownSeconds  int `yaml:"countdown_seconds"`  // 倒计时时长（秒）
	PrepSeconds       int `yaml:"prep_seconds"`       // 布置阶段时长（秒）
	ExploreSeconds    int `yaml:"explore_seconds"`    // 探索阶段时长（秒）
	DisconnectSeconds int `yaml:"disconnect_seconds"` // 掉线暂停等待时长（秒）
	HeartbeatSeconds  int `yaml:"heartbeat_seconds"`  // 心跳超时（秒）
}

// LimitsConfig 连接与消息限制
type LimitsConfig struct {
	MessagesPerSecond int `yaml:"messages_per_second"` // 单连接每秒消息上限
	MailboxDepth      int `yaml:"mailbox_depth"`       // 出站队列长度上限
	SendIntervalMs    int `yaml:"send_interval_ms"`    // 最小发送间隔（毫秒）
	MaxMessageBytes   int `yaml:"max_message_bytes"`   // 单条消息编码后大小上限
}

// TickInterval 返回物理帧间隔
func (c *GameConfig) TickInterval() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}

// CountdownDuration 返回倒计时时长
func (c *GameConfig) CountdownDuration() time.Duration {
	return time.Duration(c.CountdownSeconds) * time.Second
}

// PrepDuration 返回布置阶段时长
func (c *GameConfig) PrepDuration() time.Duration {
	return time.Duration(c.PrepSeconds) * time.Second
}

// ExploreDuration 返回探索阶段时长
func (c *GameConfig) ExploreDuration() time.Duration {
	return time.Duration(c.ExploreSeconds) * time.Second
}

// DisconnectTimeout 返回掉线暂停等待时长
func (c *GameConfig) DisconnectTimeout() time.Duration {
	return time.Duration(c.DisconnectSeconds) * time.Second
}

// HeartbeatTimeout 返回心跳超时
func (c *GameConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// SendInterval 返回出站最小发送间隔
func (c *LimitsConfig) SendInterval() time.Duration {
	return time.Duration(c.SendIntervalMs) * time.Millisecond
}

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults 为零值字段填充默认值
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 1791
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Game.MazeCells == 0 {
		c.Game.MazeCells = 12
	}
	if c.Game.MinPathFactor == 0 {
		c.Game.MinPathFactor = 3.0
	}
	if c.Game.TickMillis == 0 {
		c.Game.TickMillis = 50
	}
	if c.Game.CountdownSeconds == 0 {
		c.Game.CountdownSeconds = 3
	}
	if c.Game.PrepSeconds == 0 {
		c.Game.PrepSeconds = 60
	}
	if c.Game.ExploreSeconds == 0 {
		c.Game.ExploreSeconds = 180
	}
	if c.Game.DisconnectSeconds == 0 {
		c.Game.DisconnectSeconds = 30
	}
	if c.Game.HeartbeatSeconds == 0 {
		c.Game.HeartbeatSeconds = 15
	}
	if c.Limits.MessagesPerSecond == 0 {
		c.Limits.MessagesPerSecond = 30
	}
	if c.Limits.MailboxDepth == 0 {
		c.Limits.MailboxDepth = 64
	}
	if c.Limits.SendIntervalMs == 0 {
		c.Limits.SendIntervalMs = 33
	}
	if c.Limits.MaxMessageBytes == 0 {
		c.Limits.MaxMessageBytes = 64 * 1024
	}
}
