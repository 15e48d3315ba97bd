package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/palemoky/maze-rush/internal/config"
	"github.com/palemoky/maze-rush/internal/game/room"
	"github.com/palemoky/maze-rush/internal/logger"
	"github.com/palemoky/maze-rush/internal/protocol"
)

const (
	// 空房回收
	roomIdleTTL     = 10 * time.Minute
	cleanupInterval = time.Minute

	// 同时存在的房间上限
	maxRooms = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源，生产环境需要限制
	},
}

// Server HTTP 入口与房间注册表。房间一经创建即独立运行，
// 这里只负责分配、查找与回收。
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	recorder room.Recorder
	engine   *gin.Engine
	limiter  *MessageRateLimiter
	httpSrv  *http.Server

	mu    sync.RWMutex
	rooms map[string]*room.Room

	rngMu sync.Mutex
	rng   *rand.Rand

	quit     chan struct{}
	stopOnce sync.Once
}

// New 创建服务器并注册路由
func New(cfg *config.Config, log *zap.Logger, recorder room.Recorder) *Server {
	if recorder == nil {
		recorder = room.NopRecorder{}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(logger.GinRequestLogger(log), gin.Recovery())

	s := &Server{
		cfg:      cfg,
		log:      log,
		recorder: recorder,
		engine:   engine,
		limiter:  NewMessageRateLimiter(cfg.Limits.MessagesPerSecond),
		rooms:    make(map[string]*room.Room),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		quit:     make(chan struct{}),
	}
	s.routes()

	go s.cleanupLoop()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.POST("/rooms", s.handleCreateRoom)
	s.engine.POST("/rooms/:code/rematch", s.handleRematch)
	s.engine.GET("/rooms/:code/ws", s.handleWebSocket)
}

// Run 启动 HTTP 服务，阻塞到服务退出
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}
	s.log.Info("server listening", zap.String("addr", addr))

	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown 优雅关闭：停止接受新请求，停掉全部房间
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.quit) })

	s.mu.Lock()
	for code, r := range s.rooms {
		r.Stop()
		delete(s.rooms, code)
	}
	s.mu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// handleCreateRoom 分配房间码并启动房间协程
func (s *Server) handleCreateRoom(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rooms) >= maxRooms {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "SERVER_FULL"})
		return
	}

	code := s.allocateCode()
	r, err := room.New(room.Options{
		Code:     code,
		Config:   s.cfg,
		Logger:   s.log,
		Recorder: s.recorder,
	})
	if err != nil {
		s.log.Error("room create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"code": protocol.ErrCodeInternal})
		return
	}
	s.rooms[code] = r
	go r.Run()

	s.log.Info("room created", zap.String("room", code))
	c.JSON(http.StatusCreated, gin.H{"code": code})
}

// handleRematch 请求角色互换重开一局
func (s *Server) handleRematch(c *gin.Context) {
	code := c.Param("code")
	r := s.lookupRoom(code)
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "ROOM_NOT_FOUND"})
		return
	}

	err := r.RequestRematch()
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"code": code})
		return
	}
	if errors.Is(err, room.ErrRoomClosed) {
		c.JSON(http.StatusGone, gin.H{"code": "ROOM_NOT_FOUND"})
		return
	}
	var policy *room.PolicyError
	if errors.As(err, &policy) {
		c.JSON(http.StatusConflict, gin.H{"code": policy.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"code": protocol.ErrCodeInternal})
}

// handleWebSocket 参数校验通过才升级，升级后把加入失败转成致命 ERROR
func (s *Server) handleWebSocket(c *gin.Context) {
	code := c.Param("code")
	if !validRoomCode(code) {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ROOM_CODE"})
		return
	}
	nickname := c.Query("nickname")
	if !validNickname(nickname) {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_NICKNAME"})
		return
	}
	role := room.Role(c.Query("role"))
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ROLE"})
		return
	}
	r := s.lookupRoom(code)
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "ROOM_NOT_FOUND"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	mailbox := NewMailbox(conn, s.cfg.Limits, s.log)
	client := NewClient(conn, r, mailbox, s.limiter, s.log)

	if err := r.Join(client, role, nickname); err != nil {
		var policy *room.PolicyError
		fatalCode := protocol.ErrCodeInternal
		if errors.As(err, &policy) {
			fatalCode = policy.Code
		}
		_ = client.SendImmediate(protocol.NewFatalMessage(fatalCode))
		// 给邮箱一点时间把致命错误推出去
		time.AfterFunc(time.Second, client.Close)
		return
	}

	s.log.Info("connection joined",
		zap.String("room", code),
		zap.String("role", string(role)),
		zap.String("nickname", nickname),
	)
	go client.ReadPump()
}

// lookupRoom 查找房间
func (s *Server) lookupRoom(code string) *room.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[code]
}

// RoomCount 当前房间数
func (s *Server) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// allocateCode 生成未被占用的房间码，调用方持有写锁
func (s *Server) allocateCode() string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	for {
		code := generateRoomCode(s.rng)
		if _, taken := s.rooms[code]; !taken {
			return code
		}
	}
}

// cleanupLoop 定期回收长时间无人的房间
func (s *Server) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reapIdleRooms()
		case <-s.quit:
			return
		}
	}
}

func (s *Server) reapIdleRooms() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for code, r := range s.rooms {
		if r.SessionCount() == 0 && now.Sub(r.LastActiveAt()) > roomIdleTTL {
			r.Stop()
			delete(s.rooms, code)
			s.log.Info("room reaped", zap.String("room", code))
		}
	}
}
