package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"borrowbuddy/auth"
	"borrowbuddy/config"
	"borrowbuddy/db"
	"borrowbuddy/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	WA     *webauthn.WebAuthn
	Config Config

	Repo       *db.Repo
	Identity   *auth.Provider
	Passwords  *auth.PasswordAuthenticator
	Ceremonies *session.Store
	Metrics    *Metrics
}

// Config 从环境变量读取
type Config struct {
	DBDriver     string
	DatabaseURL  string
	MaxOpenConns int
	RedisAddr    string
	RedisPwd     string
	JWTSecret    string
	WebOrigin    string
	RPID         string
	RPOrigins    []string
	SessionTTL   time.Duration // 业务会话 / token 有效期
	CeremonyTTL  time.Duration // WebAuthn 仪式中间态
	Port         string
}

func LoadConfig() Config {
	driver := config.Get("DB_DRIVER", db.DriverPostgres)
	dsn := config.Get("DATABASE_URL", "")
	if driver == db.DriverSQLite {
		dsn = config.Get("SQLITE_PATH", "borrowbuddy.db")
	} else if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			config.Get("DB_HOST", "127.0.0.1"),
			config.Get("DB_USER", "postgres"),
			config.Get("DB_PASSWORD", "postgres"),
			config.Get("DB_NAME", "borrowbuddy"),
			config.Get("DB_PORT", "5432"),
			config.Get("DB_SSLMODE", "disable"),
		)
	}
	origin := config.Get("WEB_ORIGIN", "http://localhost:5173")
	return Config{
		DBDriver:     driver,
		DatabaseURL:  dsn,
		MaxOpenConns: config.Int("DB_MAX_OPEN_CONNS", 20),
		RedisAddr:    config.Get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:     os.Getenv("REDIS_PASSWORD"),
		JWTSecret:    config.Get("JWT_SECRET", ""),
		WebOrigin:    origin,
		RPID:         config.Get("RP_ID", "localhost"),
		RPOrigins:    config.List("RP_ORIGINS", origin),
		SessionTTL:   config.Seconds("SESSION_TTL_SECONDS", 24*time.Hour),
		CeremonyTTL:  5 * time.Minute,
		Port:         config.Get("PORT", "3001"),
	}
}

// MustNew 连接 DB 与 Redis；任何一步失败直接退出
func MustNew(cfg Config) *App {
	if cfg.JWTSecret == "" {
		fatal("JWT_SECRET is required")
	}

	conn, err := db.Open(db.Options{Driver: cfg.DBDriver, DSN: cfg.DatabaseURL, MaxOpenConns: cfg.MaxOpenConns})
	if err != nil {
		fatal("db", "err", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fatal("redis", "addr", cfg.RedisAddr, "err", err)
	}

	a, err := New(cfg, conn, rdb)
	if err != nil {
		fatal("app", "err", err)
	}
	return a
}

// New wires the app around already opened store and redis handles.
func New(cfg Config, conn *gorm.DB, rdb *redis.Client) (*App, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "BorrowBuddy",
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn: %w", err)
	}

	repo := db.NewRepo(conn)
	metrics := NewMetrics()

	// --- Gin ---
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), metrics.Middleware())
	useCORS(r, cfg.WebOrigin)

	return &App{
		Router: r, DB: conn, RDB: rdb, WA: wa, Config: cfg,
		Repo:       repo,
		Identity:   auth.NewProvider(auth.NewJWTManager(cfg.JWTSecret, cfg.SessionTTL), session.NewAppSessionStore(rdb, cfg.SessionTTL)),
		Passwords:  auth.NewPasswordAuthenticator(repo),
		Ceremonies: session.NewStore(rdb, cfg.CeremonyTTL),
		Metrics:    metrics,
	}, nil
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if err := db.Close(a.DB); err != nil {
		slog.Warn("close db", "err", err)
	}
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
