package app

import (
	"context"
	"dynamic_quiz_backend/internal/config"
	"dynamic_quiz_backend/internal/controller"
	"dynamic_quiz_backend/internal/event"
	"dynamic_quiz_backend/internal/middleware"
	"dynamic_quiz_backend/internal/repository"
	"dynamic_quiz_backend/internal/service"
	"dynamic_quiz_backend/internal/util"
	"dynamic_quiz_backend/pkg/configwatcher"
	"dynamic_quiz_backend/pkg/database"
	"dynamic_quiz_backend/pkg/logger"
	"dynamic_quiz_backend/pkg/monitoring"
	"dynamic_quiz_backend/pkg/security"
	"dynamic_quiz_backend/pkg/tracing"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigDir       string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	closers         []func()
	configCallbacks []func(*config.Config)
}

type repositories struct {
	session repository.SessionStore
}

type services struct {
	quizSession *service.QuizSessionService
}

type controllers struct {
	quizSession *controller.QuizSessionController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) onConfigReload(cfg *config.Config) {
	a.Config = cfg
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(cfg *config.Config) (*repositories, error) {
	switch cfg.Store.Driver {
	case util.StoreMemory:
		logger.Log.Warn("Using in-memory session store, data is lost on restart")
		return &repositories{session: repository.NewMemorySessionStore()}, nil
	case util.StoreMySQL:
		db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		})

		// release 模式默认不迁移，需要时通过 -migrate 显式开启
		if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
			if err := database.Migrate(db); err != nil {
				return nil, fmt.Errorf("migrate database: %w", err)
			}
		}
		return &repositories{session: repository.NewQuizSessionRepository(db)}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// initQuestionSource 主来源可选缓存，开启兜底时失败后依次尝试内置题库与通用题目
func (a *App) initQuestionSource(cfg *config.Config) (service.QuestionSource, error) {
	template := service.NewTemplateQuestionSource()

	var primary service.QuestionSource
	switch cfg.Source.Type {
	case util.SourceTemplate:
		primary = template
	case util.SourceAI:
		primary = service.NewAIQuestionSource(cfg.Source.AI)
	case util.SourceGemini:
		gemini, err := service.NewGeminiQuestionSource(context.Background(), cfg.Source.Gemini)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { gemini.Close() })
		primary = gemini
	default:
		return nil, fmt.Errorf("unknown question source %q", cfg.Source.Type)
	}

	if cfg.Source.CacheEnabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, func() { rdb.Close() })
		primary = service.NewCachedQuestionSource(primary, service.NewRedisBatchCache(rdb), cfg.Source.CacheTTL)
	}

	if !cfg.Source.FallbackEnabled {
		return primary, nil
	}
	var secondary service.QuestionSource = service.GenericQuestionSource{}
	if cfg.Source.Type != util.SourceTemplate {
		secondary = service.NewFallbackQuestionSource(template, secondary)
	}
	return service.NewFallbackQuestionSource(primary, secondary), nil
}

func (a *App) initPublisher(cfg *config.Config) service.EventPublisher {
	if !cfg.Events.Enabled {
		return event.NopPublisher{}
	}
	pub, err := event.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
	if err != nil {
		// 事件不是核心链路，连接失败时降级为不发布
		logger.Log.Error("Failed to connect event broker, events disabled", zap.Error(err))
		return event.NopPublisher{}
	}
	a.closers = append(a.closers, pub.Close)
	return pub
}

func (a *App) initServices(repos *repositories, source service.QuestionSource, publisher service.EventPublisher, cfg *config.Config) *services {
	s := &services{
		quizSession: service.NewQuizSessionService(repos.session, source, publisher, cfg.Quiz),
	}

	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.quizSession.UpdateQuizConfig(newCfg.Quiz)
	})
	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		quizSession: controller.NewQuizSessionController(s.quizSession),
		health:      controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if cfg.RateLimit.MaxRequests > 0 && window > 0 {
		router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	gin.SetMode(cfg.Server.Mode)

	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
	}

	repos, err := app.initRepositories(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize session store", zap.Error(err))
		log.Fatalf("Failed to initialize session store: %v", err)
	}
	if cfg.MigrateOnly {
		return app
	}

	source, err := app.initQuestionSource(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize question source", zap.Error(err))
	}
	publisher := app.initPublisher(cfg)

	app.services = app.initServices(repos, source, publisher, cfg)
	controllers := app.initControllers(app.services)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	router := gin.New()
	app.Router = router
	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers)

	logger.Log.Info("Application initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("source", source.Name()),
		zap.Bool("events", cfg.Events.Enabled),
	)
	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 配置热更新
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		configFile := filepath.Join(a.ConfigDir, "config.yaml")
		if err := configwatcher.WatchConfig(watchCtx, configFile, a.onConfigReload); err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")
	stopWatch()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close()
	logger.Log.Info("Server exiting")
}

// Close 逆序释放外部连接
func (a *App) Close() {
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
