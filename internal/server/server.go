package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/core"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/metrics"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/gin-gonic/gin"
)

// shutdownTimeout 优雅关闭时等待进行中请求的时长
const shutdownTimeout = 30 * time.Second

// Pipeline 服务端依赖的文本提取管道
type Pipeline interface {
	FetchJobDescription(ctx context.Context, jobURL string) (string, error)
	FetchCompanyInfo(ctx context.Context, companyURL string) (string, error)
}

// Server 文本提取HTTP服务
type Server struct {
	pipeline Pipeline
	config   core.ServerConfig
	metrics  *metrics.Collector
	version  string
}

// New 创建HTTP服务
func New(pipeline Pipeline, config core.ServerConfig, collector *metrics.Collector, version string) *Server {
	return &Server{
		pipeline: pipeline,
		config:   config,
		metrics:  collector,
		version:  version,
	}
}

// Router 组装路由和中间件
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(s.metrics.Middleware())

	router.NoMethod(func(c *gin.Context) {
		utils.Warnf("不允许的请求方法: %s %s", c.Request.Method, c.Request.URL.Path)
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": msgMethodNotAllowed})
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": s.version,
		})
	})
	router.GET("/metrics", s.metrics.Handler())

	api := router.Group("/api")
	api.POST("/job-description", s.handleJobDescription)
	api.POST("/company-info", s.handleCompanyInfo)
	api.POST("/extract", s.handleExtract)

	return router
}

// Run 启动服务,ctx取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Infof("🚀 HTTP服务启动: %s", s.config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP服务启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	utils.Info("正在关闭HTTP服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP服务关闭失败: %w", err)
	}

	utils.Info("✅ HTTP服务已停止")
	return nil
}

// requestContext 为单个请求附加总时限
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.config.RequestTimeout)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		utils.Logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP请求")
	}
}
