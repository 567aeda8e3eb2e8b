// Package metrics 提供抓取管道的Prometheus指标
//
// 所有方法对nil接收者安全,未启用指标时组件可以直接传nil。
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cvcrawl"

// Collector 管道指标收集器
type Collector struct {
	registry *prometheus.Registry

	fetchTotal        *prometheus.CounterVec
	fetchAttempts     prometheus.Histogram
	fetchDuration     *prometheus.HistogramVec
	classifyTotal     *prometheus.CounterVec
	renderTotal       *prometheus.CounterVec
	pagesPerCrawl     prometheus.Histogram
	ocrTotal          *prometheus.CounterVec
	browserSessions   prometheus.Gauge
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewCollector 创建收集器,使用独立的Registry
func NewCollector(version string) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_total",
		Help:      "HTTP fetches by final status",
	}, []string{"status"})

	c.fetchAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_attempts",
		Help:      "Attempts used per fetch including retries",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})

	c.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Fetch duration including retries",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	c.classifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classify_total",
		Help:      "Page type classification results",
	}, []string{"page_type"})

	c.renderTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "render_total",
		Help:      "Page renders by mode and result",
	}, []string{"mode", "result"})

	c.pagesPerCrawl = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "crawl_pages",
		Help:      "Pages contributing text per site crawl",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 30},
	})

	c.ocrTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ocr_images_total",
		Help:      "OCR image recognitions by result",
	}, []string{"result"})

	c.browserSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "browser_sessions_active",
		Help:      "Headless browser sessions currently open",
	})

	c.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of API requests",
	}, []string{"method", "endpoint", "status"})

	c.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "API request duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	}, []string{"method", "endpoint"})

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version"})
	buildInfo.WithLabelValues(version).Set(1)

	c.registry.MustRegister(
		c.fetchTotal,
		c.fetchAttempts,
		c.fetchDuration,
		c.classifyTotal,
		c.renderTotal,
		c.pagesPerCrawl,
		c.ocrTotal,
		c.browserSessions,
		c.httpRequestsTotal,
		c.httpDuration,
		buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry 返回底层Registry
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveFetch 记录一次抓取
func (c *Collector) ObserveFetch(status string, attempts int, d time.Duration) {
	if c == nil {
		return
	}
	c.fetchTotal.WithLabelValues(status).Inc()
	c.fetchAttempts.Observe(float64(attempts))
	c.fetchDuration.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveClassify 记录分类结果
func (c *Collector) ObserveClassify(pageType string) {
	if c == nil {
		return
	}
	c.classifyTotal.WithLabelValues(pageType).Inc()
}

// ObserveRender 记录页面渲染
func (c *Collector) ObserveRender(mode string, ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.renderTotal.WithLabelValues(mode, result).Inc()
}

// ObserveCrawl 记录一次站点爬取贡献文本的页面数
func (c *Collector) ObserveCrawl(pages int) {
	if c == nil {
		return
	}
	c.pagesPerCrawl.Observe(float64(pages))
}

// ObserveOCR 记录OCR结果
func (c *Collector) ObserveOCR(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.ocrTotal.WithLabelValues(result).Inc()
}

// BrowserOpened 浏览器会话打开
func (c *Collector) BrowserOpened() {
	if c == nil {
		return
	}
	c.browserSessions.Inc()
}

// BrowserClosed 浏览器会话关闭
func (c *Collector) BrowserClosed() {
	if c == nil {
		return
	}
	c.browserSessions.Dec()
}

// Middleware 记录API请求指标的gin中间件
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if c == nil {
			ctx.Next()
			return
		}

		start := time.Now()
		ctx.Next()

		endpoint := ctx.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(ctx.Writer.Status())

		c.httpRequestsTotal.WithLabelValues(ctx.Request.Method, endpoint, status).Inc()
		c.httpDuration.WithLabelValues(ctx.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler Prometheus抓取端点
func (c *Collector) Handler() gin.HandlerFunc {
	if c == nil {
		return func(ctx *gin.Context) { ctx.Status(404) }
	}
	handler := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
	return func(ctx *gin.Context) {
		handler.ServeHTTP(ctx.Writer, ctx.Request)
	}
}
