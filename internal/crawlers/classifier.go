package crawlers

import (
	"bytes"
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/metrics"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/gocolly/colly/v2"
)

const (
	// DefaultClassifyTimeout 分类探测请求超时
	DefaultClassifyTimeout = 5 * time.Second

	// scriptDensityThreshold 超过该数量的<script即判定为动态页面
	scriptDensityThreshold = 5
)

var scriptTag = []byte("<script")

// Classifier 页面类型分类器
// 用一次轻量GET统计<script标签数量,判断是否需要无头浏览器
type Classifier struct {
	timeout            time.Duration
	headerProvider     models.HeaderProvider
	insecureSkipVerify bool
	metrics            *metrics.Collector
}

// NewClassifier 创建分类器
func NewClassifier(timeout time.Duration, headerProvider models.HeaderProvider, insecureSkipVerify bool, collector *metrics.Collector) *Classifier {
	if timeout <= 0 {
		timeout = DefaultClassifyTimeout
	}
	return &Classifier{
		timeout:            timeout,
		headerProvider:     headerProvider,
		insecureSkipVerify: insecureSkipVerify,
		metrics:            collector,
	}
}

// Classify 判断页面渲染方式
// 任何错误(包括非2xx响应)都保守地返回PageDynamic
func (c *Classifier) Classify(ctx context.Context, pageURL string) (pageType models.PageType) {
	defer func() {
		c.metrics.ObserveClassify(string(pageType))
	}()

	if ctx.Err() != nil {
		return models.PageDynamic
	}

	collector := colly.NewCollector(colly.AllowURLRevisit())
	collector.SetRequestTimeout(c.timeout)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	collector.WithTransport(transport)

	var headers http.Header
	if c.headerProvider != nil {
		h, err := c.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
		} else {
			headers = h
		}
	}

	var (
		scripts int
		failed  bool
	)

	collector.OnRequest(func(r *colly.Request) {
		for name, values := range headers {
			// 交给Transport处理压缩
			if http.CanonicalHeaderKey(name) == "Accept-Encoding" {
				continue
			}
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		scripts = bytes.Count(bytes.ToLower(r.Body), scriptTag)
	})

	collector.OnError(func(r *colly.Response, err error) {
		failed = true
		utils.Debugf("分类探测失败 [%s] (HTTP %d): %v", pageURL, r.StatusCode, err)
	})

	if err := collector.Visit(pageURL); err != nil {
		utils.Debugf("分类探测请求失败 [%s]: %v", pageURL, err)
		return models.PageDynamic
	}
	collector.Wait()

	if failed {
		return models.PageDynamic
	}
	if scripts > scriptDensityThreshold {
		utils.Debugf("🔍 页面包含%d个<script标签,使用动态渲染: %s", scripts, pageURL)
		return models.PageDynamic
	}

	utils.Debugf("🔍 页面包含%d个<script标签,使用静态渲染: %s", scripts, pageURL)
	return models.PageStatic
}
