// Package fetcher 实现带重试和浏览器身份伪装的HTTP抓取
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/metrics"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const (
	// DefaultTimeout 单次尝试超时
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodyBytes 响应体上限 (5MB)
	DefaultMaxBodyBytes = 5 * 1024 * 1024
)

// Config 抓取器配置
type Config struct {
	Timeout            time.Duration
	MaxBodyBytes       int64
	InsecureSkipVerify bool
	Retry              RetryPolicy
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		MaxBodyBytes: DefaultMaxBodyBytes,
		Retry:        DefaultRetryPolicy(),
	}
}

// Fetcher HTTP抓取器
// 任何失败都体现在返回的FetchResult中,不会panic也不会返回error
type Fetcher struct {
	client         *http.Client
	config         Config
	headerProvider models.HeaderProvider
	retry          retrypolicy.RetryPolicy[*attempt]
	metrics        *metrics.Collector
}

// attempt 单次请求的结果,响应体在attempt内部读取完毕
type attempt struct {
	statusCode      int
	body            []byte
	contentType     string
	contentEncoding string
	finalURL        string
}

// New 创建抓取器
func New(config Config, headerProvider models.HeaderProvider, collector *metrics.Collector) *Fetcher {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	config.Retry = config.Retry.normalize()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
		},
		config:         config,
		headerProvider: headerProvider,
		retry:          config.Retry.build(),
		metrics:        collector,
	}
}

// WithClient 替换底层HTTP客户端
func (f *Fetcher) WithClient(client *http.Client) *Fetcher {
	f.client = client
	return f
}

// Fetch 抓取URL,按重试策略自动重试
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) *models.FetchResult {
	start := time.Now()
	result := &models.FetchResult{URL: rawURL}

	defer func() {
		result.Duration = time.Since(start)
		f.metrics.ObserveFetch(result.Status.String(), result.Attempts, result.Duration)
	}()

	if err := models.ValidateURL(rawURL); err != nil {
		result.Status = models.StatusConnectionError
		result.Err = models.NewPipelineError(models.KindNetwork, rawURL, err)
		return result
	}

	var (
		last    *attempt
		lastErr error
	)

	_, execErr := failsafe.With[*attempt](f.retry).WithContext(ctx).Get(func() (*attempt, error) {
		result.Attempts++
		a, err := f.doAttempt(ctx, rawURL)
		last, lastErr = a, err

		outcome := f.config.Retry.Classify(statusOf(a), err)
		if outcome.Kind == OutcomeRetryable && result.Attempts < f.config.Retry.MaxAttempts {
			utils.Warnf("🔁 抓取失败,准备重试 [%d/%d] %s: %s",
				result.Attempts, f.config.Retry.MaxAttempts, rawURL, outcome.Reason)
		}
		return a, err
	})

	switch {
	case lastErr != nil:
		result.Status, result.Err = failureFromError(rawURL, lastErr)
	case last == nil:
		// 首次尝试前上下文已结束
		result.Status, result.Err = failureFromError(rawURL, execErr)
	case last.statusCode < 200 || last.statusCode >= 300:
		result.Status = models.StatusHTTPError
		result.StatusCode = last.statusCode
		result.FinalURL = last.finalURL
		result.Err = &models.PipelineError{
			Kind:       models.KindHTTP,
			URL:        rawURL,
			StatusCode: last.statusCode,
		}
	default:
		f.fillSuccess(result, last)
	}

	if result.OK() {
		utils.Debugf("📥 抓取成功: %s (%d字节, %s, 尝试%d次)", rawURL, len(result.RawBody), result.Charset, result.Attempts)
	} else {
		utils.Warnf("❌ 抓取失败: %s (%s, 尝试%d次): %v", rawURL, result.Status, result.Attempts, result.Err)
	}

	return result
}

// doAttempt 执行一次请求并读取完整响应体
func (f *Fetcher) doAttempt(ctx context.Context, rawURL string) (*attempt, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if err := models.ApplyHeaders(req, f.headerProvider); err != nil {
		return nil, fmt.Errorf("获取HTTP头部失败: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	a := &attempt{
		statusCode:      resp.StatusCode,
		contentType:     resp.Header.Get("Content-Type"),
		contentEncoding: resp.Header.Get("Content-Encoding"),
		finalURL:        resp.Request.URL.String(),
	}

	// 非2xx响应体不需要
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return a, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.config.MaxBodyBytes {
		utils.Warnf("响应体超过上限,已截断: %s (%d字节)", rawURL, f.config.MaxBodyBytes)
		body = body[:f.config.MaxBodyBytes]
	}
	a.body = body

	return a, nil
}

// fillSuccess 解压并解码响应体
func (f *Fetcher) fillSuccess(result *models.FetchResult, a *attempt) {
	result.StatusCode = a.statusCode
	result.FinalURL = a.finalURL
	result.ContentType = a.contentType

	raw, err := decompressResponse(a.contentEncoding, a.body)
	if err != nil {
		result.Status = models.StatusParseError
		result.Err = models.NewPipelineError(models.KindParse, result.URL, err)
		return
	}

	text, charsetName, err := decodeBody(raw, a.contentType)
	if err != nil {
		result.Status = models.StatusParseError
		result.Err = models.NewPipelineError(models.KindParse, result.URL, err)
		return
	}

	result.Status = models.StatusOK
	result.RawBody = raw
	result.Body = text
	result.Charset = charsetName
}

func statusOf(a *attempt) int {
	if a == nil {
		return 0
	}
	return a.statusCode
}

// failureFromError 把底层错误映射为抓取状态
func failureFromError(rawURL string, err error) (models.FetchStatus, error) {
	if err == nil {
		err = errors.New("未知错误")
	}
	if isTimeout(err) {
		return models.StatusTimeout, models.NewPipelineError(models.KindTimeout, rawURL, err)
	}
	return models.StatusConnectionError, models.NewPipelineError(models.KindNetwork, rawURL, err)
}
