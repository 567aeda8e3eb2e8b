// Package ocr 对接异步OCR服务,识别招聘公告中的图片文字
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/metrics"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const (
	DefaultSubmitPath   = "/vision/v3.2/read/analyze"
	DefaultKeyHeader    = "Ocp-Apim-Subscription-Key"
	DefaultMaxPolls     = 10
	DefaultPollInterval = time.Second
	DefaultMaxImages    = 10
	DefaultTimeout      = 15 * time.Second
)

// Config OCR服务配置
type Config struct {
	Enabled      bool          `mapstructure:"enabled"`
	Endpoint     string        `mapstructure:"endpoint"`
	SubmitPath   string        `mapstructure:"submit_path"`
	APIKey       string        `mapstructure:"api_key"`
	KeyHeader    string        `mapstructure:"key_header"`
	MaxPolls     int           `mapstructure:"max_polls"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxImages    int           `mapstructure:"max_images"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// DefaultConfig 默认配置,endpoint和api_key需要用户提供
func DefaultConfig() Config {
	return Config{
		SubmitPath:   DefaultSubmitPath,
		KeyHeader:    DefaultKeyHeader,
		MaxPolls:     DefaultMaxPolls,
		PollInterval: DefaultPollInterval,
		MaxImages:    DefaultMaxImages,
		Timeout:      DefaultTimeout,
	}
}

// Client OCR客户端
// 所有失败只记录日志,对调用方表现为空文本
type Client struct {
	config   Config
	client   *http.Client
	poll     retrypolicy.RetryPolicy[*readOperation]
	redactor *utils.HeaderRedactor
	metrics  *metrics.Collector
}

// readOperation 轮询接口的响应
type readOperation struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		ReadResults []struct {
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
}

// pending 识别任务是否仍在进行
func (op *readOperation) pending() bool {
	if op == nil {
		return false
	}
	switch strings.ToLower(op.Status) {
	case "notstarted", "running":
		return true
	}
	return false
}

func (op *readOperation) text() string {
	var lines []string
	for _, page := range op.AnalyzeResult.ReadResults {
		for _, line := range page.Lines {
			if t := strings.TrimSpace(line.Text); t != "" {
				lines = append(lines, t)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// NewClient 创建OCR客户端
func NewClient(config Config, collector *metrics.Collector) *Client {
	defaults := DefaultConfig()
	if config.SubmitPath == "" {
		config.SubmitPath = defaults.SubmitPath
	}
	if config.KeyHeader == "" {
		config.KeyHeader = defaults.KeyHeader
	}
	if config.MaxPolls <= 0 {
		config.MaxPolls = defaults.MaxPolls
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxImages <= 0 {
		config.MaxImages = defaults.MaxImages
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	config.Endpoint = strings.TrimRight(config.Endpoint, "/")

	// 首次查询立即发出,之后按固定间隔重试
	poll := retrypolicy.NewBuilder[*readOperation]().
		WithDelay(config.PollInterval).
		WithMaxRetries(config.MaxPolls - 1).
		HandleIf(func(op *readOperation, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return op.pending()
		}).
		Build()

	return &Client{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		poll:     poll,
		redactor: utils.NewHeaderRedactor(),
		metrics:  collector,
	}
}

// WithHTTPClient 替换底层HTTP客户端
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.client = client
	}
	return c
}

// Configured 是否提供了服务地址和密钥
func (c *Client) Configured() bool {
	return c.config.Endpoint != "" && c.config.APIKey != ""
}

// ExtractImageText 识别多张图片,成功结果按行拼接,失败的图片不贡献文本
func (c *Client) ExtractImageText(ctx context.Context, imageURLs []string) string {
	var texts []string
	for _, result := range c.RecognizeAll(ctx, imageURLs) {
		if result.Err == nil && result.Text != "" {
			texts = append(texts, result.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// RecognizeAll 依次识别图片,跳过svg/ico/data URL,最多MaxImages张
func (c *Client) RecognizeAll(ctx context.Context, imageURLs []string) []models.OcrResult {
	if !c.Configured() {
		utils.Debugf("OCR未配置,跳过%d张图片", len(imageURLs))
		return nil
	}

	candidates := FilterImages(imageURLs, c.config.MaxImages)
	results := make([]models.OcrResult, 0, len(candidates))
	for _, imageURL := range candidates {
		if ctx.Err() != nil {
			break
		}
		results = append(results, c.Recognize(ctx, imageURL))
	}
	return results
}

// Recognize 识别单张图片
// 错误记录在结果的Err中,Text为空
func (c *Client) Recognize(ctx context.Context, imageURL string) models.OcrResult {
	result := models.OcrResult{ImageURL: imageURL}

	text, err := c.recognize(ctx, imageURL)
	c.metrics.ObserveOCR(err == nil)
	if err != nil {
		utils.Warnf("OCR识别失败 [%s]: %v", c.redactor.RedactURL(imageURL), err)
		result.Err = models.NewPipelineError(models.KindOCR, imageURL, err)
		return result
	}

	utils.Debugf("🖼️  OCR识别完成 [%s]: %d字符", imageURL, len([]rune(text)))
	result.Text = text
	return result
}

func (c *Client) recognize(ctx context.Context, imageURL string) (string, error) {
	location, err := c.submit(ctx, imageURL)
	if err != nil {
		return "", err
	}

	op, err := failsafe.With[*readOperation](c.poll).WithContext(ctx).Get(func() (*readOperation, error) {
		return c.fetchOperation(ctx, location)
	})
	if err != nil {
		if op.pending() {
			return "", fmt.Errorf("轮询%d次后仍未完成: %s", c.config.MaxPolls, op.Status)
		}
		return "", err
	}

	if !strings.EqualFold(op.Status, "succeeded") {
		return "", fmt.Errorf("识别任务状态: %s", op.Status)
	}
	return op.text(), nil
}

// submit 提交识别任务,返回Operation-Location
func (c *Client) submit(ctx context.Context, imageURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{"url": imageURL})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+c.config.SubmitPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(c.config.KeyHeader, c.config.APIKey)

	utils.Debugf("提交OCR任务: %s %s", req.URL, c.redactor.RedactToString(req.Header))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("提交任务失败: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("提交任务返回HTTP %d", resp.StatusCode)
	}

	location := resp.Header.Get("Operation-Location")
	if location == "" {
		return "", fmt.Errorf("响应缺少Operation-Location")
	}

	// 相对地址按endpoint解析
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("无效的Operation-Location: %w", err)
	}
	base, err := url.Parse(c.config.Endpoint + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *Client) fetchOperation(ctx context.Context, location string) (*readOperation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.config.KeyHeader, c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("查询任务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("查询任务返回HTTP %d", resp.StatusCode)
	}

	var op readOperation
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4*1024*1024)).Decode(&op); err != nil {
		return nil, fmt.Errorf("解析任务结果失败: %w", err)
	}
	return &op, nil
}

// FilterImages 去重并跳过svg、ico和data URL,最多保留max张
func FilterImages(imageURLs []string, max int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range imageURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" || seen[raw] {
			continue
		}
		if !recognizable(raw) {
			continue
		}
		seen[raw] = true
		out = append(out, raw)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

func recognizable(imageURL string) bool {
	lower := strings.ToLower(imageURL)
	if strings.HasPrefix(lower, "data:") {
		return false
	}
	parsed, err := url.Parse(lower)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return false
	}
	return !strings.HasSuffix(parsed.Path, ".svg") && !strings.HasSuffix(parsed.Path, ".ico")
}
