package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
)

const (
	// DefaultUserAgent 桌面版Chrome
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// DefaultAcceptLanguage 韩语优先
	DefaultAcceptLanguage = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"

	DriverRod      = "rod"
	DriverChromedp = "chromedp"
)

// stealthScript 在每个文档加载前执行,隐藏自动化特征
const stealthScript = `(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => false });
	Object.defineProperty(navigator, 'platform', { get: () => 'Win32' });
	Object.defineProperty(navigator, 'languages', { get: () => ['ko-KR', 'ko', 'en-US', 'en'] });
	if (!window.chrome) { window.chrome = { runtime: {} }; }
})();`

// BrowserOptions 无头浏览器配置
type BrowserOptions struct {
	Driver            string        `mapstructure:"driver"`
	Headless          bool          `mapstructure:"headless"`
	Bin               string        `mapstructure:"bin"`         // 浏览器可执行文件,为空时自动查找
	Wait              time.Duration `mapstructure:"wait"`        // 页面加载后的固定等待
	NavTimeout        time.Duration `mapstructure:"nav_timeout"` // 导航+加载超时
	UserAgent         string        `mapstructure:"user_agent"`
	AcceptLanguage    string        `mapstructure:"accept_language"`
	Locale            string        `mapstructure:"locale"`
	Timezone          string        `mapstructure:"timezone"`
	Width             int           `mapstructure:"width"`
	Height            int           `mapstructure:"height"`
	IgnoreCertErrors  bool          `mapstructure:"ignore_cert_errors"`
	CaptureImages     bool          `mapstructure:"capture_images"`
	CaptureNetworkLog bool          `mapstructure:"capture_network_log"`
}

// DefaultBrowserOptions 默认浏览器配置
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Driver:           DriverRod,
		Headless:         true,
		Wait:             5 * time.Second,
		NavTimeout:       30 * time.Second,
		UserAgent:        DefaultUserAgent,
		AcceptLanguage:   DefaultAcceptLanguage,
		Locale:           "ko-KR",
		Timezone:         "Asia/Seoul",
		Width:            1920,
		Height:           1080,
		IgnoreCertErrors: true,
	}
}

// Snapshot 一次导航得到的DOM快照
type Snapshot struct {
	URL       string
	HTML      string
	Cookies   []*http.Cookie
	ImageURLs []string
	Network   []models.NetworkEntry
}

// Session 独占一个浏览器进程的会话
// Close 必须在所有退出路径上调用
type Session interface {
	Snapshot(ctx context.Context, pageURL string) (*Snapshot, error)
	Close() error
}

// Driver 浏览器驱动
type Driver interface {
	Name() string
	Open(ctx context.Context, opts BrowserOptions) (Session, error)
}

// NewDriver 按名称选择驱动
func NewDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DriverRod:
		return rodDriver{}, nil
	case DriverChromedp:
		return chromedpDriver{}, nil
	default:
		return nil, fmt.Errorf("未知的浏览器驱动: %s (有效值: rod, chromedp)", name)
	}
}

// isImageResource 判断网络响应是否为图片
func isImageResource(resourceType, mimeType, rawURL string) bool {
	if strings.EqualFold(resourceType, "image") || strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return !strings.HasPrefix(rawURL, "data:")
	}
	return false
}

// networkRecorder 事件回调在其他goroutine中执行,需要加锁
type networkRecorder struct {
	mu        sync.Mutex
	images    []string
	seen      map[string]bool
	entries   []models.NetworkEntry
	keepLog   bool
	keepImage bool
}

func newNetworkRecorder(opts BrowserOptions) *networkRecorder {
	return &networkRecorder{
		seen:      make(map[string]bool),
		keepLog:   opts.CaptureNetworkLog,
		keepImage: opts.CaptureImages,
	}
}

func (r *networkRecorder) record(entry models.NetworkEntry, mimeType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.keepLog {
		r.entries = append(r.entries, entry)
	}
	if r.keepImage && isImageResource(entry.ResourceType, mimeType, entry.URL) && !r.seen[entry.URL] {
		r.seen[entry.URL] = true
		r.images = append(r.images, entry.URL)
	}
}

// drain 取出并清空已记录的数据
func (r *networkRecorder) drain() ([]string, []models.NetworkEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	images, entries := r.images, r.entries
	r.images, r.entries = nil, nil
	r.seen = make(map[string]bool)
	return images, entries
}

// settle 等待固定时间,ctx结束时提前返回
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
