package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/metrics"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
)

// ErrSessionClosed 会话关闭后继续渲染
var ErrSessionClosed = errors.New("浏览器会话已关闭")

// PageSession 一次任务内复用的渲染会话
type PageSession interface {
	Render(ctx context.Context, pageURL string) (*models.PageExtract, error)
	Close() error
}

// DynamicRenderer 通过无头浏览器渲染JS页面
type DynamicRenderer struct {
	driver  Driver
	opts    BrowserOptions
	monitor *ResourceMonitor
	cleaner Cleaner
	metrics *metrics.Collector
}

// NewDynamicRenderer 创建动态渲染器
// monitor 为nil时不做资源检查
func NewDynamicRenderer(opts BrowserOptions, driver Driver, monitor *ResourceMonitor, collector *metrics.Collector) *DynamicRenderer {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1920, 1080
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = DefaultAcceptLanguage
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = DefaultBrowserOptions().NavTimeout
	}

	return &DynamicRenderer{
		driver:  driver,
		opts:    opts,
		monitor: monitor,
		cleaner: Normalize,
		metrics: collector,
	}
}

// WithCleaner 返回使用指定清洗器的副本
func (r *DynamicRenderer) WithCleaner(cleaner Cleaner) *DynamicRenderer {
	clone := *r
	clone.cleaner = cleaner
	return &clone
}

// Options 当前浏览器配置
func (r *DynamicRenderer) Options() BrowserOptions {
	return r.opts
}

// OpenSession 启动浏览器会话,调用方负责Close
func (r *DynamicRenderer) OpenSession(ctx context.Context) (PageSession, error) {
	if err := r.monitor.Guard(""); err != nil {
		utils.Warnf("⚠️  资源不足,跳过动态渲染: %v", err)
		return nil, err
	}

	if r.driver == nil {
		return nil, models.NewPipelineError(models.KindBrowser, "", fmt.Errorf("未配置浏览器驱动"))
	}

	session, err := r.driver.Open(ctx, r.opts)
	if err != nil {
		return nil, err
	}
	r.metrics.BrowserOpened()

	return &RenderSession{
		session:  session,
		renderer: r,
	}, nil
}

// Render 打开一次性会话渲染单个页面,返回前总是关闭浏览器
func (r *DynamicRenderer) Render(ctx context.Context, pageURL string) (*models.PageExtract, error) {
	session, err := r.OpenSession(ctx)
	if err != nil {
		r.metrics.ObserveRender(string(models.PageDynamic), false)
		return nil, err
	}
	defer session.Close()

	return session.Render(ctx, pageURL)
}

// RenderSession 持有一个浏览器会话
type RenderSession struct {
	session  Session
	renderer *DynamicRenderer

	mu     sync.Mutex
	closed bool
}

// Render 渲染页面并按静态渲染器相同的规则提取
// 导航超时但已取得DOM时,同时返回部分结果和KindRenderTimeout错误
func (s *RenderSession) Render(ctx context.Context, pageURL string) (*models.PageExtract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	utils.Debugf("🌐 动态渲染: %s (等待%s)", pageURL, s.renderer.opts.Wait)

	snap, snapErr := s.session.Snapshot(ctx, pageURL)
	if snap == nil {
		s.renderer.metrics.ObserveRender(string(models.PageDynamic), false)
		if snapErr == nil {
			snapErr = models.NewPipelineError(models.KindBrowser, pageURL, fmt.Errorf("未获取到页面快照"))
		}
		return nil, snapErr
	}

	base := snap.URL
	if base == "" {
		base = pageURL
	}

	extract, err := extractDocument(base, snap.HTML, s.renderer.cleaner)
	if err != nil {
		s.renderer.metrics.ObserveRender(string(models.PageDynamic), false)
		return nil, err
	}

	extract.URL = pageURL
	extract.Mode = models.PageDynamic
	extract.Cookies = snap.Cookies
	extract.Network = snap.Network
	extract.ImageURLs = mergeUnique(snap.ImageURLs, extract.ImageURLs)

	s.renderer.metrics.ObserveRender(string(models.PageDynamic), snapErr == nil)

	if snapErr != nil {
		utils.Warnf("动态渲染未完全结束,返回部分内容 [%s]: %v", pageURL, snapErr)
		return extract, snapErr
	}

	utils.Debugf("🌐 动态渲染完成: %s (%d字符, %d个链接, %d张图片, %d个Cookie)",
		pageURL, len([]rune(extract.Text)), len(extract.Links), len(extract.ImageURLs), len(extract.Cookies))
	return extract, nil
}

// Close 关闭浏览器,可重复调用
func (s *RenderSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.renderer.metrics.BrowserClosed()
	return s.session.Close()
}

// mergeUnique 按顺序合并并去重
func mergeUnique(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, item := range list {
			if item == "" || seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
