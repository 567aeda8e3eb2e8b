package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// rodDriver 基于go-rod的默认驱动
type rodDriver struct{}

func (rodDriver) Name() string { return DriverRod }

// rodSession 一个浏览器进程加一个标签页
type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	opts     BrowserOptions
	recorder *networkRecorder
}

// Open 启动浏览器并创建带伪装设置的标签页
func (rodDriver) Open(ctx context.Context, opts BrowserOptions) (s Session, err error) {
	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("window-size", fmt.Sprintf("%d,%d", opts.Width, opts.Height)).
		Set("lang", opts.Locale)

	if opts.IgnoreCertErrors {
		l = l.Set("ignore-certificate-errors")
		utils.Debugf("浏览器启动参数: --ignore-certificate-errors (跳过TLS证书验证)")
	}
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewPipelineError(models.KindBrowser, "", fmt.Errorf("启动浏览器失败: %w", err))
	}

	session := &rodSession{
		launcher: l,
		opts:     opts,
		recorder: newNetworkRecorder(opts),
	}

	// 任何一步失败都要回收浏览器进程
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("浏览器初始化panic: %v", r)
			err = models.NewPipelineError(models.KindBrowser, "", fmt.Errorf("浏览器初始化panic: %v", r))
		}
		if err != nil {
			session.Close()
			s = nil
		}
	}()

	session.browser = rod.New().ControlURL(controlURL)
	if err = session.browser.Connect(); err != nil {
		return nil, models.NewPipelineError(models.KindBrowser, "", fmt.Errorf("连接浏览器失败: %w", err))
	}

	if err = session.preparePage(); err != nil {
		return nil, models.NewPipelineError(models.KindBrowser, "", err)
	}

	utils.Debugf("🌐 浏览器已启动 (rod): %s", controlURL)
	return session, nil
}

// preparePage 创建标签页并注入伪装设置
func (s *rodSession) preparePage() error {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("创建标签页失败: %w", err)
	}
	s.page = page

	if _, err := page.EvalOnNewDocument(stealthScript); err != nil {
		return fmt.Errorf("注入伪装脚本失败: %w", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.opts.UserAgent,
		AcceptLanguage: s.opts.AcceptLanguage,
		Platform:       "Win32",
	}); err != nil {
		return fmt.Errorf("设置User-Agent失败: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.opts.Width,
		Height:            s.opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("设置视口失败: %w", err)
	}

	if s.opts.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: s.opts.Timezone}).Call(page); err != nil {
			utils.Warnf("设置时区失败: %v", err)
		}
	}
	if s.opts.Locale != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: s.opts.Locale}).Call(page); err != nil {
			utils.Warnf("设置语言区域失败: %v", err)
		}
	}

	if s.opts.CaptureImages || s.opts.CaptureNetworkLog {
		if err := (proto.NetworkEnable{}).Call(page); err != nil {
			// 图片捕获失败不影响文本提取
			utils.Warnf("启用网络监听失败: %v", err)
			return nil
		}

		go page.EachEvent(func(e *proto.NetworkRequestWillBeSent) {
			s.recorder.record(models.NetworkEntry{
				Type:         "request",
				URL:          e.Request.URL,
				Method:       e.Request.Method,
				ResourceType: string(e.Type),
			}, "")
		}, func(e *proto.NetworkResponseReceived) {
			s.recorder.record(models.NetworkEntry{
				Type:         "response",
				URL:          e.Response.URL,
				ResourceType: string(e.Type),
				Status:       e.Response.Status,
				ContentType:  e.Response.MIMEType,
			}, e.Response.MIMEType)
		})()
	}

	return nil
}

// Snapshot 导航到URL,等待加载和固定的稳定时间后读取DOM
func (s *rodSession) Snapshot(ctx context.Context, pageURL string) (snap *Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("浏览器操作panic: URL=%s, 错误=%v", pageURL, r)
			snap = nil
			err = models.NewPipelineError(models.KindBrowser, pageURL, fmt.Errorf("浏览器崩溃: %v", r))
		}
	}()

	s.recorder.drain()

	page := s.page.Context(ctx)
	nav := page.Timeout(s.opts.NavTimeout)

	if err := nav.Navigate(pageURL); err != nil {
		return nil, s.navigationError(pageURL, err)
	}

	loadErr := nav.WaitLoad()
	if loadErr != nil {
		utils.Warnf("等待页面加载失败 [%s]: %v", pageURL, loadErr)
	}

	if err := settle(ctx, s.opts.Wait); err != nil {
		return nil, models.NewPipelineError(models.KindRenderTimeout, pageURL, err)
	}

	htmlContent, err := page.HTML()
	if err != nil {
		return nil, models.NewPipelineError(models.KindBrowser, pageURL, fmt.Errorf("读取DOM失败: %w", err))
	}

	snap = &Snapshot{URL: pageURL, HTML: htmlContent}
	if info, err := page.Info(); err == nil && info.URL != "" {
		snap.URL = info.URL
	}

	if cookies, err := page.Cookies([]string{snap.URL}); err == nil {
		snap.Cookies = convertRodCookies(cookies)
	} else {
		utils.Debugf("读取Cookie失败 [%s]: %v", pageURL, err)
	}

	snap.ImageURLs, snap.Network = s.recorder.drain()

	// 加载超时但DOM已读到,返回部分结果
	if loadErr != nil {
		return snap, s.navigationError(pageURL, loadErr)
	}
	return snap, nil
}

// navigationError 超时归为RenderTimeout,其余归为浏览器错误
func (s *rodSession) navigationError(pageURL string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewPipelineError(models.KindRenderTimeout, pageURL, err)
	}
	return models.NewPipelineError(models.KindBrowser, pageURL, fmt.Errorf("导航失败: %w", err))
}

// Close 关闭浏览器并清理用户数据目录
func (s *rodSession) Close() error {
	var err error
	if s.browser != nil {
		if closeErr := s.browser.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	utils.Debugf("浏览器已关闭 (rod)")
	return err
}

func convertRodCookies(cookies []*proto.NetworkCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, cookie)
	}
	return out
}

// LookupBrowser 查找本机可用的Chrome/Chromium
func LookupBrowser() (string, bool) {
	return launcher.LookPath()
}
