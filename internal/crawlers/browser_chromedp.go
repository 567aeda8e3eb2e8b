package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// chromedpDriver 基于chromedp的备选驱动
type chromedpDriver struct{}

func (chromedpDriver) Name() string { return DriverChromedp }

type chromedpSession struct {
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	opts        BrowserOptions
	recorder    *networkRecorder
}

// Open 创建浏览器分配器和标签页,并完成伪装设置
func (chromedpDriver) Open(ctx context.Context, opts BrowserOptions) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", opts.Locale),
		chromedp.NoSandbox,
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.IgnoreCertErrors {
		allocOpts = append(allocOpts, chromedp.IgnoreCertErrors)
	}
	if opts.Bin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.Bin))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &chromedpSession{
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		opts:        opts,
		recorder:    newNetworkRecorder(opts),
	}

	if opts.CaptureImages || opts.CaptureNetworkLog {
		chromedp.ListenTarget(tabCtx, func(ev interface{}) {
			switch e := ev.(type) {
			case *network.EventRequestWillBeSent:
				s.recorder.record(models.NetworkEntry{
					Type:         "request",
					URL:          e.Request.URL,
					Method:       e.Request.Method,
					ResourceType: string(e.Type),
				}, "")
			case *network.EventResponseReceived:
				s.recorder.record(models.NetworkEntry{
					Type:         "response",
					URL:          e.Response.URL,
					ResourceType: string(e.Type),
					Status:       int(e.Response.Status),
					ContentType:  e.Response.MimeType,
				}, e.Response.MimeType)
			}
		})
	}

	// 第一次Run会真正启动浏览器
	err := chromedp.Run(tabCtx,
		network.Enable(),
		emulation.SetUserAgentOverride(opts.UserAgent).
			WithAcceptLanguage(opts.AcceptLanguage).
			WithPlatform("Win32"),
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
	)
	if err != nil {
		s.Close()
		return nil, models.NewPipelineError(models.KindBrowser, "", fmt.Errorf("启动浏览器失败: %w", err))
	}

	if opts.Timezone != "" {
		if err := chromedp.Run(tabCtx, emulation.SetTimezoneOverride(opts.Timezone)); err != nil {
			utils.Warnf("设置时区失败: %v", err)
		}
	}
	if opts.Locale != "" {
		if err := chromedp.Run(tabCtx, emulation.SetLocaleOverride().WithLocale(opts.Locale)); err != nil {
			utils.Warnf("设置语言区域失败: %v", err)
		}
	}

	utils.Debugf("🌐 浏览器已启动 (chromedp)")
	return s, nil
}

// Snapshot 导航到URL,等待固定时间后读取DOM
func (s *chromedpSession) Snapshot(ctx context.Context, pageURL string) (snap *Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("浏览器操作panic: URL=%s, 错误=%v", pageURL, r)
			snap = nil
			err = models.NewPipelineError(models.KindBrowser, pageURL, fmt.Errorf("浏览器崩溃: %v", r))
		}
	}()

	s.recorder.drain()

	navCtx, cancel := context.WithTimeout(s.tabCtx, s.opts.NavTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(navCtx, chromedp.Navigate(pageURL)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewPipelineError(models.KindRenderTimeout, pageURL, err)
		}
		return nil, models.NewPipelineError(models.KindBrowser, pageURL, fmt.Errorf("导航失败: %w", err))
	}

	if err := settle(ctx, s.opts.Wait); err != nil {
		return nil, models.NewPipelineError(models.KindRenderTimeout, pageURL, err)
	}

	readCtx, readCancel := context.WithTimeout(s.tabCtx, 10*time.Second)
	defer readCancel()

	var (
		htmlContent string
		location    string
		cookies     []*network.Cookie
	)
	err = chromedp.Run(readCtx,
		chromedp.OuterHTML("html", &htmlContent, chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil && htmlContent == "" {
		return nil, models.NewPipelineError(models.KindBrowser, pageURL, fmt.Errorf("读取DOM失败: %w", err))
	}

	snap = &Snapshot{URL: pageURL, HTML: htmlContent, Cookies: convertCDPCookies(cookies)}
	if location != "" {
		snap.URL = location
	}
	snap.ImageURLs, snap.Network = s.recorder.drain()

	return snap, nil
}

// Close 关闭标签页和浏览器进程
func (s *chromedpSession) Close() error {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	utils.Debugf("浏览器已关闭 (chromedp)")
	return nil
}

func convertCDPCookies(cookies []*network.Cookie) []*http.Cookie {
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
