package crawlers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBrowserSession 按URL返回预设的快照
type fakeBrowserSession struct {
	pages  map[string]string
	errs   map[string]error
	closed *int32
	calls  *int32
}

func (s *fakeBrowserSession) Snapshot(ctx context.Context, pageURL string) (*Snapshot, error) {
	atomic.AddInt32(s.calls, 1)
	html, ok := s.pages[pageURL]
	err := s.errs[pageURL]
	if !ok {
		if err == nil {
			err = models.NewPipelineError(models.KindBrowser, pageURL, errors.New("导航失败"))
		}
		return nil, err
	}
	return &Snapshot{URL: pageURL, HTML: html, ImageURLs: []string{"https://cdn.example.com/banner.png"}}, err
}

func (s *fakeBrowserSession) Close() error {
	atomic.AddInt32(s.closed, 1)
	return nil
}

// fakeDriver 记录打开和关闭次数
type fakeDriver struct {
	pages   map[string]string
	errs    map[string]error
	openErr error
	opened  int32
	closed  int32
	calls   int32
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Open(ctx context.Context, opts BrowserOptions) (Session, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	atomic.AddInt32(&d.opened, 1)
	return &fakeBrowserSession{pages: d.pages, errs: d.errs, closed: &d.closed, calls: &d.calls}, nil
}

func TestDynamicRenderer_Render(t *testing.T) {
	driver := &fakeDriver{pages: map[string]string{
		"https://example.com/": `<div id="app"><h1>회사 소개</h1><a href="/vision">비전</a><script>render()</script></div>`,
	}}
	r := NewDynamicRenderer(DefaultBrowserOptions(), driver, nil, nil)

	extract, err := r.Render(context.Background(), "https://example.com/")
	require.NoError(t, err)

	assert.Equal(t, "회사 소개 비전", extract.Text)
	assert.Equal(t, []string{"https://example.com/vision"}, extract.Links)
	assert.Equal(t, models.PageDynamic, extract.Mode)
	assert.Equal(t, []string{"https://cdn.example.com/banner.png"}, extract.ImageURLs)
	assert.Equal(t, int32(1), driver.opened)
	assert.Equal(t, int32(1), driver.closed, "渲染结束后必须关闭浏览器")
}

func TestDynamicRenderer_ClosesOnFailure(t *testing.T) {
	driver := &fakeDriver{pages: map[string]string{}}
	r := NewDynamicRenderer(DefaultBrowserOptions(), driver, nil, nil)

	_, err := r.Render(context.Background(), "https://example.com/broken")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindBrowser))
	assert.Equal(t, int32(1), driver.closed, "失败时同样关闭浏览器")
}

func TestDynamicRenderer_PartialOnRenderTimeout(t *testing.T) {
	timeout := models.NewPipelineError(models.KindRenderTimeout, "https://example.com/slow", context.DeadlineExceeded)
	driver := &fakeDriver{
		pages: map[string]string{"https://example.com/slow": "<p>일부 내용</p>"},
		errs:  map[string]error{"https://example.com/slow": timeout},
	}
	r := NewDynamicRenderer(DefaultBrowserOptions(), driver, nil, nil)

	extract, err := r.Render(context.Background(), "https://example.com/slow")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindRenderTimeout))
	require.NotNil(t, extract)
	assert.Equal(t, "일부 내용", extract.Text)
}

func TestDynamicRenderer_ResourceGuard(t *testing.T) {
	driver := &fakeDriver{pages: map[string]string{"https://example.com/": "<p>x</p>"}}
	monitor := monitorWithSample(DefaultResourceMonitorConfig(), ResourceSample{AvailableMemory: 1}, nil)
	r := NewDynamicRenderer(DefaultBrowserOptions(), driver, monitor, nil)

	_, err := r.Render(context.Background(), "https://example.com/")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindResource))
	assert.Equal(t, int32(0), driver.opened, "资源不足时不启动浏览器")
}

func TestDynamicRenderer_OpenError(t *testing.T) {
	driver := &fakeDriver{openErr: models.NewPipelineError(models.KindBrowser, "", errors.New("chrome not found"))}
	r := NewDynamicRenderer(DefaultBrowserOptions(), driver, nil, nil)

	_, err := r.Render(context.Background(), "https://example.com/")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindBrowser))
}

func TestRenderSession_Lifecycle(t *testing.T) {
	driver := &fakeDriver{pages: map[string]string{
		"https://example.com/a": "<p>A</p>",
		"https://example.com/b": "<p>B</p>",
	}}
	r := NewDynamicRenderer(DefaultBrowserOptions(), driver, nil, nil).WithCleaner(nil)

	session, err := r.OpenSession(context.Background())
	require.NoError(t, err)

	a, err := session.Render(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	b, err := session.Render(context.Background(), "https://example.com/b")
	require.NoError(t, err)
	assert.Equal(t, "A", a.Text)
	assert.Equal(t, "B", b.Text)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.Equal(t, int32(1), driver.opened, "多个页面复用同一个浏览器")
	assert.Equal(t, int32(1), driver.closed, "重复Close只关闭一次")

	_, err = session.Render(context.Background(), "https://example.com/a")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestNewDriver(t *testing.T) {
	for _, name := range []string{"", "rod", "ROD", "chromedp"} {
		d, err := NewDriver(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, d.Name())
	}

	_, err := NewDriver("selenium")
	assert.Error(t, err)
}

func TestNetworkRecorder(t *testing.T) {
	opts := DefaultBrowserOptions()
	opts.CaptureImages = true
	rec := newNetworkRecorder(opts)

	rec.record(models.NetworkEntry{Type: "response", URL: "https://cdn.example.com/a.png", ResourceType: "Image"}, "image/png")
	rec.record(models.NetworkEntry{Type: "response", URL: "https://cdn.example.com/a.png", ResourceType: "Image"}, "image/png")
	rec.record(models.NetworkEntry{Type: "response", URL: "https://cdn.example.com/b", ResourceType: "Other"}, "image/jpeg")
	rec.record(models.NetworkEntry{Type: "response", URL: "https://example.com/app.js", ResourceType: "Script"}, "text/javascript")
	rec.record(models.NetworkEntry{Type: "response", URL: "data:image/png;base64,AAA", ResourceType: "Image"}, "image/png")

	images, entries := rec.drain()
	assert.Equal(t, []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b"}, images)
	assert.Empty(t, entries, "未开启网络日志时不记录")

	images, _ = rec.drain()
	assert.Empty(t, images)
}
