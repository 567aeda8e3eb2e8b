package crawlers

import (
	"context"
	"errors"
	"testing"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamic 一次性动态渲染
type fakeDynamic struct {
	extract *models.PageExtract
	err     error
	calls   int
}

func (d *fakeDynamic) Render(ctx context.Context, pageURL string) (*models.PageExtract, error) {
	d.calls++
	return d.extract, d.err
}

// fakeImageReader 按URL返回预设的识别结果
type fakeImageReader struct {
	texts map[string]string
	seen  []string
}

func (r *fakeImageReader) RecognizeAll(ctx context.Context, imageURLs []string) []models.OcrResult {
	r.seen = append(r.seen, imageURLs...)
	results := make([]models.OcrResult, 0, len(imageURLs))
	for _, u := range imageURLs {
		text, ok := r.texts[u]
		if !ok {
			results = append(results, models.OcrResult{ImageURL: u, Err: models.NewPipelineError(models.KindOCR, u, errors.New("503"))})
			continue
		}
		results = append(results, models.OcrResult{ImageURL: u, Text: text})
	}
	return results
}

const jobURL = "https://jobs.example.com/posting/42"

func TestJobCrawler_Static(t *testing.T) {
	site := newFakeSite(map[string]string{
		jobURL: "<h1>백엔드 개발자 (경력 3년 이상)</h1><ul><li>Go 서버 개발</li><li>[필수] 운영 경험</li></ul>",
	})
	crawler := NewJobCrawler(models.DefaultCrawlConfig(), fakeClassifier{}, site, nil, nil, nil)

	corpus, err := crawler.Crawl(context.Background(), jobURL)
	require.NoError(t, err)
	assert.Equal(t, "백엔드 개발자 Go 서버 개발 운영 경험", corpus.Text())
	assert.Equal(t, 1, corpus.Stats.StaticPages)
}

func TestJobCrawler_Dynamic(t *testing.T) {
	classifier := fakeClassifier{jobURL: models.PageDynamic}

	t.Run("动态渲染成功", func(t *testing.T) {
		dynamic := &fakeDynamic{extract: &models.PageExtract{URL: jobURL, Text: "자격 요건", Mode: models.PageDynamic}}
		site := newFakeSite(nil)
		corpus, err := NewJobCrawler(models.DefaultCrawlConfig(), classifier, site, dynamic, nil, nil).Crawl(context.Background(), jobURL)
		require.NoError(t, err)
		assert.Equal(t, "자격 요건", corpus.Text())
		assert.Empty(t, site.hits, "动态成功时不再静态抓取")
	})

	t.Run("超时返回部分内容", func(t *testing.T) {
		dynamic := &fakeDynamic{
			extract: &models.PageExtract{URL: jobURL, Text: "일부", Mode: models.PageDynamic},
			err:     models.NewPipelineError(models.KindRenderTimeout, jobURL, context.DeadlineExceeded),
		}
		corpus, err := NewJobCrawler(models.DefaultCrawlConfig(), classifier, newFakeSite(nil), dynamic, nil, nil).Crawl(context.Background(), jobURL)
		require.NoError(t, err)
		assert.Equal(t, "일부", corpus.Text())
	})

	t.Run("失败回退静态", func(t *testing.T) {
		dynamic := &fakeDynamic{err: models.NewPipelineError(models.KindBrowser, jobURL, errors.New("crash"))}
		site := newFakeSite(map[string]string{jobURL: "<p>정적 공고</p>"})
		corpus, err := NewJobCrawler(models.DefaultCrawlConfig(), classifier, site, dynamic, nil, nil).Crawl(context.Background(), jobURL)
		require.NoError(t, err)
		assert.Equal(t, "정적 공고", corpus.Text())
		assert.Equal(t, 1, dynamic.calls)
	})
}

func TestJobCrawler_Failures(t *testing.T) {
	t.Run("页面无法获取", func(t *testing.T) {
		corpus, err := NewJobCrawler(models.DefaultCrawlConfig(), nil, newFakeSite(nil), nil, nil, nil).Crawl(context.Background(), jobURL)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrRootFetchFailed)
		assert.True(t, models.IsKind(err, models.KindNetwork))
		assert.Equal(t, 1, corpus.Stats.FailedPages)
	})

	t.Run("页面没有文本", func(t *testing.T) {
		site := newFakeSite(map[string]string{jobURL: "<script>app()</script>"})
		_, err := NewJobCrawler(models.DefaultCrawlConfig(), nil, site, nil, nil, nil).Crawl(context.Background(), jobURL)
		assert.ErrorIs(t, err, models.ErrNoContent)
	})

	t.Run("无效URL", func(t *testing.T) {
		_, err := NewJobCrawler(models.DefaultCrawlConfig(), nil, newFakeSite(nil), nil, nil, nil).Crawl(context.Background(), "not a url")
		assert.ErrorIs(t, err, models.ErrRootFetchFailed)
	})
}

func TestJobCrawler_OCR(t *testing.T) {
	html := `<p>복지 안내</p><img src="/img/benefit.png"><img src="/img/broken.png">`
	images := &fakeImageReader{texts: map[string]string{
		"https://jobs.example.com/img/benefit.png": "연차 15일\n재택 근무",
	}}

	t.Run("识别结果追加在页面文本后", func(t *testing.T) {
		config := models.DefaultCrawlConfig()
		config.OCREnabled = true
		site := newFakeSite(map[string]string{jobURL: html})

		corpus, err := NewJobCrawler(config, nil, site, nil, images, nil).Crawl(context.Background(), jobURL)
		require.NoError(t, err)
		assert.Equal(t, "복지 안내\n\n연차 15일\n재택 근무", corpus.Text())
		assert.Equal(t, 1, corpus.Stats.OCRImages)
	})

	t.Run("OCR全部失败不影响页面文本", func(t *testing.T) {
		config := models.DefaultCrawlConfig()
		config.OCREnabled = true
		site := newFakeSite(map[string]string{jobURL: html})

		corpus, err := NewJobCrawler(config, nil, site, nil, &fakeImageReader{}, nil).Crawl(context.Background(), jobURL)
		require.NoError(t, err)
		assert.Equal(t, "복지 안내", corpus.Text())
		assert.Equal(t, 0, corpus.Stats.OCRImages)
	})

	t.Run("未开启OCR", func(t *testing.T) {
		reader := &fakeImageReader{}
		site := newFakeSite(map[string]string{jobURL: html})

		_, err := NewJobCrawler(models.DefaultCrawlConfig(), nil, site, nil, reader, nil).Crawl(context.Background(), jobURL)
		require.NoError(t, err)
		assert.Empty(t, reader.seen)
	})
}
