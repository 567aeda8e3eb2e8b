package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTP URL", "http://example.com", false},
		{"有效的HTTPS URL", "https://example.com", false},
		{"带路径的URL", "https://example.com/path/to/resource", false},
		{"无效的协议", "ftp://example.com", true},
		{"无效的URL", "not a url", true},
		{"空URL", "", true},
		{"无协议", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"去掉片段", "https://example.com/about#team", "https://example.com/about"},
		{"去掉末尾斜杠", "https://example.com/about/", "https://example.com/about"},
		{"根路径", "https://example.com/", "https://example.com"},
		{"大小写归一", "HTTPS://Example.COM/About", "https://example.com/About"},
		{"去掉查询参数", "https://example.com/about?lang=ko", "https://example.com/about"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalURL(tt.in))
		})
	}
}

func TestSameHost(t *testing.T) {
	assert.True(t, SameHost("https://example.com/a", "http://EXAMPLE.com/b"))
	assert.False(t, SameHost("https://example.com", "https://www.example.com"))
	assert.False(t, SameHost("https://example.com:8443", "https://example.com"))
	assert.False(t, SameHost("mailto:foo@example.com", "https://example.com"))
}

func TestCrawlConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *CrawlConfig)
		wantErr bool
	}{
		{"默认配置有效", func(c *CrawlConfig) {}, false},
		{"深度为0有效", func(c *CrawlConfig) { c.MaxDepth = 0 }, false},
		{"深度为负", func(c *CrawlConfig) { c.MaxDepth = -1 }, true},
		{"深度过大", func(c *CrawlConfig) { c.MaxDepth = 9 }, true},
		{"链接数为0", func(c *CrawlConfig) { c.MaxLinks = 0 }, true},
		{"页面上限为0", func(c *CrawlConfig) { c.MaxPages = 0 }, true},
		{"无效模式", func(c *CrawlConfig) { c.Mode = "all" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultCrawlConfig()
			tt.mutate(&config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCrawlJob_MarkVisited(t *testing.T) {
	job, err := NewCrawlJob("https://example.com", 2, 0)
	require.NoError(t, err)

	assert.True(t, job.MarkVisited("https://example.com/about", 1))
	assert.False(t, job.MarkVisited("https://example.com/about/", 2), "末尾斜杠视为同一URL")
	assert.False(t, job.MarkVisited("https://example.com/about#vision", 2), "片段不同视为同一URL")
	assert.True(t, job.IsVisited("https://EXAMPLE.com/about"))
	assert.Equal(t, 1, job.VisitedCount())
	assert.Equal(t, "example.com", job.RootHost)
	assert.NotEmpty(t, job.ID)
}

func TestCrawlJob_BudgetExhausted(t *testing.T) {
	job, err := NewCrawlJob("https://example.com", 2, 2)
	require.NoError(t, err)

	job.MarkVisited("https://example.com", 0)
	assert.False(t, job.BudgetExhausted())
	job.MarkVisited("https://example.com/a", 1)
	assert.True(t, job.BudgetExhausted())
}

func TestCorpus_Text(t *testing.T) {
	job, err := NewCrawlJob("https://example.com", 1, 0)
	require.NoError(t, err)

	job.AddPage(CorpusPage{URL: "https://example.com", Text: "root text", Mode: PageStatic})
	job.AddPage(CorpusPage{URL: "https://example.com/empty", Text: "", Mode: PageStatic})
	job.AddPage(CorpusPage{URL: "https://example.com/about", Text: "about text", Mode: PageDynamic})

	corpus := job.Corpus()
	assert.Equal(t, "root text\n\nabout text", corpus.Text())
	assert.Equal(t, 2, corpus.Stats.StaticPages)
	assert.Equal(t, 1, corpus.Stats.DynamicPages)
	assert.Len(t, corpus.Pages[0].Hash, 64)

	corpus.Addendum = "ocr text"
	assert.Equal(t, "root text\n\nabout text\n\nocr text", corpus.Text())
	assert.False(t, corpus.Empty())
}

func TestPipelineError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("抓取失败: %w", NewPipelineError(KindNetwork, "https://example.com", cause))

	assert.True(t, IsKind(err, KindNetwork))
	assert.False(t, IsKind(err, KindHTTP))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))

	httpErr := &PipelineError{Kind: KindHTTP, URL: "https://example.com", StatusCode: 503}
	assert.Contains(t, httpErr.Error(), "HTTP 503")
}

func TestCliHeaders_Parse(t *testing.T) {
	headers, err := CliHeaders{"User-Agent: Bot/1.0", "X-Token: a:b"}.Parse()
	require.NoError(t, err)
	assert.Equal(t, "Bot/1.0", headers.Get("User-Agent"))
	assert.Equal(t, "a:b", headers.Get("X-Token"), "只按第一个冒号切分")

	_, err = CliHeaders{"NoColon"}.Parse()
	assert.Error(t, err)

	_, err = CliHeaders{": value"}.Parse()
	assert.Error(t, err)
}

func TestCliHeaders_Whitespace(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantName  string
		wantValue string
	}{
		{"名称前后空格", "  User-Agent  : Mozilla/5.0", "User-Agent", "Mozilla/5.0"},
		{"值前后空格", "User-Agent:  Mozilla/5.0  ", "User-Agent", "Mozilla/5.0"},
		{"值中间的空格保留", "X-Custom: value with spaces", "X-Custom", "value with spaces"},
		{"值中包含URL", "Referer: https://example.com:8080/path", "Referer", "https://example.com:8080/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers, err := CliHeaders{tt.input}.Parse()
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, headers.Get(tt.wantName))
		})
	}
}

func TestCrawlJob_RecordNetwork(t *testing.T) {
	job, err := NewCrawlJob("https://example.com", 1, 10)
	require.NoError(t, err)

	job.RecordNetwork([]NetworkEntry{{Type: "request", URL: "https://example.com/a.png"}})
	job.RecordNetwork(nil)
	job.RecordNetwork([]NetworkEntry{{Type: "response", URL: "https://example.com/a.png", Status: 200}})

	corpus := job.Corpus()
	require.Len(t, corpus.Network, 2)
	assert.Equal(t, 200, corpus.Network[1].Status)

	// 快照与任务互不影响
	corpus.Network[0].URL = "changed"
	assert.Equal(t, "https://example.com/a.png", job.Corpus().Network[0].URL)
}

func TestApplyHeaders(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	provider := StaticHeaders{"User-Agent": []string{"Bot/1.0"}}
	require.NoError(t, ApplyHeaders(req, provider))
	assert.Equal(t, "Bot/1.0", req.Header.Get("User-Agent"))

	require.NoError(t, ApplyHeaders(req, nil))
}
