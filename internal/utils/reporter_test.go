package utils

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter_GenerateReport(t *testing.T) {
	outputDir := t.TempDir()

	job, err := models.NewCrawlJob("https://example.com", 1, 10)
	require.NoError(t, err)
	job.AddPage(models.CorpusPage{URL: "https://example.com", Depth: 0, Mode: models.PageStatic, Text: "회사 소개 문장입니다. 충분히 긴 텍스트"})
	job.AddPage(models.CorpusPage{URL: "https://example.com/vision", Depth: 1, Mode: models.PageDynamic, Text: "비전과 미션에 관한 페이지 내용입니다"})
	corpus := job.Corpus()

	reporter := NewReporter(outputDir, ExtractDomain("https://example.com"))
	report, err := reporter.GenerateReport("company", corpus, models.DefaultCrawlConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusCompleted, report.Status)
	assert.Len(t, report.Sources, 2)

	text, err := os.ReadFile(report.CorpusFile)
	require.NoError(t, err)
	assert.Contains(t, string(text), "=== depth 1 [dynamic]: https://example.com/vision ===")

	raw, err := os.ReadFile(filepath.Join(outputDir, "example.com", "reports", "company_report.json"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "https://example.com", decoded["target_url"])
	assert.NotContains(t, string(raw), "비전과 미션", "报告中不应包含正文")
}

func TestReporter_GenerateReportOnFailure(t *testing.T) {
	reporter := NewReporter(t.TempDir(), "example.com")

	crawlErr := models.NewPipelineError(models.KindNetwork, "https://example.com", errors.New("refused"))
	report, err := reporter.GenerateReport("job", nil, models.DefaultCrawlConfig(), crawlErr)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusFailed, report.Status)
	assert.Equal(t, models.KindNetwork, report.ErrorKind)
	assert.Empty(t, report.CorpusFile)
}

func TestReporter_SaveNetworkLog(t *testing.T) {
	outputDir := t.TempDir()
	reporter := NewReporter(outputDir, "example.com")

	entries := []models.NetworkEntry{
		{Type: "request", URL: "https://example.com/a.png", Method: "GET", ResourceType: "Image"},
		{Type: "response", URL: "https://example.com/a.png", Status: 200, ContentType: "image/png"},
	}
	require.NoError(t, reporter.SaveNetworkLog(entries))
	require.NoError(t, reporter.SaveNetworkLog(nil))

	raw, err := os.ReadFile(filepath.Join(outputDir, "example.com", "reports", "network_capture.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, 2)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "example.com_8080", ExtractDomain("http://example.com:8080/a"))
	assert.Equal(t, "unknown", ExtractDomain("::bad"))
	assert.Equal(t, "가나...", Preview("가나다라", 2))
	assert.Equal(t, "short", Preview("short", 10))
}

func TestReadURLsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "# 회사 목록\nhttps://a.example.com\n\nnot-a-url\nhttps://a.example.com\nhttps://b.example.com/about\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	urls, err := ReadURLsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com/about"}, urls)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0644))
	_, err = ReadURLsFromFile(empty)
	assert.Error(t, err)
}
