package utils

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 语料和报告输出器
// 目录结构: {outputDir}/{domain}/corpus_{kind}.txt 与 {outputDir}/{domain}/reports/
type Reporter struct {
	outputDir string
	domain    string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string, domain string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
		domain:    domain,
	}
}

// DomainDir 当前域名的输出目录
func (r *Reporter) DomainDir() string {
	return filepath.Join(r.outputDir, r.domain)
}

// GenerateReport 写出语料文本和JSON报告
// corpus可以为nil(根页面失败时只写报告)
func (r *Reporter) GenerateReport(kind string, corpus *models.Corpus, config models.CrawlConfig, crawlErr error) (*models.CrawlReport, error) {
	reportsDir := filepath.Join(r.DomainDir(), "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return nil, fmt.Errorf("创建报告目录失败: %w", err)
	}

	report := models.NewCrawlReport(kind, r.domain, corpus, config, crawlErr)

	if corpus != nil {
		corpusFile := filepath.Join(r.DomainDir(), fmt.Sprintf("corpus_%s.txt", kind))
		if err := r.saveCorpus(corpusFile, corpus); err != nil {
			return nil, err
		}
		report.CorpusFile = corpusFile
	}

	if err := r.saveJSONReport(reportsDir, fmt.Sprintf("%s_report.json", kind), report); err != nil {
		return nil, err
	}

	Infof("✅ 报告已生成: %s", reportsDir)
	return report, nil
}

// saveCorpus 写出带页面分隔头的语料,便于人工检查
func (r *Reporter) saveCorpus(path string, corpus *models.Corpus) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建语料文件失败: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, page := range corpus.Pages {
		fmt.Fprintf(w, "=== depth %d [%s]: %s ===\n", page.Depth, page.Mode, page.URL)
		w.WriteString(page.Text)
		w.WriteString("\n\n")
	}
	if corpus.Addendum != "" {
		w.WriteString("=== OCR ===\n")
		w.WriteString(corpus.Addendum)
		w.WriteString("\n")
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("写入语料文件失败: %w", err)
	}

	Debugf("保存语料: %s", path)
	return nil
}

// SaveNetworkLog 以JSON Lines格式保存动态渲染期间的网络记录
func (r *Reporter) SaveNetworkLog(entries []models.NetworkEntry) error {
	if len(entries) == 0 {
		return nil
	}

	reportsDir := filepath.Join(r.DomainDir(), "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	path := filepath.Join(reportsDir, "network_capture.jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("打开网络日志失败: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("写入网络日志失败: %w", err)
		}
	}

	Debugf("保存网络日志: %s (%d条)", path, len(entries))
	return nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(dir string, filename string, data interface{}) error {
	path := filepath.Join(dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
