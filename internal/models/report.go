package models

import (
	"time"
)

// CrawlReport 爬取报告
type CrawlReport struct {
	// 任务信息
	TaskID    string     `json:"task_id"`
	Kind      string     `json:"kind"` // job | company
	TargetURL string     `json:"target_url"`
	Domain    string     `json:"domain"`
	Status    TaskStatus `json:"status"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats TaskStats `json:"stats"`

	// 语料来源
	Sources []CorpusPage `json:"sources"`

	// 错误信息
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`

	// 输出路径
	CorpusFile string `json:"corpus_file"`

	// 配置快照
	Config CrawlConfig `json:"config"`
}

// NewCrawlReport 从语料生成报告
func NewCrawlReport(kind string, domain string, corpus *Corpus, config CrawlConfig, crawlErr error) *CrawlReport {
	report := &CrawlReport{
		Kind:    kind,
		Domain:  domain,
		Status:  TaskStatusCompleted,
		Config:  config,
		EndTime: time.Now(),
	}

	if corpus != nil {
		report.TaskID = corpus.JobID
		report.TargetURL = corpus.RootURL
		report.StartTime = corpus.StartedAt
		report.EndTime = corpus.FinishedAt
		report.Duration = corpus.FinishedAt.Sub(corpus.StartedAt).Seconds()
		report.Stats = corpus.Stats
		report.Sources = corpus.Pages
	}

	if crawlErr != nil {
		report.Status = TaskStatusFailed
		report.ErrorKind = KindOf(crawlErr)
		report.ErrorMessage = crawlErr.Error()
	}

	return report
}
