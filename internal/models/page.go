package models

import (
	"net/http"
	"time"
)

// FetchStatus HTTP抓取结果状态
type FetchStatus int

const (
	StatusOK FetchStatus = iota
	StatusTimeout
	StatusConnectionError
	StatusHTTPError
	StatusParseError
)

func (s FetchStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusConnectionError:
		return "connection_error"
	case StatusHTTPError:
		return "http_error"
	case StatusParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// FetchResult 一次抓取(含重试)的最终结果
// 返回后不再修改
type FetchResult struct {
	URL         string
	FinalURL    string // 跟随重定向后的地址
	Status      FetchStatus
	StatusCode  int    // StatusHTTPError 时为HTTP状态码
	RawBody     []byte // 失败时为nil
	Body        string // 解码后的文本
	ContentType string
	Charset     string
	Attempts    int
	Duration    time.Duration
	Err         error
}

// OK 是否抓取成功
func (r *FetchResult) OK() bool {
	return r != nil && r.Status == StatusOK
}

// PageType 页面渲染方式
type PageType string

const (
	PageStatic  PageType = "static"
	PageDynamic PageType = "dynamic"
)

// PageExtract 渲染器产出的页面文本和链接
type PageExtract struct {
	URL  string
	Text string
	// Links 同主机绝对URL,已去掉片段,按首次出现顺序,无重复
	Links []string
	// LinkTexts 链接 -> 锚文本
	LinkTexts map[string]string
	// ImageURLs 动态渲染时捕获的图片请求
	ImageURLs []string
	Cookies   []*http.Cookie
	Network   []NetworkEntry
	Mode      PageType
}

// NetworkEntry 动态渲染期间记录的网络请求/响应
type NetworkEntry struct {
	Type         string `json:"type"` // request | response
	URL          string `json:"url"`
	Method       string `json:"method,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
	Status       int    `json:"status,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
}

// LinkCandidate 链接发现的候选结果
type LinkCandidate struct {
	URL            string
	Text           string
	MatchedKeyword string // 为空表示未命中白名单
}

// Matched 是否命中白名单关键字
func (c LinkCandidate) Matched() bool {
	return c.MatchedKeyword != ""
}

// OcrResult 单张图片的OCR结果
type OcrResult struct {
	ImageURL string
	Text     string // 失败时为空
	Err      error
}
