package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// OutcomeKind 单次尝试的结果类别
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeRetryable
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Outcome 单次尝试的判定结果
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// RetryPolicy 重试策略
type RetryPolicy struct {
	MaxAttempts int           // 包含首次请求的总尝试次数
	BaseDelay   time.Duration // 指数退避起始间隔
	MaxDelay    time.Duration // 退避上限
	// RetryableStatus 可重试的HTTP状态码
	RetryableStatus map[int]bool
}

// DefaultRetryPolicy 默认策略: 最多3次,429/500/502/503/504可重试
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
		RetryableStatus: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
	}
}

// Classify 判定一次尝试的结果,不做任何I/O
// statusCode为0表示没有拿到响应
func (p RetryPolicy) Classify(statusCode int, err error) Outcome {
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return Outcome{Kind: OutcomeFatal, Reason: "请求被取消"}
		case isTimeout(err):
			return Outcome{Kind: OutcomeRetryable, Reason: "请求超时"}
		case isConnectionError(err):
			return Outcome{Kind: OutcomeRetryable, Reason: "连接失败: " + err.Error()}
		default:
			return Outcome{Kind: OutcomeFatal, Reason: err.Error()}
		}
	}

	if statusCode >= 200 && statusCode < 300 {
		return Outcome{Kind: OutcomeOK}
	}
	if p.RetryableStatus[statusCode] {
		return Outcome{Kind: OutcomeRetryable, Reason: fmt.Sprintf("HTTP %d", statusCode)}
	}
	return Outcome{Kind: OutcomeFatal, Reason: fmt.Sprintf("HTTP %d", statusCode)}
}

// normalize 修正非法参数
func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Millisecond
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.RetryableStatus == nil {
		p.RetryableStatus = DefaultRetryPolicy().RetryableStatus
	}
	return p
}

// build 转换为failsafe-go重试策略
func (p RetryPolicy) build() retrypolicy.RetryPolicy[*attempt] {
	return retrypolicy.NewBuilder[*attempt]().
		WithBackoff(p.BaseDelay, p.MaxDelay).
		WithMaxRetries(p.MaxAttempts - 1).
		WithJitterFactor(0.1).
		HandleIf(func(a *attempt, err error) bool {
			code := 0
			if a != nil {
				code = a.statusCode
			}
			return p.Classify(code, err).Kind == OutcomeRetryable
		}).
		Build()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsNotFound
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
