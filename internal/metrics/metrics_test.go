package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveFetch("ok", 1, time.Second)
		c.ObserveClassify("static")
		c.ObserveRender("dynamic", false)
		c.ObserveCrawl(3)
		c.ObserveOCR(true)
		c.BrowserOpened()
		c.BrowserClosed()
	})
	assert.Nil(t, c.Registry())
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("test")

	c.ObserveFetch("http_error", 3, 10*time.Millisecond)
	c.ObserveFetch("ok", 1, time.Millisecond)
	c.ObserveOCR(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetchTotal.WithLabelValues("http_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ocrTotal.WithLabelValues("failed")))

	c.BrowserOpened()
	c.BrowserOpened()
	c.BrowserClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.browserSessions))
}

func TestCollector_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := NewCollector("test")
	c.ObserveClassify("dynamic")

	router := gin.New()
	router.Use(c.Middleware())
	router.GET("/metrics", c.Handler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `cvcrawl_classify_total{page_type="dynamic"} 1`))
	assert.Contains(t, body, `cvcrawl_build_info{version="test"} 1`)
}
