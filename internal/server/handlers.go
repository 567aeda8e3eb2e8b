package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/core"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/gin-gonic/gin"
)

// 返回给前端的错误信息
const (
	msgInvalidJSON       = "올바른 JSON 형식이 아닙니다."
	msgMethodNotAllowed  = "허용되지 않은 요청 방식입니다."
	msgInvalidURL        = "올바른 URL 형식이 아닙니다."
	msgJobURLMissing     = "공고 URL이 제공되지 않았습니다."
	msgJobFetchFailed    = "채용 공고 데이터를 가져오는 데 실패했습니다."
	msgCompanyURLMissing = "회사 URL이 제공되지 않았습니다."
	msgCompanyFailed     = "회사 정보를 가져오는 중 오류 발생"
)

type jobDescriptionRequest struct {
	URL string `json:"url"`
}

type companyInfoRequest struct {
	CompanyURL string `json:"company_url"`
}

type extractRequest struct {
	RecruitmentNoticeURL string `json:"recruitment_notice_url"`
	TargetCompanyURL     string `json:"target_company_url"`
}

// bindJSON 解析请求体,失败时写出400
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.Warnf("JSON解析失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return false
	}
	return true
}

// checkURL 校验必填URL,失败时写出400
func checkURL(c *gin.Context, rawURL, missingMsg string) bool {
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": missingMsg})
		return false
	}
	if err := models.ValidateURL(rawURL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidURL})
		return false
	}
	return true
}

// handleJobDescription POST /api/job-description
func (s *Server) handleJobDescription(c *gin.Context) {
	var req jobDescriptionRequest
	if !bindJSON(c, &req) || !checkURL(c, req.URL, msgJobURLMissing) {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	text, err := s.pipeline.FetchJobDescription(ctx, req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  msgJobFetchFailed,
			"detail": core.ErrorMessage(err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_description": text})
}

// handleCompanyInfo POST /api/company-info
// 官网无法访问或没有内容时仍返回200和占位文本
func (s *Server) handleCompanyInfo(c *gin.Context) {
	var req companyInfoRequest
	if !bindJSON(c, &req) || !checkURL(c, req.CompanyURL, msgCompanyURLMissing) {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	text, err := s.pipeline.FetchCompanyInfo(ctx, req.CompanyURL)
	if err != nil && !isNotFound(err) {
		utils.Errorf("❌ 企业官网爬取异常 [%s]: %v", req.CompanyURL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgCompanyFailed})
		return
	}

	c.JSON(http.StatusOK, gin.H{"company_info": text})
}

// handleExtract POST /api/extract
// 同时抓取招聘公告和企业官网,任何一方失败都以占位文本代替
func (s *Server) handleExtract(c *gin.Context) {
	var req extractRequest
	if !bindJSON(c, &req) || !checkURL(c, req.RecruitmentNoticeURL, msgJobURLMissing) {
		return
	}
	if req.TargetCompanyURL != "" && models.ValidateURL(req.TargetCompanyURL) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidURL})
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	jobText, _ := s.pipeline.FetchJobDescription(ctx, req.RecruitmentNoticeURL)

	companyText := ""
	if req.TargetCompanyURL != "" {
		var err error
		companyText, err = s.pipeline.FetchCompanyInfo(ctx, req.TargetCompanyURL)
		if err != nil && !isNotFound(err) {
			companyText = core.CompanyCrawlFailedText
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"job_description": jobText,
		"company_info":    companyText,
	})
}

// isNotFound 官网本身不可用,区别于请求超时等异常
func isNotFound(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, models.ErrRootFetchFailed) || errors.Is(err, models.ErrNoContent)
}
