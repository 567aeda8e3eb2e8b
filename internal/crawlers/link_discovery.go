package crawlers

import (
	"net/url"
	"strings"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultMaxLinks 每页最多跟随的候选链接数
const DefaultMaxLinks = 5

// DefaultDenyKeywords 噪声页面关键字,命中即丢弃
var DefaultDenyKeywords = []string{
	"login", "signin", "signup", "register", "user", "account", "profile",
	"password", "mypage", "session", "search", "apply", "cart", "recruit",
	"faq", "help", "terms", "privacy", "support", "subsid", "policy",
	"guide", "myform", "email", "phonebook", "process", "return",
	"로그인", "회원가입", "비밀번호", "계정", "아이디", "고객센터",
	"문의", "이용약관", "개인정보처리방침", "약관", "법적고지", "자주 묻는 질문",
	"도움말", "지원하기", "채용 공고", "채용 절차", "이메일 문의",
	"채용 faq", "온라인 문의", "자주 하는 질문", "연락처",
}

// DefaultAllowKeywords 企业文化/愿景相关关键字,命中的链接优先跟随
var DefaultAllowKeywords = []string{
	"about", "vision", "mission", "values", "culture", "philosophy",
	"our-story", "who-we-are", "strategy", "sustainability", "esg",
	"corporate", "ethics", "principles", "history", "leadership",
	"careers", "people", "insight", "story", "team", "life",
	"company", "identity", "responsibility", "commitment",
	"work", "growth", "innovation", "environment", "future",
	"비전", "미션", "핵심가치", "철학", "가치", "목표", "전략",
	"비전선언문", "기업소개", "윤리", "기업 윤리", "사회적 책임",
	"지속 가능성", "환경", "윤리 강령", "리더십", "성장", "혁신",
	"기업문화", "조직문화", "근무 환경", "일하는 방식", "기업가정신",
	"팀워크", "경영이념", "인재상", "핵심 인재",
	"채용 철학", "일하기 좋은 회사", "우리의 가치",
}

// LinkFilter 链接发现与过滤
// 同主机过滤、黑名单丢弃、白名单打分、规范化去重,最终截取前maxLinks个
type LinkFilter struct {
	allow    []string
	deny     []string
	maxLinks int
}

// NewLinkFilter 使用默认关键字创建过滤器
func NewLinkFilter(maxLinks int) *LinkFilter {
	if maxLinks <= 0 {
		maxLinks = DefaultMaxLinks
	}
	return &LinkFilter{
		allow:    lowerAll(DefaultAllowKeywords),
		deny:     lowerAll(DefaultDenyKeywords),
		maxLinks: maxLinks,
	}
}

// WithKeywords 替换关键字列表,传nil保留原列表
func (f *LinkFilter) WithKeywords(allow, deny []string) *LinkFilter {
	clone := *f
	if allow != nil {
		clone.allow = lowerAll(allow)
	}
	if deny != nil {
		clone.deny = lowerAll(deny)
	}
	return &clone
}

// ShouldFollowLink 判断链接是否可以作为候选
// 返回是否跟随以及不跟随的原因
func (f *LinkFilter) ShouldFollowLink(linkURL, anchorText, rootHost string, sameDomainOnly bool) (bool, string) {
	parsedURL, err := url.Parse(linkURL)
	if err != nil {
		return false, "URL格式无效"
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false, "不支持的协议"
	}

	if sameDomainOnly && !strings.EqualFold(parsedURL.Host, rootHost) {
		log.Debug().Str("url", linkURL).Str("root_host", rootHost).Msg("跨域链接已过滤")
		return false, "跨域链接已过滤"
	}

	if keyword := matchKeyword(f.deny, linkSubject(parsedURL), anchorText); keyword != "" {
		log.Debug().Str("url", linkURL).Str("keyword", keyword).Msg("黑名单链接已过滤")
		return false, "命中黑名单: " + keyword
	}

	return true, ""
}

// MatchKeyword 返回链接命中的第一个白名单关键字
func (f *LinkFilter) MatchKeyword(linkURL, anchorText string) string {
	parsedURL, err := url.Parse(linkURL)
	if err != nil {
		return ""
	}
	return matchKeyword(f.allow, linkSubject(parsedURL), anchorText)
}

// DiscoverLinks 从页面中挑选下一步要抓取的链接
// 白名单命中的链接排在前面,其余保持首次出现顺序
func (f *LinkFilter) DiscoverLinks(extract *models.PageExtract, rootURL string, sameDomainOnly bool) []models.LinkCandidate {
	if extract == nil || len(extract.Links) == 0 {
		return nil
	}

	root, err := url.Parse(rootURL)
	if err != nil {
		return nil
	}

	var matched, others []models.LinkCandidate
	seen := make(map[string]bool)

	for _, link := range extract.Links {
		text := extract.LinkTexts[link]

		if ok, _ := f.ShouldFollowLink(link, text, root.Host, sameDomainOnly); !ok {
			continue
		}

		key := models.CanonicalURL(link)
		if seen[key] {
			continue
		}
		seen[key] = true

		candidate := models.LinkCandidate{
			URL:            link,
			Text:           text,
			MatchedKeyword: f.MatchKeyword(link, text),
		}
		if candidate.Matched() {
			matched = append(matched, candidate)
		} else {
			others = append(others, candidate)
		}
	}

	candidates := append(matched, others...)
	if len(candidates) > f.maxLinks {
		candidates = candidates[:f.maxLinks]
	}

	log.Debug().
		Str("page", extract.URL).
		Int("links", len(extract.Links)).
		Int("matched", len(matched)).
		Int("selected", len(candidates)).
		Msg("链接发现完成")

	return candidates
}

// linkSubject 参与关键字匹配的部分: 解码后的路径和查询串,小写
func linkSubject(u *url.URL) string {
	subject := u.Path
	if u.RawQuery != "" {
		query, err := url.QueryUnescape(u.RawQuery)
		if err != nil {
			query = u.RawQuery
		}
		subject += "?" + query
	}
	return strings.ToLower(subject)
}

func matchKeyword(keywords []string, subject, anchorText string) string {
	text := strings.ToLower(anchorText)
	for _, keyword := range keywords {
		if strings.Contains(subject, keyword) || (text != "" && strings.Contains(text, keyword)) {
			return keyword
		}
	}
	return ""
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
