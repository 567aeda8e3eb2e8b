package crawlers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/metrics"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// 渲染前整体移除的元素
const removedSelector = "script, style, noscript, template"

// inlineElements 文本不换行的行内元素,其余元素视为块级
var inlineElements = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.B: true, atom.Bdi: true, atom.Bdo: true,
	atom.Cite: true, atom.Code: true, atom.Data: true, atom.Dfn: true, atom.Em: true,
	atom.Font: true, atom.I: true, atom.Kbd: true, atom.Label: true, atom.Mark: true,
	atom.Q: true, atom.S: true, atom.Samp: true, atom.Small: true, atom.Span: true,
	atom.Strong: true, atom.Sub: true, atom.Sup: true, atom.Time: true, atom.U: true,
	atom.Var: true,
}

// PageFetcher 静态渲染所需的抓取能力
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) *models.FetchResult
}

// StaticRenderer 解析已抓取的HTML,提取可见文本和同主机链接
type StaticRenderer struct {
	fetcher PageFetcher
	cleaner Cleaner
	metrics *metrics.Collector
}

// NewStaticRenderer 创建静态渲染器,默认使用Normalize清洗文本
func NewStaticRenderer(fetcher PageFetcher, collector *metrics.Collector) *StaticRenderer {
	return &StaticRenderer{
		fetcher: fetcher,
		cleaner: Normalize,
		metrics: collector,
	}
}

// WithCleaner 返回使用指定清洗器的副本
func (r *StaticRenderer) WithCleaner(cleaner Cleaner) *StaticRenderer {
	clone := *r
	clone.cleaner = cleaner
	return &clone
}

// RenderStatic 从HTML字符串提取页面内容
// pageURL 用于解析相对链接,页面中的<base href>优先
func (r *StaticRenderer) RenderStatic(pageURL, htmlContent string) (*models.PageExtract, error) {
	extract, err := extractDocument(pageURL, htmlContent, r.cleaner)
	if err != nil {
		return nil, err
	}
	extract.Mode = models.PageStatic
	return extract, nil
}

// RenderURL 抓取并渲染URL
func (r *StaticRenderer) RenderURL(ctx context.Context, pageURL string) (*models.PageExtract, error) {
	result := r.fetcher.Fetch(ctx, pageURL)
	if !result.OK() {
		r.metrics.ObserveRender(string(models.PageStatic), false)
		return nil, result.Err
	}

	if !isTextualContent(result.ContentType) {
		r.metrics.ObserveRender(string(models.PageStatic), false)
		return nil, models.NewPipelineError(models.KindParse, pageURL,
			fmt.Errorf("不支持的内容类型: %s", result.ContentType))
	}

	base := pageURL
	if result.FinalURL != "" {
		base = result.FinalURL
	}

	extract, err := r.RenderStatic(base, result.Body)
	r.metrics.ObserveRender(string(models.PageStatic), err == nil)
	if err != nil {
		return nil, err
	}
	extract.URL = pageURL

	utils.Debugf("📄 静态渲染完成: %s (%d字符, %d个链接)", pageURL, len([]rune(extract.Text)), len(extract.Links))
	return extract, nil
}

// extractDocument 静态和动态渲染共用的提取逻辑
func extractDocument(pageURL, htmlContent string, cleaner Cleaner) (*models.PageExtract, error) {
	pageBase, err := url.Parse(pageURL)
	if err != nil || pageBase.Host == "" {
		return nil, models.NewPipelineError(models.KindParse, pageURL, fmt.Errorf("无效的页面URL: %v", err))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, models.NewPipelineError(models.KindParse, pageURL, fmt.Errorf("解析HTML失败: %w", err))
	}

	base := pageBase
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if parsed, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = pageBase.ResolveReference(parsed)
		}
	}

	doc.Find(removedSelector).Remove()

	extract := &models.PageExtract{
		URL:       pageURL,
		LinkTexts: make(map[string]string),
	}

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := resolveLink(base, href)
		if !ok || !models.SameHost(link, pageBase.String()) || seen[link] {
			return
		}
		seen[link] = true
		extract.Links = append(extract.Links, link)
		extract.LinkTexts[link] = Normalize(s.Text())
	})

	seenImages := make(map[string]bool)
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			src, _ = s.Attr("data-src")
		}
		image, ok := resolveLink(base, src)
		if !ok || seenImages[image] {
			return
		}
		seenImages[image] = true
		extract.ImageURLs = append(extract.ImageURLs, image)
	})

	root := doc.Selection
	if body := doc.Find("body"); body.Length() > 0 {
		root = body
	}

	text := visibleText(root.Nodes)
	if cleaner != nil {
		text = cleaner(text)
	}
	extract.Text = text

	return extract, nil
}

// resolveLink 把href解析为去掉片段的http(s)绝对URL
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}

	return models.StripFragment(resolved).String(), true
}

// visibleText 遍历DOM收集文本
// 块级元素之间换行,行内元素之间保持在同一行
func visibleText(nodes []*html.Node) string {
	var b strings.Builder

	newline := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			data := whitespaceRunPattern.ReplaceAllString(n.Data, " ")
			if strings.TrimSpace(data) == "" {
				s := b.String()
				if data != "" && s != "" && !strings.HasSuffix(s, "\n") && !strings.HasSuffix(s, " ") {
					b.WriteByte(' ')
				}
				return
			}
			b.WriteString(data)
			return
		case html.CommentNode, html.DoctypeNode:
			return
		case html.ElementNode:
			if n.DataAtom == atom.Br {
				newline()
				return
			}
		}

		block := n.Type == html.ElementNode && !inlineElements[n.DataAtom]
		if block {
			newline()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			newline()
		}
	}

	for _, n := range nodes {
		walk(n)
	}

	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// isTextualContent 判断Content-Type是否可按HTML解析
func isTextualContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "html") || strings.Contains(ct, "xml") || strings.HasPrefix(ct, "text/")
}
