// Package crawlers 提供招聘公告和企业官网的文本提取功能
//
// # 概述
//
// crawlers包把一个URL变成去除噪声的纯文本。页面先经过分类器判断是否依赖JavaScript,
// 静态页面直接抓取HTML解析,动态页面交给无头浏览器渲染后再按相同规则提取。
// 企业官网会沿着"公司介绍/愿景/文化"类链接递归爬取,汇总为一份语料。
//
// # 核心组件
//
// ## Classifier (页面分类器)
//
// 基于Colly发起一次探测请求,统计 <script 出现次数,超过5个视为动态页面。
// 探测失败(网络错误、非2xx状态码、超时)一律视为动态页面。
//
//	classifier := NewClassifier(5*time.Second, headerProvider, false, collector)
//	pageType := classifier.Classify(ctx, "https://example.com")
//
// ## StaticRenderer / DynamicRenderer
//
// StaticRenderer 使用fetcher抓取HTML后用goquery解析;DynamicRenderer 通过Driver
// (go-rod或chromedp)启动浏览器渲染。两者共用extractDocument:
//   - 删除script/style/noscript/template
//   - 块级元素换行,行内元素保持同行
//   - 解析<base href>,只保留同主机的http(s)链接并去掉片段
//   - 文本交给Cleaner清洗(默认Normalize)
//
// 动态渲染前会经过ResourceMonitor检查,内存或CPU紧张时拒绝启动浏览器。
//
//	renderer := NewDynamicRenderer(opts, driver, monitor, collector)
//	session, err := renderer.OpenSession(ctx)
//	if err != nil { /* 处理错误 */ }
//	defer session.Close()
//
//	extract, err := session.Render(ctx, url)
//
// ## LinkFilter (链接发现)
//
// 同主机过滤,黑名单(登录、注册、隐私政策等)优先于白名单,
// 规范化URL去重后白名单命中的链接排在前面,最多保留maxLinks个。
//
// ## SiteCrawler (站点递归爬取)
//
// 根页面深度为0,maxDepth为根页面之外允许的跳数。先序深度优先遍历,
// 已访问集合保证每个URL只抓取一次。同一任务内的动态页面复用一个浏览器会话,
// 任务结束时关闭。非根页面失败只会让对应分支没有内容,根页面失败返回ErrRootFetchFailed。
//
//	crawler := NewSiteCrawler(config, classifier, static.WithCleaner(LineCleaner(20)), dynamic, collector)
//	corpus, err := crawler.Crawl(ctx, "https://example.com")
//
// ## JobCrawler (招聘公告)
//
// 单页面抓取,可选对页面图片执行OCR并把结果追加到文本末尾。
//
// # 文本清洗
//
// Normalize 删除控制字符、折叠空白、删除括号和方括号内容,结果幂等。
// NormalizeLines 逐行清洗并丢弃短行,用于企业官网语料。
package crawlers
