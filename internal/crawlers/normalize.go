package crawlers

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// 不包含嵌套括号的最内层 (...) 和 [...]
	parenSpanPattern   = regexp.MustCompile(`\([^()]*\)`)
	bracketSpanPattern = regexp.MustCompile(`\[[^\[\]]*\]`)

	// 空白以外的C0控制字符和DEL
	controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0E-\x1F\x7F]`)

	// ASCII空白、垂直制表符和Unicode空格分隔符
	whitespaceRunPattern = regexp.MustCompile(`[\s\x0B\p{Zs}]+`)
)

// Cleaner 渲染器在返回前对文本做的清洗
type Cleaner func(string) string

// Normalize 清洗文本
//
// 删除括号和方括号内容,去掉控制字符,把所有空白压缩为单个空格并去掉首尾空白。
// 纯函数,Normalize(Normalize(s)) == Normalize(s)
func Normalize(text string) string {
	text = controlCharPattern.ReplaceAllString(text, "")
	text = whitespaceRunPattern.ReplaceAllString(text, " ")

	// 逐层删除,直到没有完整的括号对
	for {
		stripped := parenSpanPattern.ReplaceAllString(text, "")
		stripped = bracketSpanPattern.ReplaceAllString(stripped, "")
		if stripped == text {
			break
		}
		text = stripped
	}

	text = whitespaceRunPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NormalizeLines 逐行清洗并丢弃短行
// 少于minLen个字符的行视为导航/菜单碎片,空行总是丢弃
func NormalizeLines(text string, minLen int) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		line = Normalize(line)
		if line == "" || utf8.RuneCountInString(line) < minLen {
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

// LineCleaner 站点爬取使用的逐行清洗器
func LineCleaner(minLen int) Cleaner {
	return func(text string) string {
		return NormalizeLines(text, minLen)
	}
}
