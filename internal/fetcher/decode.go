package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// chardet置信度低于该值时不采用
const minCharsetConfidence = 50

// decompressResponse 根据Content-Encoding解压响应体
// 支持 gzip, deflate, br
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}

// detectCharset 判断响应体编码
// 顺序: Content-Type/BOM → meta标签 → 合法UTF-8 → chardet嗅探 → UTF-8
func detectCharset(body []byte, contentType string) string {
	_, name, certain := charset.DetermineEncoding(body, contentType)
	if certain {
		return name
	}

	// DetermineEncoding 在没有任何线索时返回 windows-1252
	if name != "" && name != "windows-1252" {
		return name
	}

	if utf8.Valid(body) {
		return "utf-8"
	}

	result, err := chardet.NewHtmlDetector().DetectBest(body)
	if err == nil && result.Confidence >= minCharsetConfidence {
		if _, canonical := charset.Lookup(result.Charset); canonical != "" {
			return canonical
		}
	}

	return "utf-8"
}

// decodeBody 把响应体解码为UTF-8文本
func decodeBody(body []byte, contentType string) (text string, charsetName string, err error) {
	charsetName = detectCharset(body, contentType)

	if charsetName == "utf-8" {
		return strings.ToValidUTF8(string(body), "�"), charsetName, nil
	}

	enc, _ := charset.Lookup(charsetName)
	if enc == nil {
		return strings.ToValidUTF8(string(body), "�"), "utf-8", nil
	}

	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", charsetName, fmt.Errorf("按 %s 解码失败: %w", charsetName, err)
	}
	return string(decoded), charsetName, nil
}
