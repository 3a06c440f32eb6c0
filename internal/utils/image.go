package utils

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"
)

// ErrInvalidDataURI data URI 格式不正确
var ErrInvalidDataURI = errors.New("invalid data URI format")

// downloadPrefix 下载文件名前缀
const downloadPrefix = "nanobanana-ai"

// EncodeDataURI 将图片数据编码为 data URI
func EncodeDataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURI 解析 base64 data URI，返回原始数据和 MIME 类型
func DecodeDataURI(uri string) ([]byte, string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", ErrInvalidDataURI
	}
	parts := strings.SplitN(uri, ",", 2)
	if len(parts) != 2 || !strings.HasSuffix(parts[0], ";base64") {
		return nil, "", ErrInvalidDataURI
	}
	mimeType := strings.TrimPrefix(strings.TrimSuffix(parts[0], ";base64"), "data:")
	data, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 data: %w", err)
	}
	return data, mimeType, nil
}

// IsImageMIME 判断 MIME 类型是否为图片
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// DetectMIME 根据内容嗅探 MIME 类型（去掉参数部分）
func DetectMIME(data []byte) string {
	mimeType := http.DetectContentType(data)
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return mimeType
}

// DownloadImageFromURL 从 URL 下载图片，返回图片数据和 MIME 类型
func DownloadImageFromURL(ctx context.Context, url string) ([]byte, string, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: status code %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = InferMimeTypeFromURL(url)
	}

	return imageData, mimeType, nil
}

// InferMimeTypeFromURL 从 URL 推断 MIME 类型（不区分大小写）
func InferMimeTypeFromURL(url string) string {
	if len(url) > 4 {
		ext := strings.ToLower(url[len(url)-4:])
		switch ext {
		case ".jpg", "jpeg":
			return "image/jpeg"
		case ".png":
			return "image/png"
		case ".gif":
			return "image/gif"
		case "webp":
			return "image/webp"
		}
	}
	return "image/jpeg"
}

// GenerateImagePath 生成分享图片路径：shared/yyyy-MM-dd/
func GenerateImagePath(now time.Time) string {
	return fmt.Sprintf("shared/%s/", now.Format("2006-01-02"))
}

// GenerateImageFileName 生成图片文件名：{id}_{timestamp}_{random}.ext
func GenerateImageFileName(id, mimeType string, now time.Time) string {
	randomBytes := make([]byte, 4)
	_, _ = rand.Read(randomBytes)
	return fmt.Sprintf("%s_%d_%x%s", id, now.Unix(), randomBytes, GetExtensionFromMimeType(mimeType))
}

// GetExtensionFromMimeType 根据 MIME 类型获取文件扩展名（不区分大小写）
func GetExtensionFromMimeType(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".jpg"
	}
}

// DownloadFileName 生成图库下载文件名：nanobanana-ai-{prompt 前 20 字符}-{id 前 4 位}.png
// prompt 中的空白字符替换为下划线
func DownloadFileName(prompt, id string) string {
	head := []rune(prompt)
	if len(head) > 20 {
		head = head[:20]
	}
	for i, r := range head {
		if unicode.IsSpace(r) {
			head[i] = '_'
		}
	}
	short := id
	if len(short) > 4 {
		short = short[:4]
	}
	return fmt.Sprintf("%s-%s-%s.png", downloadPrefix, string(head), short)
}

// ResultFileName 生成当前结果的下载文件名：nanobanana-ai-{毫秒时间戳}.png
func ResultFileName(now time.Time) string {
	return fmt.Sprintf("%s-%d.png", downloadPrefix, now.UnixMilli())
}

// TruncateForLog 按字符截断长字符串用于日志，避免打印过长内容（如 base64）
func TruncateForLog(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
