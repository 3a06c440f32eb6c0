package gemini

import "context"

// GenimiIface 图片生成与编辑接口
type GenimiIface interface {
	// GenerateImages 文生图，按顺序返回 n 张图片
	GenerateImages(ctx context.Context, prompt string, aspectRatio string, n int) ([]Image, error)
	// EditImage 根据文本指令编辑源图片，结果中图片与说明文本至少有一项
	EditImage(ctx context.Context, prompt string, source Image) (*EditResult, error)
}

// Image 图片数据及其 MIME 类型
type Image struct {
	Data     []byte
	MIMEType string
}

// EditResult 图片编辑结果
type EditResult struct {
	Image *Image // 编辑后的图片，可能为空
	Text  string // 模型返回的说明文本，可能为空
}
