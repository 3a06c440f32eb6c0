package oss

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"genai-studio/internal/utils"
)

// Sharer 将图库中的图片上传到 OSS 并生成限时访问链接
type Sharer struct {
	client    OSSIface
	bucket    string
	expiresIn int64
	now       func() time.Time
}

// NewSharer 创建分享器，expiresIn 为链接有效期（秒）
func NewSharer(client OSSIface, bucket string, expiresIn int64) *Sharer {
	return &Sharer{
		client:    client,
		bucket:    bucket,
		expiresIn: expiresIn,
		now:       time.Now,
	}
}

// Share 上传图片并返回带签名的访问链接
func (s *Sharer) Share(ctx context.Context, id string, mimeType string, data []byte) (string, error) {
	now := s.now()
	key := utils.GenerateImagePath(now) + utils.GenerateImageFileName(id, mimeType, now)

	if _, err := s.client.UploadFile(ctx, s.bucket, key, bytes.NewReader(data), mimeType); err != nil {
		return "", err
	}

	url, err := s.client.GetSignedURL(ctx, s.bucket, key, s.expiresIn)
	if err != nil {
		return "", fmt.Errorf("failed to sign shared image: %w", err)
	}
	return url, nil
}
