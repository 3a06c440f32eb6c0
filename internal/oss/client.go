package oss

import (
	"genai-studio/common"
)

// NewOSSClientFromConfig 从配置创建 OSS 客户端
func NewOSSClientFromConfig(cfg *common.Config) (OSSIface, error) {
	return NewS3Client(S3Config{
		Endpoint:  cfg.OSSEndpoint,
		Region:    cfg.OSSRegion,
		AccessKey: cfg.OSSAccessKey,
		SecretKey: cfg.OSSSecretKey,
	})
}

// NewSharerFromConfig 根据配置创建分享器，未配置 OSS 时返回 nil
func NewSharerFromConfig(cfg *common.Config) (*Sharer, error) {
	if !cfg.OSSEnabled() {
		return nil, nil
	}
	client, err := NewOSSClientFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewSharer(client, cfg.OSSBucket, int64(cfg.OSSShareExpiresSeconds)), nil
}
