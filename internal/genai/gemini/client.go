package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"genai-studio/common"
	"genai-studio/internal/utils"

	"google.golang.org/genai"
)

// 默认请求超时时间（调用 Gemini / Imagen 接口）
const defaultGenAITimeout = 60 * time.Second

const (
	generateOutputMIMEType = "image/jpeg"
	defaultEditMIMEType    = "image/png"

	modalityImage = "IMAGE"
	modalityText  = "TEXT"
)

var (
	// ErrNoImageGenerated 生成接口没有返回任何图片（通常是被安全策略拦截）
	ErrNoImageGenerated = errors.New("no image was generated, the response may have been blocked")
	// ErrEmptyEdit 编辑接口既没有返回图片也没有返回文本
	ErrEmptyEdit = errors.New("the edit produced neither an image nor text")
)

// modelsAPI genai.Models 中本客户端用到的部分
type modelsAPI interface {
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client Gemini 客户端实现
type Client struct {
	models    modelsAPI
	genModel  string
	editModel string
	timeout   time.Duration
}

// Config Gemini 客户端配置
type Config struct {
	APIKey  string // API Key
	BaseURL string // 自定义 Base URL，如果为空则使用默认值
	// 分别用于图片生成（Imagen）与图片编辑（Gemini）的模型名称
	GenerateModelName string
	EditModelName     string
	Timeout           time.Duration // 请求超时时间
}

// NewClient 创建新的 Gemini 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return newClient(client.Models, cfg)
}

// NewClientFromConfig 从应用配置创建 Gemini 客户端
func NewClientFromConfig(cfg *common.Config) (*Client, error) {
	return NewClient(Config{
		APIKey:            cfg.GenAIAPIKey,
		BaseURL:           cfg.GenAIBaseURL,
		GenerateModelName: cfg.GenAIGenModelName,
		EditModelName:     cfg.GenAIEditModelName,
		Timeout:           time.Duration(cfg.GenAITimeoutSeconds) * time.Second,
	})
}

func newClient(models modelsAPI, cfg Config) (*Client, error) {
	if cfg.GenerateModelName == "" || cfg.EditModelName == "" {
		return nil, fmt.Errorf("both generate and edit model names are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGenAITimeout
	}

	return &Client{
		models:    models,
		genModel:  cfg.GenerateModelName,
		editModel: cfg.EditModelName,
		timeout:   timeout,
	}, nil
}

// Close 关闭客户端（genai.Client 不需要显式关闭）
func (c *Client) Close() error {
	return nil
}

// GenerateImages 文生图：根据文本提示生成 n 张图片
func (c *Client) GenerateImages(ctx context.Context, prompt string, aspectRatio string, n int) ([]Image, error) {
	common.WithFields(map[string]interface{}{
		"model":        c.genModel,
		"prompt":       utils.TruncateForLog(prompt, 80),
		"aspect_ratio": aspectRatio,
		"count":        n,
	}).Debug("Starting image generation")

	// 为本次请求设置超时时间，避免无休止等待
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.models.GenerateImages(ctx, c.genModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(n),
		AspectRatio:    aspectRatio,
		OutputMIMEType: generateOutputMIMEType,
	})
	if err != nil {
		common.WithError(err).WithField("model", c.genModel).Error("Failed to generate images from Imagen API")
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}

	images, err := parseGenerateResponse(resp)
	if err != nil {
		common.WithError(err).WithField("model", c.genModel).Error("No usable image in generate response")
		return nil, err
	}

	common.WithFields(map[string]interface{}{
		"model": c.genModel,
		"count": len(images),
	}).Debug("Images generated successfully")

	return images, nil
}

// EditImage 图片编辑：根据文本提示编辑源图片
func (c *Client) EditImage(ctx context.Context, prompt string, source Image) (*EditResult, error) {
	common.WithFields(map[string]interface{}{
		"model":     c.editModel,
		"prompt":    utils.TruncateForLog(prompt, 80),
		"mime_type": source.MIMEType,
		"size":      len(source.Data),
	}).Debug("Starting image editing")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// 构建请求内容：源图片在前，编辑提示在后
	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: source.Data, MIMEType: source.MIMEType}},
		{Text: prompt},
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{modalityImage, modalityText},
	}

	resp, err := c.models.GenerateContent(ctx, c.editModel, contents, config)
	if err != nil {
		common.WithError(err).WithField("model", c.editModel).Error("Failed to edit image from Gemini API")
		return nil, fmt.Errorf("failed to edit image: %w", err)
	}

	result, err := parseEditResponse(resp)
	if err != nil {
		common.WithError(err).WithField("model", c.editModel).Error("No usable output in edit response")
		return nil, err
	}

	common.WithFields(map[string]interface{}{
		"model":     c.editModel,
		"has_image": result.Image != nil,
		"has_text":  result.Text != "",
	}).Debug("Image edited successfully")

	return result, nil
}

// parseGenerateResponse 按顺序提取生成的图片
func parseGenerateResponse(resp *genai.GenerateImagesResponse) ([]Image, error) {
	if resp == nil {
		return nil, ErrNoImageGenerated
	}

	var images []Image
	var filtered []string
	for _, generated := range resp.GeneratedImages {
		if generated == nil {
			continue
		}
		if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
			if generated.RAIFilteredReason != "" {
				filtered = append(filtered, generated.RAIFilteredReason)
			}
			continue
		}
		mimeType := generated.Image.MIMEType
		if mimeType == "" {
			mimeType = generateOutputMIMEType
		}
		images = append(images, Image{Data: generated.Image.ImageBytes, MIMEType: mimeType})
	}

	if len(images) == 0 {
		if len(filtered) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoImageGenerated, strings.Join(filtered, "; "))
		}
		return nil, ErrNoImageGenerated
	}
	return images, nil
}

// parseEditResponse 从第一个候选中提取图片和文本
func parseEditResponse(resp *genai.GenerateContentResponse) (*EditResult, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyEdit
	}

	result := &EditResult{}
	var texts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = defaultEditMIMEType
			}
			result.Image = &Image{Data: part.InlineData.Data, MIMEType: mimeType}
		} else if text := strings.TrimSpace(part.Text); text != "" {
			texts = append(texts, text)
		}
	}
	result.Text = strings.Join(texts, "\n")

	if result.Image == nil && result.Text == "" {
		return nil, ErrEmptyEdit
	}
	return result, nil
}
