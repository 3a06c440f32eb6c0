package cli

import (
	"fmt"

	"genai-studio/common"
	"genai-studio/internal/genai/gemini"
	"genai-studio/internal/oss"
	"genai-studio/internal/studio"

	"github.com/spf13/cobra"
)

const (
	serverName    = "GenAI Studio"
	serverVersion = "1.0.0"
)

var rootCmd = &cobra.Command{
	Use:   "genai-studio",
	Short: "AI image studio: generate and edit images with Gemini",
	Long: `GenAI Studio generates images from text prompts and edits uploaded images
with a text instruction. It can run as a browser UI, as an MCP server, or as
one-shot commands that write images to disk.`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() error {
	return rootCmd.Execute()
}

// app 一次命令运行所需的依赖
type app struct {
	config  *common.Config
	client  *gemini.Client
	session *studio.Session
}

func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
}

// newApp 加载配置并创建客户端与会话
func newApp(opts ...common.LoadOption) (*app, error) {
	config, err := common.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	common.WithFields(map[string]interface{}{
		"base_url":   config.GenAIBaseURL,
		"gen_model":  config.GenAIGenModelName,
		"edit_model": config.GenAIEditModelName,
		"api_key":    maskAPIKey(config.GenAIAPIKey),
	}).Info("Configuration loaded")

	client, err := gemini.NewClientFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	sessionOpts := []studio.Option{studio.WithMaxUploadBytes(config.MaxUploadBytes())}
	sharer, err := oss.NewSharerFromConfig(config)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}
	if sharer != nil {
		sessionOpts = append(sessionOpts, studio.WithSharer(sharer))
		common.WithField("bucket", config.OSSBucket).Info("Image sharing enabled")
	}

	return &app{
		config:  config,
		client:  client,
		session: studio.NewSession(client, sessionOpts...),
	}, nil
}

// maskAPIKey 隐藏 API Key 的敏感部分
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
