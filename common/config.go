package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultGenModelName  = "imagen-4.0-generate-001"
	defaultEditModelName = "gemini-2.5-flash-image-preview"
)

// Config 应用配置结构
type Config struct {
	// GenAI 配置（生成与编辑共用同一套 BaseURL / APIKey）
	GenAIBaseURL string
	GenAIAPIKey  string
	// 分别用于图片生成与图片编辑的模型名称
	GenAIGenModelName  string
	GenAIEditModelName string
	// GenAI 请求超时时间（秒）
	GenAITimeoutSeconds int

	ServerAddress string
	ServerPort    string
	// 上传源图片的大小上限（MB）
	MaxUploadMB int

	// OSS 配置（分享功能使用，可选）
	OSSEndpoint  string
	OSSRegion    string
	OSSAccessKey string
	OSSSecretKey string
	OSSBucket    string
	// 分享链接有效期（秒）
	OSSShareExpiresSeconds int

	// 日志配置
	LogLevel  string // 日志级别: debug, info, warn, error
	LogFormat string // 日志格式: json, text
	LogOutput string // 输出位置: stdout, stderr, file
	LogFile   string // 日志文件路径（当 LogOutput 为 file 时）
}

// LoadOption 加载配置时的覆盖项
type LoadOption func(*Config)

// ReserveStdout stdout 被其他协议占用时（如 MCP stdio），日志改写到 stderr
func ReserveStdout() LoadOption {
	return func(c *Config) {
		switch strings.ToLower(c.LogOutput) {
		case "stderr", "file":
		default:
			c.LogOutput = "stderr"
		}
	}
}

// LoadConfig 从 .env 文件加载配置
func LoadConfig(opts ...LoadOption) (*Config, error) {
	// 加载 .env 文件（如果存在）
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}

	config := &Config{
		GenAIBaseURL:        getEnv("GENAI_BASE_URL", ""),
		GenAIAPIKey:         getEnv("GENAI_API_KEY", ""),
		GenAIGenModelName:   getEnv("GENAI_GEN_MODEL_NAME", defaultGenModelName),
		GenAIEditModelName:  getEnv("GENAI_EDIT_MODEL_NAME", defaultEditModelName),
		GenAITimeoutSeconds: getEnvInt("GENAI_TIMEOUT_SECONDS", 60),
		ServerAddress:       getEnv("SERVER_ADDRESS", "0.0.0.0"),
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		MaxUploadMB:         getEnvInt("MAX_UPLOAD_MB", 10),
		// OSS 配置
		OSSEndpoint:            getEnv("OSS_ENDPOINT", ""),
		OSSRegion:              getEnv("OSS_REGION", "us-east-1"),
		OSSAccessKey:           getEnv("OSS_ACCESS_KEY", ""),
		OSSSecretKey:           getEnv("OSS_SECRET_KEY", ""),
		OSSBucket:              getEnv("OSS_BUCKET", ""),
		OSSShareExpiresSeconds: getEnvInt("OSS_SHARE_EXPIRES_SECONDS", 3600*24*7),
		// 日志配置
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
		LogFile:   getEnv("LOG_FILE", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(config)
	}

	// 初始化日志系统
	logConfig := &LogConfig{
		Level:    config.LogLevel,
		Format:   config.LogFormat,
		Output:   config.LogOutput,
		FilePath: config.LogFile,
	}
	if err := InitLogger(logConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return config, nil
}

// Validate 校验必需的配置
func (c *Config) Validate() error {
	if c.GenAIAPIKey == "" {
		return fmt.Errorf("GENAI_API_KEY is required")
	}
	if c.GenAIGenModelName == "" || c.GenAIEditModelName == "" {
		return fmt.Errorf("both GENAI_GEN_MODEL_NAME and GENAI_EDIT_MODEL_NAME must be set")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return defaultValue
}

// GetServerAddr 返回完整的服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.ServerAddress, c.ServerPort)
}

// MaxUploadBytes 返回上传大小上限（字节）
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// OSSEnabled 判断是否配置了分享所需的 OSS
func (c *Config) OSSEnabled() bool {
	return c.OSSBucket != "" && c.OSSAccessKey != "" && c.OSSSecretKey != ""
}
