package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"genai-studio/common"
	"genai-studio/internal/studio"
)

//go:embed templates/*.html static/*
var assets embed.FS

// Option Web 服务选项
type Option func(*Server)

// WithMCPHandler 在 /mcp 路径挂载 MCP streamable HTTP 服务
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// WithMaxUploadBytes 设置 multipart 请求体上限
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithClock 替换时间来源（用于生成下载文件名）
func WithClock(fn func() time.Time) Option {
	return func(s *Server) { s.now = fn }
}

// Server 浏览器界面：左侧选项面板、右侧展示区以及图库页
type Server struct {
	session   *studio.Session
	tmpl      *template.Template
	mcp       http.Handler
	maxUpload int64
	now       func() time.Time
}

// NewServer 创建 Web 服务
func NewServer(session *studio.Session, opts ...Option) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"imgsrc": imageSource,
		"add":    func(a, b int) int { return a + b },
	}).ParseFS(assets, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		session:   session,
		tmpl:      tmpl,
		maxUpload: 10 << 20,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler 返回注册了全部路由的 http.Handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("POST /mode", s.handleMode)
	mux.HandleFunc("POST /submit", s.handleSubmit)
	mux.HandleFunc("POST /generate-more", s.handleGenerateMore)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /source/clear", s.handleClearSource)
	mux.HandleFunc("POST /results/{index}/select", s.handleSelectResult)
	mux.HandleFunc("GET /result/download", s.handleDownloadResult)

	mux.HandleFunc("GET /gallery", s.handleGallery)
	mux.HandleFunc("GET /gallery/{id}", s.handleDetail)
	mux.HandleFunc("POST /gallery/{id}/favorite", s.handleFavorite)
	mux.HandleFunc("GET /gallery/{id}/delete", s.handleConfirmDelete)
	mux.HandleFunc("POST /gallery/{id}/delete", s.handleDelete)
	mux.HandleFunc("GET /gallery/{id}/download", s.handleDownload)
	mux.HandleFunc("POST /gallery/{id}/share", s.handleShare)

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/gallery", s.handleAPIGallery)

	static, _ := fs.Sub(assets, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}

	return logRequests(mux)
}

// statusRecorder 记录响应状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := common.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("HTTP request failed")
			return
		}
		entry.Debug("HTTP request")
	})
}

// imageSource 只放行 data:image/ 开头的地址，其他内容一律置空
func imageSource(uri string) template.URL {
	if strings.HasPrefix(uri, "data:image/") {
		return template.URL(uri)
	}
	return ""
}
