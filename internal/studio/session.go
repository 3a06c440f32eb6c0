package studio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"genai-studio/common"
	"genai-studio/internal/genai/gemini"
	"genai-studio/internal/utils"

	"github.com/google/uuid"
)

const defaultMaxUploadBytes = 10 << 20

// Sharer 将图片发布到外部存储并返回访问链接
type Sharer interface {
	Share(ctx context.Context, id string, mimeType string, data []byte) (string, error)
}

// Option 会话选项
type Option func(*Session)

// WithSharer 启用分享功能
func WithSharer(sharer Sharer) Option {
	return func(s *Session) { s.sharer = sharer }
}

// WithMaxUploadBytes 设置源图片大小上限
func WithMaxUploadBytes(n int64) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithIDGenerator 替换图片 ID 生成函数
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) { s.newID = fn }
}

// WithClock 替换时间来源
func WithClock(fn func() time.Time) Option {
	return func(s *Session) { s.now = fn }
}

// Session 一个工作室会话的全部内存状态。
// 远程请求期间不持有锁，loading 标志保证同一时刻只有一个请求在途。
type Session struct {
	client    gemini.GenimiIface
	sharer    Sharer
	maxUpload int64
	newID     func() string
	now       func() time.Time

	mu             sync.Mutex
	mode           Mode
	prompt         string
	aspectRatio    AspectRatio
	numberOfImages int
	lastParams     *Params
	source         *SourceImage
	results        []string
	selected       int
	gallery        Gallery
	loading        bool
	errMsg         string
	// epoch 在切换模式时递增，用于丢弃过期请求的展示结果
	epoch uint64
}

// NewSession 创建新的会话
func NewSession(client gemini.GenimiIface, opts ...Option) *Session {
	s := &Session{
		client:         client,
		maxUpload:      defaultMaxUploadBytes,
		newID:          uuid.NewString,
		now:            time.Now,
		mode:           ModeCreate,
		aspectRatio:    AspectSquare,
		numberOfImages: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMode 切换模式，清空结果、源图片、错误和提示词；
// 切换到编辑模式时同时清空上次的生成参数
func (s *Session) SetMode(mode Mode) error {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == mode {
		return nil
	}
	s.mode = mode
	s.epoch++
	s.results = nil
	s.selected = 0
	s.source = nil
	s.errMsg = ""
	s.prompt = ""
	if mode == ModeEdit {
		s.lastParams = nil
	}
	return nil
}

// SetPrompt 更新提示词
func (s *Session) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
}

// SetAspectRatio 更新宽高比
func (s *Session) SetAspectRatio(ratio AspectRatio) error {
	ratio, err := ParseAspectRatio(string(ratio))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aspectRatio = ratio
	return nil
}

// SetNumberOfImages 更新生成数量（1~4）
func (s *Session) SetNumberOfImages(n int) error {
	if n < MinImages || n > MaxImages {
		return fmt.Errorf("%w: %d", ErrInvalidImageCount, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numberOfImages = n
	return nil
}

// ReadSource 读取并校验上传的源图片，不修改会话状态。
// contentType 为空时根据内容嗅探。
func (s *Session) ReadSource(name, contentType string, r io.Reader) (*SourceImage, error) {
	if contentType != "" && !utils.IsImageMIME(contentType) {
		return nil, ErrNotImage
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if len(data) == 0 {
		return nil, ErrUnreadableImage
	}
	if int64(len(data)) > s.maxUpload {
		return nil, ErrImageTooLarge
	}

	if contentType == "" {
		contentType = utils.DetectMIME(data)
		if !utils.IsImageMIME(contentType) {
			return nil, ErrNotImage
		}
	}

	return &SourceImage{Name: name, Data: data, MIMEType: contentType}, nil
}

// Upload 设置编辑用的源图片，仅在编辑模式下可用；校验失败时会话状态保持不变
func (s *Session) Upload(name, contentType string, r io.Reader) error {
	if s.currentMode() != ModeEdit {
		return ErrUploadNotInEdit
	}
	src, err := s.ReadSource(name, contentType, r)
	if err != nil {
		common.WithError(err).WithField("file", name).Warn("Rejected source image upload")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeEdit {
		return ErrUploadNotInEdit
	}
	s.source = src
	s.results = nil
	s.selected = 0
	s.errMsg = ""
	return nil
}

func (s *Session) currentMode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// ClearSource 清除源图片
func (s *Session) ClearSource() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = nil
	common.Debug("Source image cleared")
}

// Submit 按当前模式提交请求
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrBusy
	}
	if isBlank(s.prompt) {
		s.mu.Unlock()
		return ErrEmptyPrompt
	}
	mode, prompt, source := s.mode, s.prompt, s.source
	params := Params{Prompt: s.prompt, AspectRatio: s.aspectRatio, NumberOfImages: s.numberOfImages}
	s.mu.Unlock()

	if mode == ModeEdit {
		if source == nil {
			return ErrNoSourceImage
		}
		_, err := s.Edit(ctx, prompt, *source)
		return err
	}
	_, err := s.Generate(ctx, params)
	return err
}

// GenerateMore 用上次的生成参数再生成一次
func (s *Session) GenerateMore(ctx context.Context) error {
	s.mu.Lock()
	if s.lastParams == nil || s.mode != ModeCreate {
		s.mu.Unlock()
		return ErrNothingToRepeat
	}
	params := *s.lastParams
	s.mu.Unlock()

	_, err := s.Generate(ctx, params)
	return err
}

// Generate 调用生成接口，成功后将新图片按顺序插入图库最前面
func (s *Session) Generate(ctx context.Context, params Params) ([]Image, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	epoch, err := s.begin()
	if err != nil {
		return nil, err
	}

	// 请求一旦发出就等待其结束，调用方断开不会取消共享会话中的请求
	ctx = context.WithoutCancel(ctx)
	generated, err := s.client.GenerateImages(ctx, params.Prompt, string(params.AspectRatio), params.NumberOfImages)
	if err != nil {
		common.WithError(err).WithFields(map[string]interface{}{
			"prompt": utils.TruncateForLog(params.Prompt, 80),
			"count":  params.NumberOfImages,
		}).Error("Image generation failed")
		return nil, s.fail(epoch, &RequestError{Message: msgGenerateFailed, Err: err})
	}

	records := s.records(params.Prompt, generated...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.gallery.Prepend(records...)
	if s.epoch == epoch {
		s.results = dataURIs(records)
		s.selected = 0
		p := params
		s.lastParams = &p
	}

	common.WithFields(map[string]interface{}{
		"count":   len(records),
		"gallery": s.gallery.Len(),
	}).Info("Images generated")
	return records, nil
}

// Edit 调用编辑接口；只返回文本时，文本作为错误提示展示
func (s *Session) Edit(ctx context.Context, prompt string, source SourceImage) (*Image, error) {
	if isBlank(prompt) {
		return nil, ErrEmptyPrompt
	}
	if len(source.Data) == 0 {
		return nil, ErrNoSourceImage
	}
	epoch, err := s.begin()
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	result, err := s.client.EditImage(ctx, prompt, gemini.Image{Data: source.Data, MIMEType: source.MIMEType})
	if err != nil {
		common.WithError(err).WithField("prompt", utils.TruncateForLog(prompt, 80)).Error("Image edit failed")
		return nil, s.fail(epoch, &RequestError{Message: msgEditFailed, Err: err})
	}
	if result.Image == nil {
		msg := result.Text
		if msg == "" {
			msg = ErrNoEditedImage.Error()
		}
		return nil, s.fail(epoch, &RequestError{Message: msg, Err: ErrNoEditedImage})
	}

	record := s.records(prompt, *result.Image)[0]

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.gallery.Prepend(record)
	if s.epoch == epoch {
		s.results = []string{record.DataURI}
		s.selected = 0
	}

	common.WithField("gallery", s.gallery.Len()).Info("Image edited")
	return &record, nil
}

// begin 进入加载状态，已有请求在途时返回 ErrBusy
func (s *Session) begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return 0, ErrBusy
	}
	s.loading = true
	s.errMsg = ""
	s.results = nil
	s.selected = 0
	return s.epoch, nil
}

// fail 结束加载状态并记录错误提示，图库保持不变
func (s *Session) fail(epoch uint64, err *RequestError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if s.epoch == epoch {
		s.errMsg = err.Message
	}
	return err
}

func (s *Session) records(prompt string, images ...gemini.Image) []Image {
	now := s.now()
	out := make([]Image, 0, len(images))
	for _, img := range images {
		out = append(out, Image{
			ID:        s.newID(),
			DataURI:   utils.EncodeDataURI(img.MIMEType, img.Data),
			MIMEType:  img.MIMEType,
			Prompt:    prompt,
			CreatedAt: now,
		})
	}
	return out
}

func dataURIs(images []Image) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = img.DataURI
	}
	return out
}

// SelectResult 选择多张结果中要展示的一张
func (s *Session) SelectResult(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.results) {
		return fmt.Errorf("result index %d out of range", i)
	}
	s.selected = i
	return nil
}

// ToggleFavorite 切换收藏状态
func (s *Session) ToggleFavorite(id string) (Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gallery.ToggleFavorite(id)
}

// DeleteImage 从图库删除图片，调用方负责在此之前取得用户确认
func (s *Session) DeleteImage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gallery.Delete(id); err != nil {
		return err
	}
	common.WithField("id", id).Info("Image deleted from gallery")
	return nil
}

// Gallery 返回过滤后的图库
func (s *Session) Gallery(filter Filter) []Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gallery.List(filter)
}

// Image 按 ID 获取图库中的图片
func (s *Session) Image(id string) (Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.gallery.Get(id)
	if !ok {
		return Image{}, ErrImageNotFound
	}
	return img, nil
}

// ImageBytes 返回图库图片的原始数据，用于下载
func (s *Session) ImageBytes(id string) ([]byte, Image, error) {
	img, err := s.Image(id)
	if err != nil {
		return nil, Image{}, err
	}
	data, _, err := utils.DecodeDataURI(img.DataURI)
	if err != nil {
		return nil, Image{}, err
	}
	return data, img, nil
}

// SelectedImage 返回当前展示的图片（结果或源图片）
func (s *Session) SelectedImage() ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uri := s.selectedURI()
	if uri == "" {
		return nil, "", false
	}
	data, mimeType, err := utils.DecodeDataURI(uri)
	if err != nil {
		return nil, "", false
	}
	return data, mimeType, true
}

// Share 将图库中的图片上传到外部存储并返回访问链接
func (s *Session) Share(ctx context.Context, id string) (string, error) {
	if s.sharer == nil {
		return "", ErrShareUnavailable
	}
	data, img, err := s.ImageBytes(id)
	if err != nil {
		return "", err
	}
	url, err := s.sharer.Share(ctx, img.ID, img.MIMEType, data)
	if err != nil {
		common.WithError(err).WithField("id", id).Error("Failed to share image")
		return "", fmt.Errorf("failed to share image: %w", err)
	}
	return url, nil
}

// CanShare 是否启用了分享功能
func (s *Session) CanShare() bool {
	return s.sharer != nil
}

// Source 返回当前的源图片
func (s *Session) Source() (*SourceImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return nil, false
	}
	src := *s.source
	src.Data = bytes.Clone(s.source.Data)
	return &src, true
}

// Display 计算右侧展示区的状态：加载 > 错误 > 结果 > 上传 > 欢迎
func (s *Session) Display() Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display()
}

func (s *Session) display() Display {
	d := Display{
		Selected:        s.selected,
		CanClearSource:  s.mode == ModeEdit && s.source != nil,
		CanGenerateMore: s.lastParams != nil && s.mode == ModeCreate && !s.loading,
	}
	switch {
	case s.loading:
		d.Kind = DisplayLoading
	case s.errMsg != "":
		d.Kind = DisplayError
		d.Error = s.errMsg
	case s.selectedURI() != "":
		d.Kind = DisplayResult
		d.Image = s.selectedURI()
		if len(s.results) > 1 {
			d.Thumbnails = append([]string(nil), s.results...)
		}
	case s.mode == ModeEdit:
		d.Kind = DisplayUpload
	default:
		d.Kind = DisplayWelcome
	}
	return d
}

func (s *Session) selectedURI() string {
	if len(s.results) > 0 {
		if s.selected >= 0 && s.selected < len(s.results) {
			return s.results[s.selected]
		}
		return s.results[0]
	}
	if s.source != nil {
		return utils.EncodeDataURI(s.source.MIMEType, s.source.Data)
	}
	return ""
}

// Snapshot 返回会话状态副本
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Mode:           s.mode,
		Prompt:         s.prompt,
		AspectRatio:    s.aspectRatio,
		NumberOfImages: s.numberOfImages,
		HasSource:      s.source != nil,
		Results:        append([]string(nil), s.results...),
		Loading:        s.loading,
		Error:          s.errMsg,
		Display:        s.display(),
		GallerySize:    s.gallery.Len(),
	}
	if s.lastParams != nil {
		p := *s.lastParams
		snap.LastParams = &p
	}
	snap.CanSubmit = !s.loading && !isBlank(s.prompt) && !(s.mode == ModeEdit && s.source == nil)
	return snap
}

// IsRequestError 判断错误是否来自远程请求
func IsRequestError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr)
}
