package studio

import (
	"fmt"
	"time"
)

// Mode 工作模式：创建或编辑
type Mode string

const (
	ModeCreate Mode = "CREATE"
	ModeEdit   Mode = "EDIT"
)

// ParseMode 解析模式字符串（不区分大小写）
func ParseMode(s string) (Mode, error) {
	switch Mode(upper(s)) {
	case ModeCreate:
		return ModeCreate, nil
	case ModeEdit:
		return ModeEdit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// AspectRatio 生成图片的宽高比
type AspectRatio string

const (
	AspectSquare        AspectRatio = "1:1"
	AspectPortrait      AspectRatio = "3:4"
	AspectLandscape     AspectRatio = "4:3"
	AspectTallPortrait  AspectRatio = "9:16"
	AspectWideLandscape AspectRatio = "16:9"
)

// AspectRatios 按界面显示顺序列出支持的宽高比
var AspectRatios = []AspectRatio{AspectSquare, AspectPortrait, AspectLandscape, AspectTallPortrait, AspectWideLandscape}

// ParseAspectRatio 校验宽高比
func ParseAspectRatio(s string) (AspectRatio, error) {
	for _, r := range AspectRatios {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAspectRatio, s)
}

const (
	MinImages = 1
	MaxImages = 4
)

// Params 一次生成请求的参数
type Params struct {
	Prompt         string      `json:"prompt"`
	AspectRatio    AspectRatio `json:"aspect_ratio"`
	NumberOfImages int         `json:"number_of_images"`
}

// Validate 校验生成参数
func (p Params) Validate() error {
	if isBlank(p.Prompt) {
		return ErrEmptyPrompt
	}
	if _, err := ParseAspectRatio(string(p.AspectRatio)); err != nil {
		return err
	}
	if p.NumberOfImages < MinImages || p.NumberOfImages > MaxImages {
		return fmt.Errorf("%w: %d", ErrInvalidImageCount, p.NumberOfImages)
	}
	return nil
}

// SourceImage 编辑模式下待编辑的源图片
type SourceImage struct {
	Name     string
	Data     []byte
	MIMEType string
}

// Image 图库中的一条图片记录
type Image struct {
	ID        string    `json:"id"`
	DataURI   string    `json:"data_uri"`
	MIMEType  string    `json:"mime_type"`
	Prompt    string    `json:"prompt"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter 图库过滤条件
type Filter string

const (
	FilterAll       Filter = "all"
	FilterFavorites Filter = "favorites"
)

// ParseFilter 解析过滤条件，空串视为 all
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterFavorites:
		return FilterFavorites, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFilter, s)
}

// DisplayKind 右侧展示区的状态
type DisplayKind string

const (
	DisplayLoading DisplayKind = "loading"
	DisplayError   DisplayKind = "error"
	DisplayResult  DisplayKind = "result"
	DisplayUpload  DisplayKind = "upload"
	DisplayWelcome DisplayKind = "welcome"
)

// Display 右侧展示区的渲染数据，同一时刻只有一种状态生效
type Display struct {
	Kind            DisplayKind `json:"kind"`
	Error           string      `json:"error,omitempty"`
	Image           string      `json:"image,omitempty"`
	Thumbnails      []string    `json:"thumbnails,omitempty"`
	Selected        int         `json:"selected"`
	CanClearSource  bool        `json:"can_clear_source"`
	CanGenerateMore bool        `json:"can_generate_more"`
}

// Snapshot 会话状态的只读副本
type Snapshot struct {
	Mode           Mode        `json:"mode"`
	Prompt         string      `json:"prompt"`
	AspectRatio    AspectRatio `json:"aspect_ratio"`
	NumberOfImages int         `json:"number_of_images"`
	LastParams     *Params     `json:"last_params,omitempty"`
	HasSource      bool        `json:"has_source"`
	Results        []string    `json:"results,omitempty"`
	Loading        bool        `json:"loading"`
	Error          string      `json:"error,omitempty"`
	CanSubmit      bool        `json:"can_submit"`
	Display        Display     `json:"display"`
	GallerySize    int         `json:"gallery_size"`
}
