package studio

import (
	"errors"
	"strings"
)

// 本地输入错误，错误文本即面向用户的提示
var (
	ErrInvalidMode        = errors.New("unknown mode")
	ErrInvalidAspectRatio = errors.New("unsupported aspect ratio")
	ErrInvalidImageCount  = errors.New("number of images must be between 1 and 4")
	ErrInvalidFilter      = errors.New("unknown gallery filter")
	ErrEmptyPrompt        = errors.New("please describe what you want to create or change")
	ErrNoSourceImage      = errors.New("upload an image before applying an edit")
	ErrNotImage           = errors.New("please select a valid image file")
	ErrUnreadableImage    = errors.New("failed to read the image file")
	ErrImageTooLarge      = errors.New("the image file is too large")
	ErrUploadNotInEdit    = errors.New("switch to edit mode to upload an image")
	ErrBusy               = errors.New("a request is already in progress")
	ErrNothingToRepeat    = errors.New("there is no previous generation to repeat")
	ErrImageNotFound      = errors.New("image not found")
	ErrShareUnavailable   = errors.New("sharing is not configured")
	ErrNoEditedImage      = errors.New("the edit did not produce an image, try a different request")
)

// 远程调用失败时展示给用户的固定提示
const (
	msgGenerateFailed = "Failed to generate image. Please check your prompt or API key."
	msgEditFailed     = "Failed to edit image. Please check your request or API key."
)

// RequestError 远程请求失败，Message 是展示给用户的文本
type RequestError struct {
	Message string
	Err     error
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error { return e.Err }

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
