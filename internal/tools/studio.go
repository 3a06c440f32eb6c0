package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"genai-studio/internal/studio"
	"genai-studio/internal/utils"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterStudioTools 注册图片生成、编辑与图库管理的 MCP tools
func RegisterStudioTools(s *server.MCPServer, session *studio.Session) error {
	ratios := make([]string, len(studio.AspectRatios))
	for i, r := range studio.AspectRatios {
		ratios[i] = string(r)
	}

	s.AddTool(mcp.NewTool(
		"studio_generate_image",
		mcp.WithDescription("Generate one or more images from a text prompt. Images are added to the session gallery, most recent first."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Text prompt describing the image to generate"),
		),
		mcp.WithString("aspect_ratio",
			mcp.Description("Aspect ratio of the generated images"),
			mcp.Enum(ratios...),
			mcp.DefaultString(string(studio.AspectSquare)),
		),
		mcp.WithNumber("number_of_images",
			mcp.Description("How many images to generate (1-4)"),
			mcp.Min(studio.MinImages),
			mcp.Max(studio.MaxImages),
			mcp.DefaultNumber(1),
		),
	), generateHandler(session))

	s.AddTool(mcp.NewTool(
		"studio_edit_image",
		mcp.WithDescription("Edit an image with a text instruction. Takes an image URL or data URI; the edited image is added to the session gallery."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Text describing how to edit the image"),
		),
		mcp.WithString("image_url",
			mcp.Required(),
			mcp.Description("URL or data URI of the image to edit"),
		),
	), editHandler(session))

	s.AddTool(mcp.NewTool(
		"studio_list_gallery",
		mcp.WithDescription("List the images in the session gallery, most recent first."),
		mcp.WithString("filter",
			mcp.Description("Which images to list"),
			mcp.Enum(string(studio.FilterAll), string(studio.FilterFavorites)),
			mcp.DefaultString(string(studio.FilterAll)),
		),
	), listHandler(session))

	s.AddTool(mcp.NewTool(
		"studio_toggle_favorite",
		mcp.WithDescription("Mark or unmark a gallery image as favorite."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Gallery image ID")),
	), toggleFavoriteHandler(session))

	s.AddTool(mcp.NewTool(
		"studio_delete_image",
		mcp.WithDescription("Delete a gallery image. This cannot be undone, so confirm must be true."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Gallery image ID")),
		mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true to delete the image")),
	), deleteHandler(session))

	if session.CanShare() {
		s.AddTool(mcp.NewTool(
			"studio_share_image",
			mcp.WithDescription("Upload a gallery image to object storage and return a time-limited link."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Gallery image ID")),
		), shareHandler(session))
	}

	return nil
}

// galleryEntry 图库列表中返回给调用方的字段（不含图片数据）
type galleryEntry struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Favorite  bool      `json:"favorite"`
	MIMEType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

func generateHandler(session *studio.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("prompt parameter is required: %v", err)), nil
		}

		params := studio.Params{
			Prompt:         prompt,
			AspectRatio:    studio.AspectRatio(req.GetString("aspect_ratio", string(studio.AspectSquare))),
			NumberOfImages: req.GetInt("number_of_images", 1),
		}
		images, err := session.Generate(ctx, params)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return imagesResult(fmt.Sprintf("Generated %d image(s)", len(images)), images), nil
	}
}

func editHandler(session *studio.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("prompt parameter is required: %v", err)), nil
		}
		imageURL, err := req.RequireString("image_url")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image_url parameter is required: %v", err)), nil
		}

		data, mimeType, err := fetchImage(ctx, imageURL)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load image: %v", err)), nil
		}
		source, err := session.ReadSource(sourceName(imageURL), mimeType, bytes.NewReader(data))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		image, err := session.Edit(ctx, prompt, *source)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return imagesResult("Edited image", []studio.Image{*image}), nil
	}
}

func listHandler(session *studio.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter, err := studio.ParseFilter(req.GetString("filter", string(studio.FilterAll)))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		images := session.Gallery(filter)
		entries := make([]galleryEntry, 0, len(images))
		for _, img := range images {
			entries = append(entries, galleryEntry{
				ID:        img.ID,
				Prompt:    img.Prompt,
				Favorite:  img.Favorite,
				MIMEType:  img.MIMEType,
				CreatedAt: img.CreatedAt,
			})
		}

		body, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to encode gallery: %w", err)
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func toggleFavoriteHandler(session *studio.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("id parameter is required: %v", err)), nil
		}

		image, err := session.ToggleFavorite(id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Image %s favorite: %t", image.ID, image.Favorite)), nil
	}
}

func deleteHandler(session *studio.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("id parameter is required: %v", err)), nil
		}
		if !req.GetBool("confirm", false) {
			return mcp.NewToolResultError("deletion not confirmed: set confirm to true to delete the image"), nil
		}

		if err := session.DeleteImage(id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Deleted image %s", id)), nil
	}
}

func shareHandler(session *studio.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("id parameter is required: %v", err)), nil
		}

		url, err := session.Share(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Shared image: %s", url)), nil
	}
}

// imagesResult 返回说明文本及每张图片的内容
func imagesResult(summary string, images []studio.Image) *mcp.CallToolResult {
	lines := []string{summary}
	content := make([]mcp.Content, 0, len(images)+1)
	for _, img := range images {
		lines = append(lines, fmt.Sprintf("- %s", img.ID))
	}
	content = append(content, mcp.NewTextContent(strings.Join(lines, "\n")))

	for _, img := range images {
		data, mimeType, err := utils.DecodeDataURI(img.DataURI)
		if err != nil {
			continue
		}
		content = append(content, mcp.NewImageContent(base64.StdEncoding.EncodeToString(data), mimeType))
	}
	return &mcp.CallToolResult{Content: content}
}

// fetchImage 从 data URI 或 http(s) URL 读取图片
func fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	if strings.HasPrefix(imageURL, "data:") {
		return utils.DecodeDataURI(imageURL)
	}
	if strings.HasPrefix(imageURL, "http://") || strings.HasPrefix(imageURL, "https://") {
		return utils.DownloadImageFromURL(ctx, imageURL)
	}
	return nil, "", fmt.Errorf("unsupported image location: %s", utils.TruncateForLog(imageURL, 64))
}

func sourceName(imageURL string) string {
	if strings.HasPrefix(imageURL, "data:") {
		return "inline"
	}
	return path.Base(imageURL)
}
