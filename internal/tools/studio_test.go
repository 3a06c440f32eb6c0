package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"genai-studio/internal/genai/gemini"
	"genai-studio/internal/studio"
	"genai-studio/internal/utils"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00\x90w\x53\xde")

type stubClient struct {
	edit    *gemini.EditResult
	err     error
	prompts []string
}

func (c *stubClient) GenerateImages(ctx context.Context, prompt string, aspectRatio string, n int) ([]gemini.Image, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return nil, c.err
	}
	out := make([]gemini.Image, n)
	for i := range out {
		out[i] = gemini.Image{Data: []byte(fmt.Sprintf("jpeg-%d", i)), MIMEType: "image/jpeg"}
	}
	return out, nil
}

func (c *stubClient) EditImage(ctx context.Context, prompt string, source gemini.Image) (*gemini.EditResult, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return nil, c.err
	}
	return c.edit, nil
}

type stubSharer struct{}

func (stubSharer) Share(ctx context.Context, id string, mimeType string, data []byte) (string, error) {
	return "https://cdn.example/" + id, nil
}

func newSession(client gemini.GenimiIface, opts ...studio.Option) *studio.Session {
	n := 0
	opts = append([]studio.Option{studio.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("img-%d", n)
	})}, opts...)
	return studio.NewSession(client, opts...)
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "first content should be text")
	return text.Text
}

func TestGenerateHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("returns generated images", func(t *testing.T) {
		client := &stubClient{}
		session := newSession(client)

		res, err := generateHandler(session)(ctx, callRequest(map[string]any{
			"prompt":           "a red fox",
			"aspect_ratio":     "16:9",
			"number_of_images": float64(2),
		}))
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, "Generated 2 image(s)\n- img-1\n- img-2", resultText(t, res))
		require.Len(t, res.Content, 3)

		img, ok := res.Content[1].(mcp.ImageContent)
		require.True(t, ok)
		assert.Equal(t, "image/jpeg", img.MIMEType)
		assert.Equal(t, 2, len(session.Gallery(studio.FilterAll)))
	})

	t.Run("missing prompt", func(t *testing.T) {
		res, err := generateHandler(newSession(&stubClient{}))(ctx, callRequest(map[string]any{}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("invalid aspect ratio", func(t *testing.T) {
		client := &stubClient{}
		res, err := generateHandler(newSession(client))(ctx, callRequest(map[string]any{
			"prompt":       "a red fox",
			"aspect_ratio": "2:1",
		}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Empty(t, client.prompts)
	})

	t.Run("remote failure", func(t *testing.T) {
		client := &stubClient{err: fmt.Errorf("quota exceeded")}
		res, err := generateHandler(newSession(client))(ctx, callRequest(map[string]any{"prompt": "a red fox"}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.NotContains(t, resultText(t, res), "quota")
	})
}

func TestEditHandler(t *testing.T) {
	ctx := context.Background()
	source := utils.EncodeDataURI("image/png", pngHeader)

	t.Run("edits a data URI", func(t *testing.T) {
		client := &stubClient{edit: &gemini.EditResult{Image: &gemini.Image{Data: pngHeader, MIMEType: "image/png"}}}
		session := newSession(client)

		res, err := editHandler(session)(ctx, callRequest(map[string]any{
			"prompt":    "make it blue",
			"image_url": source,
		}))
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, "Edited image\n- img-1", resultText(t, res))
		assert.Equal(t, []string{"make it blue"}, client.prompts)
	})

	t.Run("text only response", func(t *testing.T) {
		client := &stubClient{edit: &gemini.EditResult{Text: "I cannot edit this image."}}
		res, err := editHandler(newSession(client))(ctx, callRequest(map[string]any{
			"prompt":    "make it blue",
			"image_url": source,
		}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Equal(t, "I cannot edit this image.", resultText(t, res))
	})

	t.Run("unsupported location", func(t *testing.T) {
		client := &stubClient{}
		res, err := editHandler(newSession(client))(ctx, callRequest(map[string]any{
			"prompt":    "make it blue",
			"image_url": "/tmp/cat.png",
		}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Empty(t, client.prompts)
	})

	t.Run("not an image", func(t *testing.T) {
		client := &stubClient{}
		res, err := editHandler(newSession(client))(ctx, callRequest(map[string]any{
			"prompt":    "make it blue",
			"image_url": utils.EncodeDataURI("text/plain", []byte("hello")),
		}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Empty(t, client.prompts)
	})
}

func TestGalleryHandlers(t *testing.T) {
	ctx := context.Background()
	session := newSession(&stubClient{})
	_, err := session.Generate(ctx, studio.Params{Prompt: "owl", AspectRatio: studio.AspectSquare, NumberOfImages: 2})
	require.NoError(t, err)

	res, err := toggleFavoriteHandler(session)(ctx, callRequest(map[string]any{"id": "img-2"}))
	require.NoError(t, err)
	assert.Equal(t, "Image img-2 favorite: true", resultText(t, res))

	res, err = listHandler(session)(ctx, callRequest(map[string]any{"filter": "favorites"}))
	require.NoError(t, err)
	var entries []galleryEntry
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "img-2", entries[0].ID)
	assert.Equal(t, "owl", entries[0].Prompt)

	res, err = listHandler(session)(ctx, callRequest(map[string]any{"filter": "recent"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = deleteHandler(session)(ctx, callRequest(map[string]any{"id": "img-1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "delete without confirmation is refused")
	assert.Len(t, session.Gallery(studio.FilterAll), 2)

	res, err = deleteHandler(session)(ctx, callRequest(map[string]any{"id": "img-1", "confirm": true}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Len(t, session.Gallery(studio.FilterAll), 1)

	res, err = toggleFavoriteHandler(session)(ctx, callRequest(map[string]any{"id": "img-1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestShareHandler(t *testing.T) {
	ctx := context.Background()
	session := newSession(&stubClient{}, studio.WithSharer(stubSharer{}))
	_, err := session.Generate(ctx, studio.Params{Prompt: "owl", AspectRatio: studio.AspectSquare, NumberOfImages: 1})
	require.NoError(t, err)

	res, err := shareHandler(session)(ctx, callRequest(map[string]any{"id": "img-1"}))
	require.NoError(t, err)
	assert.Equal(t, "Shared image: https://cdn.example/img-1", resultText(t, res))

	res, err = shareHandler(session)(ctx, callRequest(map[string]any{"id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRegisterStudioTools(t *testing.T) {
	s := server.NewMCPServer("test", "0.0.0", server.WithToolCapabilities(true))
	assert.NoError(t, RegisterStudioTools(s, newSession(&stubClient{})))
}
