package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeModels 记录请求并返回预设响应
type fakeModels struct {
	imagesResp  *genai.GenerateImagesResponse
	contentResp *genai.GenerateContentResponse
	err         error

	gotModel    string
	gotPrompt   string
	gotImages   *genai.GenerateImagesConfig
	gotContents []*genai.Content
	gotContent  *genai.GenerateContentConfig
	hadDeadline bool
}

func (f *fakeModels) GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	_, f.hadDeadline = ctx.Deadline()
	f.gotModel, f.gotPrompt, f.gotImages = model, prompt, config
	return f.imagesResp, f.err
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	_, f.hadDeadline = ctx.Deadline()
	f.gotModel, f.gotContents, f.gotContent = model, contents, config
	return f.contentResp, f.err
}

func newTestClient(t *testing.T, models *fakeModels) *Client {
	t.Helper()
	c, err := newClient(models, Config{
		GenerateModelName: "imagen-test",
		EditModelName:     "gemini-image-test",
		Timeout:           time.Second,
	})
	require.NoError(t, err)
	return c
}

func generatedImage(data string, mimeType string) *genai.GeneratedImage {
	return &genai.GeneratedImage{Image: &genai.Image{ImageBytes: []byte(data), MIMEType: mimeType}}
}

func TestNewClientRequiresModels(t *testing.T) {
	_, err := newClient(&fakeModels{}, Config{GenerateModelName: "imagen-test"})
	assert.Error(t, err)

	_, err = NewClient(Config{})
	assert.Error(t, err)
}

func TestGenerateImages(t *testing.T) {
	ctx := context.Background()

	t.Run("maps every image in order", func(t *testing.T) {
		models := &fakeModels{imagesResp: &genai.GenerateImagesResponse{
			GeneratedImages: []*genai.GeneratedImage{
				generatedImage("first", "image/jpeg"),
				generatedImage("second", ""),
			},
		}}
		c := newTestClient(t, models)

		images, err := c.GenerateImages(ctx, "a horse on an island", "16:9", 2)
		require.NoError(t, err)
		require.Len(t, images, 2)
		assert.Equal(t, "first", string(images[0].Data))
		assert.Equal(t, "second", string(images[1].Data))
		assert.Equal(t, "image/jpeg", images[1].MIMEType)

		assert.Equal(t, "imagen-test", models.gotModel)
		assert.Equal(t, "a horse on an island", models.gotPrompt)
		assert.Equal(t, int32(2), models.gotImages.NumberOfImages)
		assert.Equal(t, "16:9", models.gotImages.AspectRatio)
		assert.Equal(t, "image/jpeg", models.gotImages.OutputMIMEType)
		assert.True(t, models.hadDeadline)
	})

	t.Run("empty response", func(t *testing.T) {
		c := newTestClient(t, &fakeModels{imagesResp: &genai.GenerateImagesResponse{}})
		_, err := c.GenerateImages(ctx, "p", "1:1", 1)
		assert.ErrorIs(t, err, ErrNoImageGenerated)
	})

	t.Run("filtered images carry the reason", func(t *testing.T) {
		c := newTestClient(t, &fakeModels{imagesResp: &genai.GenerateImagesResponse{
			GeneratedImages: []*genai.GeneratedImage{{RAIFilteredReason: "blocked by safety filter"}},
		}})
		_, err := c.GenerateImages(ctx, "p", "1:1", 1)
		assert.ErrorIs(t, err, ErrNoImageGenerated)
		assert.Contains(t, err.Error(), "blocked by safety filter")
	})

	t.Run("transport error is wrapped", func(t *testing.T) {
		boom := errors.New("quota exceeded")
		c := newTestClient(t, &fakeModels{err: boom})
		_, err := c.GenerateImages(ctx, "p", "1:1", 1)
		assert.ErrorIs(t, err, boom)
	})
}

func TestEditImage(t *testing.T) {
	ctx := context.Background()
	source := Image{Data: []byte("source"), MIMEType: "image/png"}

	contentResp := func(parts ...*genai.Part) *genai.GenerateContentResponse {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
		}
	}

	t.Run("sends source then prompt with image and text modalities", func(t *testing.T) {
		models := &fakeModels{contentResp: contentResp(
			&genai.Part{Text: "Here is your cat"},
			&genai.Part{InlineData: &genai.Blob{Data: []byte("edited"), MIMEType: "image/png"}},
		)}
		c := newTestClient(t, models)

		result, err := c.EditImage(ctx, "add a party hat", source)
		require.NoError(t, err)
		require.NotNil(t, result.Image)
		assert.Equal(t, "edited", string(result.Image.Data))
		assert.Equal(t, "Here is your cat", result.Text)

		assert.Equal(t, "gemini-image-test", models.gotModel)
		require.Len(t, models.gotContents, 1)
		parts := models.gotContents[0].Parts
		require.Len(t, parts, 2)
		assert.Equal(t, []byte("source"), parts[0].InlineData.Data)
		assert.Equal(t, "add a party hat", parts[1].Text)
		assert.Equal(t, []string{"IMAGE", "TEXT"}, models.gotContent.ResponseModalities)
		assert.True(t, models.hadDeadline)
	})

	t.Run("text only", func(t *testing.T) {
		c := newTestClient(t, &fakeModels{contentResp: contentResp(&genai.Part{Text: "I cannot edit this image"})})
		result, err := c.EditImage(ctx, "p", source)
		require.NoError(t, err)
		assert.Nil(t, result.Image)
		assert.Equal(t, "I cannot edit this image", result.Text)
	})

	t.Run("missing mime type defaults to png", func(t *testing.T) {
		c := newTestClient(t, &fakeModels{contentResp: contentResp(&genai.Part{InlineData: &genai.Blob{Data: []byte("x")}})})
		result, err := c.EditImage(ctx, "p", source)
		require.NoError(t, err)
		assert.Equal(t, "image/png", result.Image.MIMEType)
	})

	t.Run("neither image nor text", func(t *testing.T) {
		c := newTestClient(t, &fakeModels{contentResp: contentResp(&genai.Part{Text: "  "})})
		_, err := c.EditImage(ctx, "p", source)
		assert.ErrorIs(t, err, ErrEmptyEdit)
	})

	t.Run("no candidates", func(t *testing.T) {
		c := newTestClient(t, &fakeModels{contentResp: &genai.GenerateContentResponse{}})
		_, err := c.EditImage(ctx, "p", source)
		assert.ErrorIs(t, err, ErrEmptyEdit)
	})
}
