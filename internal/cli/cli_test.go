package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"genai-studio/common"
	"genai-studio/internal/studio"
	"genai-studio/internal/utils"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00\x90w\x53\xde")

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "AIza****wxyz", maskAPIKey("AIzaSyD-0123456789wxyz"))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "mcp", "generate", "edit"} {
		assert.True(t, names[want], "missing command %s", want)
	}
	assert.NotNil(t, editCmd.Flags().Lookup("image"))
}

func TestFailure(t *testing.T) {
	cause := errors.New("401 unauthorized")
	err := failure(&studio.RequestError{Message: "Failed to generate image.", Err: cause})
	assert.EqualError(t, err, "Failed to generate image.: 401 unauthorized")
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, studio.ErrEmptyPrompt, failure(studio.ErrEmptyPrompt))
}

func TestWriteImages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	cmd := &cobra.Command{}
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)

	images := []studio.Image{
		{ID: "img-1", DataURI: utils.EncodeDataURI("image/jpeg", []byte("jpeg-0"))},
		{ID: "img-2", DataURI: utils.EncodeDataURI("image/png", pngHeader)},
	}
	require.NoError(t, writeImages(cmd, dir, images))

	paths := strings.Fields(stdout.String())
	require.Len(t, paths, 2)
	assert.True(t, strings.HasSuffix(paths[0], ".jpg"))
	assert.True(t, strings.HasSuffix(paths[1], ".png"))

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-0"), data)

	err = writeImages(cmd, dir, []studio.Image{{ID: "bad", DataURI: "not-a-data-uri"}})
	assert.ErrorIs(t, err, utils.ErrInvalidDataURI)
}

func TestLoadSource(t *testing.T) {
	session := studio.NewSession(nil, studio.WithMaxUploadBytes(1<<10))
	cmd := &cobra.Command{}

	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0644))

	src, err := loadSource(cmd, session, path)
	require.NoError(t, err)
	assert.Equal(t, "cat.png", src.Name)
	assert.Equal(t, "image/png", src.MIMEType)

	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("plain text"), 0644))
	_, err = loadSource(cmd, session, txt)
	assert.ErrorIs(t, err, studio.ErrNotImage)

	_, err = loadSource(cmd, session, filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestStdioStartupKeepsStdoutClean(t *testing.T) {
	t.Setenv("GENAI_API_KEY", "abcd-test-key-ijkl")
	t.Setenv("LOG_OUTPUT", "")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OSS_BUCKET", "")

	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w

	a, appErr := newApp(common.ReserveStdout())

	os.Stdout = stdout
	require.NoError(t, w.Close())
	captured, err := io.ReadAll(r)
	require.NoError(t, err)

	require.NoError(t, appErr)
	defer a.Close()
	assert.Equal(t, "stderr", a.config.LogOutput)
	assert.Empty(t, string(captured), "stdout is reserved for the stdio transport")
}
