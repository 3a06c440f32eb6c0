package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"genai-studio/internal/studio"
	"genai-studio/internal/utils"

	"github.com/spf13/cobra"
)

var (
	genAspectRatio string
	genCount       int
	genOutput      string

	editImage  string
	editOutput string
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate images from a prompt and write them to disk",
	Long: `Generate one to four images from a text prompt.

Examples:
  genai-studio generate "a lighthouse at dusk"
  genai-studio generate "a lighthouse at dusk" --aspect-ratio 16:9 --count 4 --output ./out`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

var editCmd = &cobra.Command{
	Use:   "edit <prompt>",
	Short: "Edit an image with a text instruction and write the result to disk",
	Long: `Edit a local image file or an image URL with a text instruction.

Examples:
  genai-studio edit "add a party hat to the cat" --image cat.png
  genai-studio edit "make it night" --image https://example.com/city.jpg --output ./out`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(editCmd)

	generateCmd.Flags().StringVar(&genAspectRatio, "aspect-ratio", string(studio.AspectSquare), "Aspect ratio: 1:1, 3:4, 4:3, 9:16, 16:9")
	generateCmd.Flags().IntVar(&genCount, "count", 1, "Number of images to generate (1-4)")
	generateCmd.Flags().StringVar(&genOutput, "output", ".", "Output directory")

	editCmd.Flags().StringVar(&editImage, "image", "", "Path or URL of the image to edit")
	editCmd.Flags().StringVar(&editOutput, "output", ".", "Output directory")
	_ = editCmd.MarkFlagRequired("image")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	params := studio.Params{
		Prompt:         strings.Join(args, " "),
		AspectRatio:    studio.AspectRatio(genAspectRatio),
		NumberOfImages: genCount,
	}
	if err := params.Validate(); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	images, err := a.session.Generate(cmd.Context(), params)
	if err != nil {
		return failure(err)
	}
	return writeImages(cmd, genOutput, images)
}

func runEdit(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	source, err := loadSource(cmd, a.session, editImage)
	if err != nil {
		return err
	}

	image, err := a.session.Edit(cmd.Context(), prompt, *source)
	if err != nil {
		return failure(err)
	}
	return writeImages(cmd, editOutput, []studio.Image{*image})
}

// loadSource 从本地文件或 URL 读取源图片
func loadSource(cmd *cobra.Command, session *studio.Session, location string) (*studio.SourceImage, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		data, mimeType, err := utils.DownloadImageFromURL(cmd.Context(), location)
		if err != nil {
			return nil, fmt.Errorf("failed to download image: %w", err)
		}
		return session.ReadSource(filepath.Base(location), mimeType, bytes.NewReader(data))
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return session.ReadSource(filepath.Base(location), "", f)
}

// failure 远程失败时附带原始错误，便于命令行排查
func failure(err error) error {
	var reqErr *studio.RequestError
	if errors.As(err, &reqErr) && reqErr.Err != nil {
		return fmt.Errorf("%s: %w", reqErr.Message, reqErr.Err)
	}
	return err
}

func writeImages(cmd *cobra.Command, dir string, images []studio.Image) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	now := time.Now()
	for _, img := range images {
		data, mimeType, err := utils.DecodeDataURI(img.DataURI)
		if err != nil {
			return fmt.Errorf("failed to decode image %s: %w", img.ID, err)
		}
		path := filepath.Join(dir, utils.GenerateImageFileName(img.ID, mimeType, now))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write image: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}
