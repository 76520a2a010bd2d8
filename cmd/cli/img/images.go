package img

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"os"
	"strings"

	"github.com/myrjola/noir/internal/sceneimage"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "img",
	Title: "Scene images",
}

func init() {
	Generate.Flags().String("out", "./out.png", "path to generated image file")
	URL.Flags().Int64("seed", -1, "image seed, negative picks a random one")
}

// URL prints the scene image reference the game would show for the prompt.
var URL = &cobra.Command{
	Use:     "url [prompt]",
	GroupID: "img",
	Short:   "Print scene image URL",
	Long:    `Prints the generated scene image URL for a visual prompt in the house noir style`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := cmd.Flags().GetInt64("seed")
		if err != nil {
			return fmt.Errorf("invalid seed flag: %w", err)
		}
		prompt := strings.Join(args, " ")
		var imageURL string
		if seed < 0 {
			if imageURL, err = sceneimage.RandomURL(prompt); err != nil {
				return fmt.Errorf("random scene image: %w", err)
			}
		} else {
			imageURL = sceneimage.URL(prompt, seed)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), imageURL)
		return err
	},
}

// Generate renders a scene with DALL-E for artwork that should not depend on the free image service.
var Generate = &cobra.Command{
	Use:     "gen [prompt]",
	GroupID: "img",
	Short:   "Generate image",
	Long:    `Generates a noir scene image with Dall-E`,
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := openai.NewClient(os.Getenv("OPENAI_API_KEY"))

		ctx := context.Background()

		prompt := strings.Join(args, " ") + sceneimage.StyleSuffix

		request := openai.ImageRequest{ //nolint:exhaustruct // defaults are fine
			Model:          openai.CreateImageModelDallE3,
			Prompt:         prompt,
			Size:           openai.CreateImageSize1024x1024,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
			N:              1,
		}

		response, err := c.CreateImage(ctx, request)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Image creation error: %v\n", err)
			return
		}

		imgBytes, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Base64 decode error: %v\n", err)
			return
		}

		r := bytes.NewReader(imgBytes)
		imgData, err := png.Decode(r)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "PNG decode error: %v\n", err)
			return
		}

		outPath, err := cmd.Flags().GetString("out")
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "invalid out flag: %v\n", err)
			return
		}
		file, err := os.Create(outPath)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "File creation error: %v\n", err)
			return
		}
		defer func(file *os.File) {
			_ = file.Close()
		}(file)

		if err = png.Encode(file, imgData); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "PNG encode error: %v\n", err)
			return
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "The image was saved as %s\n", outPath)
	},
}
