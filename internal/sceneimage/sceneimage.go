// Package sceneimage builds references to generated scene illustrations.
package sceneimage

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/random"
)

const (
	baseURL = "https://image.pollinations.ai/prompt/"
	// StyleSuffix keeps every scene in the same black and white look.
	StyleSuffix = " film noir style, black and white photography, high contrast, grainy"
	// DefaultPrompt is used when the game master forgot to describe the scene.
	DefaultPrompt = "dark noir mystery scene shadows rain"
	// PlaceholderPath is shown by the browser when the image generator fails.
	PlaceholderPath = "/static/placeholder.svg"
	maxSeed         = 1_000_000
)

// URL returns the image reference for prompt. The seed makes repeated prompts render different pictures.
func URL(prompt string, seed int64) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return fmt.Sprintf("%s%s?width=1024&height=1024&nologo=true&model=flux&seed=%d",
		baseURL, url.PathEscape(prompt+StyleSuffix), seed)
}

// RandomURL returns the image reference for prompt with a random seed in [0, 1000000).
func RandomURL(prompt string) (string, error) {
	seed, err := random.Intn(maxSeed)
	if err != nil {
		return "", errors.Wrap(err, "random seed")
	}
	return URL(prompt, seed), nil
}
