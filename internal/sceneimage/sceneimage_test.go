package sceneimage_test

import (
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/myrjola/noir/internal/sceneimage"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	got := sceneimage.URL("a wet pier at night", 42)
	require.Equal(t, "https://image.pollinations.ai/prompt/"+
		"a%20wet%20pier%20at%20night%20film%20noir%20style%2C%20black%20and%20white%20photography%2C%20"+
		"high%20contrast%2C%20grainy?width=1024&height=1024&nologo=true&model=flux&seed=42", got)

	u, err := url.Parse(sceneimage.URL("  ", 7))
	require.NoError(t, err)
	require.Equal(t, "/prompt/"+sceneimage.DefaultPrompt+sceneimage.StyleSuffix, u.Path)
	require.Equal(t, "7", u.Query().Get("seed"))
}

func TestRandomURL(t *testing.T) {
	for range 20 {
		got, err := sceneimage.RandomURL("smoke")
		require.NoError(t, err)
		u, err := url.Parse(got)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(u.Path, "/prompt/smoke"))
		seed, err := strconv.Atoi(u.Query().Get("seed"))
		require.NoError(t, err)
		require.GreaterOrEqual(t, seed, 0)
		require.Less(t, seed, 1_000_000)
	}
}
