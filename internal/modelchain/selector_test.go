package modelchain

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	quick := s.ChainFor(ModeQuick)
	require.NotEmpty(t, quick)
	assert.Equal(t, "google/gemini-2.0-flash-001", quick[0])

	assert.NotEmpty(t, s.ChainFor(ModeNormal))
	assert.NotEmpty(t, s.ChainFor(ModeThinking))
	assert.Len(t, s.VisionChain(), 2)
	assert.Equal(t, 2*time.Minute, s.GlobalMax())
}

func TestLoad_FileOverridesMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	content := `
modes:
  quick:
    primary: openai/gpt-4o-mini
    fallbacks:
      - google/gemini-2.0-flash-001
    timeout: 10s
global_max: 90s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"openai/gpt-4o-mini", "google/gemini-2.0-flash-001"}, s.ChainFor(ModeQuick))
	assert.Equal(t, 10*time.Second, s.TimeoutFor(ModeQuick))
	assert.Equal(t, 90*time.Second, s.GlobalMax())

	// Untouched modes keep defaults.
	assert.Equal(t, "deepseek/deepseek-r1", s.ChainFor(ModeThinking)[0])
}

func TestLoad_RejectsEmptyPrimary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("modes:\n  quick:\n    timeout: 5s\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestChainFor_UnknownModeFallsBackToNormal(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, s.ChainFor(ModeNormal), s.ChainFor(Mode("weird")))
	assert.Equal(t, s.TimeoutFor(ModeNormal), s.TimeoutFor(Mode("weird")))
}

func TestChainFor_ReturnsCopy(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	first := s.ChainFor(ModeQuick)
	first[0] = "mutated"
	assert.NotEqual(t, "mutated", s.ChainFor(ModeQuick)[0])
}
