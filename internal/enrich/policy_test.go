package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrich/internal/model"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, 0.7, p.ScoreLimit)
	assert.Equal(t, model.ConfidenceMedium, p.Threshold())
	assert.True(t, p.IsFreeMail("gmail.com"))
	assert.True(t, p.IsFreeMail("GMAIL.COM"))
	assert.True(t, p.IsFreeMail("hotmail.co.uk"))
	assert.False(t, p.IsFreeMail("acme.com"))
}

func TestLoadPolicy(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		path := writePolicy(t, `
match:
  score_limit: 0.85
  fetch_threshold: high
  free_mail_domains:
    - gmail.com
    - example-webmail.test
`)
		p, err := LoadPolicy(path)
		require.NoError(t, err)

		assert.Equal(t, 0.85, p.ScoreLimit)
		assert.Equal(t, model.ConfidenceHigh, p.Threshold())
		assert.True(t, p.IsFreeMail("example-webmail.test"))
		// Custom list replaces the built-in one.
		assert.False(t, p.IsFreeMail("yahoo.com"))
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := writePolicy(t, "match: {}\n")
		p, err := LoadPolicy(path)
		require.NoError(t, err)

		assert.Equal(t, 0.7, p.ScoreLimit)
		assert.Equal(t, model.ConfidenceMedium, p.Threshold())
		assert.True(t, p.IsFreeMail("gmail.com"))
	})

	t.Run("bad threshold", func(t *testing.T) {
		path := writePolicy(t, "match:\n  fetch_threshold: very_high\n")
		_, err := LoadPolicy(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
