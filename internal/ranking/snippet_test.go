package ranking_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vigilare/vigilare/internal/ranking"
)

func TestSnippetFindsDensestTermWindow(t *testing.T) {
	filler := strings.Repeat("lorem ipsum dolor sit amet ", 30)
	content := filler + "nginx reverse proxy configuration example for nginx load balancing" + filler

	got := ranking.Snippet(content, "", []string{"nginx"})
	assert.Contains(t, got, "<b>nginx</b>")
}

func TestSnippetBoldsTermsCaseInsensitively(t *testing.T) {
	content := "Installing Nginx is the first step before configuring NGINX further."
	got := ranking.Snippet(content, "", []string{"nginx"})
	assert.Contains(t, got, "<b>Nginx</b>")
	assert.Contains(t, got, "<b>NGINX</b>")
}

func TestSnippetFallsBackToDescriptionWhenNoTermsFound(t *testing.T) {
	got := ranking.Snippet("completely unrelated content with no matches at all", "a short description", []string{"nginx"})
	assert.Equal(t, "a short description", got)
}

func TestSnippetFallsBackToContentStartWhenNoDescriptionOrMatch(t *testing.T) {
	content := "completely unrelated content with no matches at all"
	got := ranking.Snippet(content, "", []string{"nginx"})
	assert.Equal(t, content, got)
}

func TestSnippetTruncatesLongFallbackWithEllipsis(t *testing.T) {
	content := strings.Repeat("a", 400)
	got := ranking.Snippet(content, "", []string{"nginx"})
	assert.True(t, strings.HasSuffix(got, "…"))
}
