package filesummarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concierge/orchestrator/pkg/models"
)

func TestChunkText_AssignsSequentialIDsAndMatchingOffsets(t *testing.T) {
	para := strings.Repeat("word ", 100) // ~500 chars
	text := strings.Join([]string{para, para, para, para, para}, "\n\n")

	chunks := chunkText(text, 500, 50, models.DocumentStructure{})
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		require.Equal(t, i, c.ChunkID)
		require.Equal(t, c.EndChar-c.StartChar, len(c.Text))
	}
}

func TestChunkText_EmptyInputYieldsNoChunks(t *testing.T) {
	chunks := chunkText("", 2000, 200, models.DocumentStructure{})
	require.Empty(t, chunks)
}

func TestChunkText_EstimatesPageFromStructure(t *testing.T) {
	text := strings.Repeat("a", 9000)
	structure := models.DocumentStructure{TotalChars: 9000, TotalPages: 3}
	chunks := chunkText(text, 2000, 0, structure)
	require.NotEmpty(t, chunks)
	require.GreaterOrEqual(t, chunks[0].EstimatedPage, 1)
	last := chunks[len(chunks)-1]
	require.LessOrEqual(t, last.EstimatedPage, 3)
}

func TestDetectType(t *testing.T) {
	require.Equal(t, "pdf", detectType("report.PDF"))
	require.Equal(t, "md", detectType("notes.md"))
	require.Equal(t, "", detectType("noextension"))
}

func TestExtractText_HTMLStripsTagsAndCollapsesWhitespace(t *testing.T) {
	text, structure, err := extractText([]byte("<html><body><p>Hello   world</p>\n\n<p>Bye</p></body></html>"), "html")
	require.NoError(t, err)
	require.Equal(t, "Hello world Bye", text)
	require.Equal(t, len(text), structure.TotalChars)
}

func TestExtractText_JSONPrettyPrintsAndRecordsTopLevelKeys(t *testing.T) {
	text, structure, err := extractText([]byte(`{"a":1,"b":2}`), "json")
	require.NoError(t, err)
	require.Contains(t, text, "\"a\": 1")
	require.ElementsMatch(t, []string{"a", "b"}, structure.TopLevelKeys)
}

func TestExtractText_UnsupportedTypeErrors(t *testing.T) {
	_, _, err := extractText([]byte("whatever"), "exe")
	require.Error(t, err)
}
