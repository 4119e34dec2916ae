package filesummarizer

import (
	"strings"
	"unicode/utf8"

	"github.com/concierge/orchestrator/pkg/models"
)

var splitSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// chunkText splits text into overlapping chunks using the same
// recursive-separator strategy as the rest of the pack's RAG pipeline,
// annotating each piece with its character offsets and (if the
// document structure carries a page count) an estimated page number.
func chunkText(text string, chunkSize, overlap int, structure models.DocumentStructure) []models.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	if overlap < 0 {
		overlap = 0
	}

	pieces := recursiveSplit(text, splitSeparators, chunkSize, overlap)

	chunks := make([]models.Chunk, 0, len(pieces))
	searchFrom := 0
	for i, piece := range pieces {
		start := strings.Index(text[searchFrom:], piece)
		if start < 0 {
			start = searchFrom
		} else {
			start += searchFrom
		}
		end := start + len(piece)
		c := models.Chunk{
			ChunkID:   i,
			Text:      piece,
			Length:    utf8.RuneCountInString(piece),
			StartChar: start,
			EndChar:   end,
		}
		if structure.TotalPages > 0 && structure.TotalChars > 0 {
			charsPerPage := float64(structure.TotalChars) / float64(structure.TotalPages)
			if charsPerPage > 0 {
				c.EstimatedPage = int(float64(start)/charsPerPage) + 1
			}
		}
		chunks = append(chunks, c)
		searchFrom = end - overlap
		if searchFrom < 0 || searchFrom > len(text) {
			searchFrom = end
		}
	}
	return chunks
}

func recursiveSplit(text string, separators []string, chunkSize, overlap int) []string {
	if utf8.RuneCountInString(text) <= chunkSize {
		return []string{text}
	}

	var segments []string
	usedSep := ""
	for _, sep := range separators {
		if sep == "" {
			segments = splitByRunes(text, chunkSize)
			break
		}
		parts := strings.Split(text, sep)
		if len(parts) > 1 {
			segments = parts
			usedSep = sep
			break
		}
	}
	if len(segments) == 0 {
		return []string{text}
	}

	var out []string
	var current strings.Builder
	for _, seg := range segments {
		candidate := current.String()
		if candidate != "" {
			candidate += usedSep
		}
		candidate += seg

		if utf8.RuneCountInString(candidate) > chunkSize && current.Len() > 0 {
			out = append(out, current.String())
			tail := overlapTail(current.String(), overlap)
			current.Reset()
			if tail != "" {
				current.WriteString(tail)
				current.WriteString(usedSep)
			}
			current.WriteString(seg)
		} else {
			if current.Len() > 0 {
				current.WriteString(usedSep)
			}
			current.WriteString(seg)
		}
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

func overlapTail(s string, n int) string {
	runes := []rune(s)
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}

func splitByRunes(text string, n int) []string {
	runes := []rune(text)
	var segments []string
	for i := 0; i < len(runes); i += n {
		end := i + n
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[i:end]))
	}
	return segments
}
