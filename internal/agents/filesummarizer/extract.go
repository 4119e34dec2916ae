package filesummarizer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/concierge/orchestrator/pkg/models"
)

var supportedExtensions = map[string]bool{
	"pdf": true, "docx": true, "pptx": true, "csv": true,
	"xlsx": true, "txt": true, "md": true, "json": true, "html": true,
}

var htmlTagRE = regexp.MustCompile(`(?s)<[^>]+>`)
var whitespaceRE = regexp.MustCompile(`\s+`)

func detectType(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// officeExtractor is the seam a real pdf/docx/pptx/xlsx parser plugs
// into. No pack example carries a Go office-document parsing library,
// so the registered default (rawTextExtractor) degrades to a best-
// effort raw decode; a deployment that needs real office-document
// support registers a replacement with registerOfficeExtractor.
type officeExtractor interface {
	extract(blob []byte, detectedType string) (string, models.DocumentStructure, error)
}

var defaultOfficeExtractor officeExtractor = rawTextExtractor{}

// registerOfficeExtractor swaps in a real parser for the binary office
// formats. Intended to be called once at process startup.
func registerOfficeExtractor(e officeExtractor) {
	defaultOfficeExtractor = e
}

// rawTextExtractor is the stdlib-only fallback: it does not understand
// office container formats, it just recovers whatever valid UTF-8 text
// happens to be present, since the underlying parser libraries are
// deployment-specific and out of pack.
type rawTextExtractor struct{}

func (rawTextExtractor) extract(blob []byte, detectedType string) (string, models.DocumentStructure, error) {
	cleaned := strings.ToValidUTF8(string(blob), "")
	pageEstimate := estimatePages(len(cleaned))
	return cleaned, models.DocumentStructure{TotalChars: len(cleaned), TotalPages: pageEstimate}, nil
}

// extractText dispatches on the detected file type and returns plain
// text plus structural metadata used later for page estimation.
func extractText(blob []byte, detectedType string) (string, models.DocumentStructure, error) {
	raw := string(blob)

	switch detectedType {
	case "html":
		stripped := htmlTagRE.ReplaceAllString(raw, " ")
		collapsed := strings.TrimSpace(whitespaceRE.ReplaceAllString(stripped, " "))
		return collapsed, models.DocumentStructure{TotalChars: len(collapsed)}, nil

	case "json":
		var v any
		if err := json.Unmarshal(blob, &v); err != nil {
			return "", models.DocumentStructure{}, fmt.Errorf("invalid json: %w", err)
		}
		pretty, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", models.DocumentStructure{}, err
		}
		var keys []string
		if obj, ok := v.(map[string]any); ok {
			for k := range obj {
				keys = append(keys, k)
			}
		}
		text := string(pretty)
		return text, models.DocumentStructure{TotalChars: len(text), TopLevelKeys: keys}, nil

	case "md", "txt", "csv":
		return raw, models.DocumentStructure{TotalChars: len(raw)}, nil

	case "pdf", "docx", "pptx", "xlsx":
		return defaultOfficeExtractor.extract(blob, detectedType)

	default:
		return "", models.DocumentStructure{}, fmt.Errorf("unsupported file type %q", detectedType)
	}
}

const charsPerPageEstimate = 3000

func estimatePages(totalChars int) int {
	if totalChars == 0 {
		return 0
	}
	pages := totalChars / charsPerPageEstimate
	if totalChars%charsPerPageEstimate != 0 {
		pages++
	}
	return pages
}
