package transformers

import (
	"strings"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

var _ interfaces.TextExtractor = (*HTMLExtractor)(nil)

// HTMLExtractor turns WordPress rendered HTML into plain text.
type HTMLExtractor struct {
	logger zerolog.Logger
}

// NewHTMLExtractor creates a new extractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{
		logger: util.NewLogger(zerolog.ErrorLevel),
	}
}

// ExtractText drops script and style elements, takes the remaining text and
// joins its non-empty lines with "\n". Runs of two or more spaces split a
// line into separate phrases.
func (h *HTMLExtractor) ExtractText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// The html parser only fails on reader errors, which a strings.Reader never returns.
		h.logger.Error().Err(err).Msg("failed to parse HTML")
		return ""
	}

	doc.Find("script, style").Remove()

	return normalizeWhitespace(doc.Text())
}

// CleanTitle returns the text of a rendered title: entities decoded, inline
// tags dropped, surrounding whitespace trimmed.
func (h *HTMLExtractor) CleanTitle(rendered string) string {
	if !strings.ContainsAny(rendered, "<&") {
		return strings.TrimSpace(rendered)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		h.logger.Error().Err(err).Str("title", rendered).Msg("failed to parse title")
		return strings.TrimSpace(rendered)
	}
	return strings.TrimSpace(doc.Text())
}

func normalizeWhitespace(text string) string {
	var phrases []string
	for _, line := range strings.Split(text, "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				phrases = append(phrases, phrase)
			}
		}
	}
	return strings.Join(phrases, "\n")
}
