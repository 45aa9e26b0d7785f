package resolver

import (
	"strings"

	"github.com/kilupskalvis/lexmerge/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalize puts text into NFC, folds case and collapses whitespace.
func normalize(s string) string {
	s = norm.NFC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Signature returns the normalized gloss+definition signature of a sense.
// Senses without any gloss or definition text have an empty signature,
// which never collides.
func Signature(s *models.Sense) string {
	var b strings.Builder
	write := func(field string, m models.MultiText) {
		for _, lang := range m.Languages() {
			text := normalize(m[lang])
			if text == "" {
				continue
			}
			b.WriteString(field)
			b.WriteByte('.')
			b.WriteString(strings.ToLower(lang))
			b.WriteByte('=')
			b.WriteString(text)
			b.WriteByte('\x1f')
		}
	}
	write("g", s.Gloss)
	write("d", s.Definition)
	return b.String()
}
