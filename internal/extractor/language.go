package extractor

import (
	"strings"

	"golang.org/x/text/language"

	"voice-forms-go/internal/types"
)

// normalizeLanguage reduces a model supplied code ("es-MX", "PT", "english")
// to its ISO 639 base, falling back to the default language.
func normalizeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return types.DefaultLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return types.DefaultLanguage
	}
	base, conf := tag.Base()
	if conf == language.No {
		return types.DefaultLanguage
	}
	return base.String()
}
