// Package i18n renders user-facing text for coded errors.
package i18n

import (
	"bytes"
	stderrors "errors"
	"strings"
	"text/template"

	apperrors "github.com/voluntarios/learnbridge/internal/platform/errors"
	"github.com/voluntarios/learnbridge/internal/platform/i18n/catalog"
)

const keyPrefix = "errors."

// Format renders the template for code in locale with metadata, falling
// back to the base locale and then to the code itself.
func Format(locale string, code apperrors.Code, metadata map[string]string) string {
	tmpl, ok := catalog.Default().Message(strings.TrimSpace(locale), keyPrefix+string(code))
	if !ok {
		return string(code)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	t, err := template.New("msg").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// Message returns the localized text for err. Errors without a domain code
// render as UNKNOWN.
func Message(locale string, err error) string {
	if err == nil {
		return ""
	}
	var domainErr *apperrors.Error
	if stderrors.As(err, &domainErr) {
		return Format(locale, domainErr.Code, domainErr.Metadata)
	}
	return Format(locale, apperrors.CodeUnknown, nil)
}
