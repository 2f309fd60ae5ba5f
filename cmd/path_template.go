package cmd

import (
	"strings"
	"time"
	"unicode"

	"github.com/airframesio/country-compare/cmd/comparison"
)

// PathTemplate expands placeholders in export paths
type PathTemplate struct {
	template string
}

// NewPathTemplate creates a new PathTemplate instance
func NewPathTemplate(template string) *PathTemplate {
	return &PathTemplate{template: template}
}

// Generate replaces placeholders in the template with values from res.
// Supports: {metric}, {a}, {b}, {YYYY}, {MM}, {DD}
func (pt *PathTemplate) Generate(res *comparison.Result, timestamp time.Time) string {
	result := pt.template

	result = strings.ReplaceAll(result, "{metric}", slug(res.Metric))
	result = strings.ReplaceAll(result, "{a}", slug(res.CountryA))
	result = strings.ReplaceAll(result, "{b}", slug(res.CountryB))

	result = strings.ReplaceAll(result, "{YYYY}", timestamp.Format("2006"))
	result = strings.ReplaceAll(result, "{MM}", timestamp.Format("01"))
	result = strings.ReplaceAll(result, "{DD}", timestamp.Format("02"))

	return result
}

// slug lowercases s and collapses every run of other characters into one
// dash, so metric and country names are safe as path segments.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
