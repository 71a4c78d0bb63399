package notification

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// The eight variables a template body may reference.
var allowedVariables = map[string]bool{
	"name":        true,
	"first_name":  true,
	"last_name":   true,
	"date":        true,
	"date_before": true,
	"days_until":  true,
	"phone_pay":   true,
	"name_pay":    true,
}

// Telegram HTML tags accepted in template bodies: bold, italic, underline,
// strikethrough, code, preformatted, spoiler, blockquote and links.
var allowedTags = map[string]bool{
	"b":          true,
	"strong":     true,
	"i":          true,
	"em":         true,
	"u":          true,
	"ins":        true,
	"s":          true,
	"strike":     true,
	"del":        true,
	"code":       true,
	"pre":        true,
	"tg-spoiler": true,
	"blockquote": true,
	"a":          true,
}

var (
	variablePattern = regexp.MustCompile(`\{([^{}]+)\}`)
	tagPattern      = regexp.MustCompile(`</?([a-zA-Z0-9-]+)(?:\s[^>]*)?>`)
)

// ValidationError reports every disallowed variable and tag found in a
// template body, not just the fact that validation failed.
type ValidationError struct {
	InvalidVariables []string
	InvalidTags      []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.InvalidVariables) > 0 {
		parts = append(parts, fmt.Sprintf("недопустимые переменные: {%s}", strings.Join(e.InvalidVariables, "}, {")))
	}
	if len(e.InvalidTags) > 0 {
		parts = append(parts, fmt.Sprintf("недопустимые HTML-теги: <%s>", strings.Join(e.InvalidTags, ">, <")))
	}
	if len(parts) == 0 {
		return "шаблон не прошёл проверку"
	}
	return strings.Join(parts, "; ")
}

// ValidateTemplate checks a template body against the fixed variable and tag
// whitelists. It returns nil when the body is clean, or a *ValidationError
// naming each offending variable and tag.
func ValidateTemplate(body string) error {
	var verr ValidationError

	seenVars := make(map[string]bool)
	for _, m := range variablePattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if !allowedVariables[name] && !seenVars[name] {
			seenVars[name] = true
			verr.InvalidVariables = append(verr.InvalidVariables, name)
		}
	}

	seenTags := make(map[string]bool)
	for _, m := range tagPattern.FindAllStringSubmatch(body, -1) {
		tag := strings.ToLower(m[1])
		if !allowedTags[tag] && !seenTags[tag] {
			seenTags[tag] = true
			verr.InvalidTags = append(verr.InvalidTags, tag)
		}
	}

	if len(verr.InvalidVariables) == 0 && len(verr.InvalidTags) == 0 {
		return nil
	}
	sort.Strings(verr.InvalidVariables)
	sort.Strings(verr.InvalidTags)
	return &verr
}
