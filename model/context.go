package model

import "strings"

const requestLabel = "Request: "

// ComposeContext renders a worker context: the request line followed by the
// non-empty sections, separated by blank lines.
func ComposeContext(request string, sections ...string) string {
	var b strings.Builder
	b.WriteString(requestLabel)
	b.WriteString(strings.TrimSpace(request))
	for _, section := range sections {
		if section = strings.TrimSpace(section); section == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(section)
	}
	return b.String()
}

// RequestOf returns the request text of a context built by ComposeContext,
// or the whole text when it carries no request label.
func RequestOf(context string) string {
	if !strings.HasPrefix(context, requestLabel) {
		return strings.TrimSpace(context)
	}
	text := strings.TrimPrefix(context, requestLabel)
	if i := strings.Index(text, "\n\n"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
