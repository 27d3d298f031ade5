// Package textparse extracts labeled sections from free-form model output.
// The scan is tolerant by contract: a missing label yields an empty result,
// never an error, so callers can fall back to synthesized defaults.
package textparse

import "strings"

// Sections scans text line by line and returns the body of each labeled
// section. A section starts at a line beginning with "<LABEL>:" (labels are
// matched case-insensitively, expected uppercase in the labels slice) and
// runs until the next known label or end of text. Labels not found are
// simply absent from the result.
func Sections(text string, labels []string) map[string]string {
	out := make(map[string]string, len(labels))
	var (
		current string
		buf     []string
	)
	flush := func() {
		if current != "" {
			out[current] = strings.TrimSpace(strings.Join(buf, "\n"))
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)

		matched := ""
		for _, label := range labels {
			if strings.HasPrefix(upper, label+":") {
				matched = label
				break
			}
		}
		if matched != "" {
			flush()
			current = matched
			buf = buf[:0]
			if rest := strings.TrimSpace(trimmed[len(matched)+1:]); rest != "" {
				buf = append(buf, rest)
			}
			continue
		}
		if current != "" {
			buf = append(buf, line)
		}
	}
	flush()
	return out
}

// Items splits a list-type section into its entries: one entry per line,
// list markers stripped, empty lines dropped, capped at max entries in
// original order.
func Items(section string, max int) []string {
	var items []string
	for _, line := range strings.Split(section, "\n") {
		item := stripMarker(strings.TrimSpace(line))
		if item == "" {
			continue
		}
		items = append(items, item)
		if len(items) == max {
			break
		}
	}
	return items
}

// stripMarker removes a leading bullet ("-", "*", "•") or numbered marker
// ("1.", "2)") from a list entry.
func stripMarker(s string) string {
	s = strings.TrimLeft(s, "-*• \t")
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

// TitledBody splits model output of the form
//
//	TITLE: <title>
//	KEYWORDS: <a>, <b>
//
//	<body>
//
// into its parts. The header block ends at the first non-label line; when no
// header is present the whole text is returned as body.
func TitledBody(text string) (title string, keywords []string, body string) {
	lines := strings.Split(text, "\n")
	i := 0
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		upper := strings.ToUpper(trimmed)
		if strings.HasPrefix(upper, "TITLE:") {
			title = strings.TrimSpace(trimmed[len("TITLE:"):])
			continue
		}
		if strings.HasPrefix(upper, "KEYWORDS:") {
			for _, k := range strings.Split(trimmed[len("KEYWORDS:"):], ",") {
				if k = strings.TrimSpace(k); k != "" {
					keywords = append(keywords, k)
				}
			}
			continue
		}
		break
	}
	return title, keywords, strings.TrimSpace(strings.Join(lines[i:], "\n"))
}
