// Package extract pulls contact details out of free-form chat replies.
package extract

import (
	"regexp"
	"strings"
)

// Contact holds the fields required to leave the contact-info step.
type Contact struct {
	Name  string
	Email string
}

// Complete reports whether both name and email were found.
func (c Contact) Complete() bool {
	return c.Name != "" && c.Email != ""
}

var (
	// a label may be wrapped in WhatsApp bold markers: *Name*: Jane
	labelRe   = regexp.MustCompile(`(?i)^\s*\*?\s*(name|e-?mail(?:[\s\-]?id)?)\s*\*?\s*[:\-]\s*(.*)$`)
	emailRe   = regexp.MustCompile(`(?i)^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	namePfxRe = regexp.MustCompile(`(?i)^\*?name\*?(?:\s*[:\-]\s*|\s+)`)
)

// ContactInfo extracts a name and an email from raw text.
//
// Labelled "name: value" / "email: value" lines win. Whatever is still
// missing is filled positionally from the non-empty lines: a line shaped like
// local@domain.tld becomes the email, and the first line without an "@"
// becomes the name.
func ContactInfo(raw string) Contact {
	var c Contact
	lines := splitLines(raw)

	for _, line := range lines {
		m := labelRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value := strings.Trim(strings.TrimSpace(m[2]), "*")
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch strings.ToLower(m[1]) {
		case "name":
			if c.Name == "" {
				c.Name = value
			}
		default:
			if c.Email == "" && IsEmail(value) {
				c.Email = value
			}
		}
	}
	if c.Complete() {
		return c
	}

	for _, line := range lines {
		switch {
		case c.Email == "" && IsEmail(line):
			c.Email = line
		case c.Name == "" && !strings.Contains(line, "@"):
			if m := labelRe.FindStringSubmatch(line); m != nil && !strings.EqualFold(m[1], "name") {
				continue
			}
			if name := strings.TrimSpace(namePfxRe.ReplaceAllString(line, "")); name != "" {
				c.Name = name
			}
		}
	}
	return c
}

// IsEmail reports whether s looks like local@domain.tld.
func IsEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

func splitLines(raw string) []string {
	parts := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
