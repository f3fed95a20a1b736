package core

import (
	"mime"
	"strings"
)

// ParseMIMETypes splits admin form input on commas and newlines, trims,
// lower-cases and de-duplicates while keeping the submitted order.
func ParseMIMETypes(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// ValidMIMEPattern accepts "type/subtype", "type/*" and "*/*".
func ValidMIMEPattern(p string) bool {
	major, minor, ok := strings.Cut(p, "/")
	if !ok || major == "" || minor == "" {
		return false
	}
	if major == "*" {
		return minor == "*"
	}
	if minor == "*" {
		return validToken(major)
	}
	return validToken(major) && validToken(minor)
}

func validToken(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("!#$&^_.+-", r):
		default:
			return false
		}
	}
	return true
}

// MatchMIME reports whether pattern claims mimeType. Matching is
// case-insensitive and ignores parameters such as "; charset=utf-8".
func MatchMIME(pattern, mimeType string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	mt := normalizeMIME(mimeType)
	if pattern == "" || mt == "" {
		return false
	}
	if pattern == "*/*" || pattern == mt {
		return true
	}
	prefix, ok := strings.CutSuffix(pattern, "/*")
	if !ok {
		return false
	}
	major, _, _ := strings.Cut(mt, "/")
	return major == prefix
}

func normalizeMIME(mt string) string {
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// KnownMIMETypes is the reference list shown next to the MIME type field
// on the file type form.
func KnownMIMETypes() []string {
	return []string{
		"application/msword",
		"application/octet-stream",
		"application/pdf",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/zip",
		"audio/mpeg",
		"audio/ogg",
		"audio/wav",
		"image/gif",
		"image/jpeg",
		"image/png",
		"image/svg+xml",
		"image/webp",
		"text/csv",
		"text/plain",
		"video/mp4",
		"video/ogg",
		"video/webm",
	}
}
