package wizard

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// sniffLen is how much of an upload http.DetectContentType looks at.
const sniffLen = 512

// DetectMIME picks the MIME type of an upload. Content sniffing wins unless
// it only yields a generic type, in which case the filename extension and
// then the client's declared type are tried.
func DetectMIME(head []byte, filename, declared string) string {
	sniffed := baseMIME(http.DetectContentType(head))
	if !generic(sniffed) {
		return sniffed
	}
	if byExt := baseMIME(mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))); byExt != "" {
		return byExt
	}
	if d := baseMIME(declared); d != "" && !generic(d) {
		return d
	}
	return sniffed
}

func generic(mt string) bool {
	return mt == "application/octet-stream" || mt == "text/plain"
}

func baseMIME(mt string) string {
	if mt == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	return ""
}
