package media

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const contentTypeOctetStream = "application/octet-stream"

// ResolveContentType prefers the declared type unless it is missing or
// generic, in which case the bytes are sniffed. Parameters are stripped.
func ResolveContentType(declared string, data []byte) string {
	ct := baseType(declared)
	if ct != "" && !isGeneric(ct) {
		return ct
	}

	if len(data) == 0 {
		if ct == "" {
			return contentTypeOctetStream
		}

		return ct
	}

	return baseType(mimetype.Detect(data).String())
}

// ExtensionFor returns a file extension without the dot for a content type.
func ExtensionFor(contentType string) string {
	m := mimetype.Lookup(baseType(contentType))
	if m == nil {
		return ""
	}

	return strings.TrimPrefix(m.Extension(), ".")
}

func baseType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}

	parsed, _, err := mime.ParseMediaType(ct)
	if err != nil {
		if i := strings.Index(ct, ";"); i >= 0 {
			ct = ct[:i]
		}

		return strings.ToLower(strings.TrimSpace(ct))
	}

	return parsed
}

func isGeneric(ct string) bool {
	switch ct {
	case contentTypeOctetStream, "binary/octet-stream", "application/binary", "application/unknown":
		return true
	default:
		return false
	}
}
