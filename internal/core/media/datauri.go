package media

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
)

const dataURIPrefix = "data:"

// EncodeDataURI builds a base64 data URI.
func EncodeDataURI(contentType string, data []byte) string {
	if contentType == "" {
		contentType = contentTypeOctetStream
	}

	return dataURIPrefix + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its content type and bytes.
func DecodeDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, dataURIPrefix) {
		return "", nil, fmt.Errorf("%w: missing data scheme", errors.ErrInvalidInput)
	}

	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, dataURIPrefix), ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data separator", errors.ErrInvalidInput)
	}

	contentType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: only base64 data URIs are supported", errors.ErrInvalidInput)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data uri: %w", err)
	}

	return contentType, data, nil
}
