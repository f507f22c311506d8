package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	errMalformed   = errors.New("malformed json")
	errUnsupported = errors.New("unsupported webhook shape")
)

// maxStringNesting bounds how many times a JSON string body is unwrapped.
const maxStringNesting = 2

// parseBody normalizes the accepted webhook shapes into the event object:
// an array whose first element carries "body", an object with an optional
// "body", or a JSON string holding either.
func parseBody(raw []byte) (map[string]any, error) {
	v, err := decode(raw)
	if err != nil {
		return nil, err
	}

	for range maxStringNesting {
		s, ok := v.(string)
		if !ok {
			break
		}

		if v, err = decode([]byte(s)); err != nil {
			return nil, err
		}
	}

	switch node := v.(type) {
	case []any:
		if len(node) == 0 {
			return nil, fmt.Errorf("%w: empty array", errUnsupported)
		}

		first, ok := node[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: array element is not an object", errUnsupported)
		}

		body, ok := first["body"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: array element has no body", errUnsupported)
		}

		return body, nil
	case map[string]any:
		if body, ok := node["body"].(map[string]any); ok {
			return body, nil
		}

		return node, nil
	default:
		return nil, fmt.Errorf("%w: %T", errUnsupported, v)
	}
}

func decode(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty body", errMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformed, err)
	}

	return v, nil
}
