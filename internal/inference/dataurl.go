package inference

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ParseDataURL decodes a base64 data URL such as "data:image/png;base64,....".
// A bare base64 string is accepted and reported as image/png.
func ParseDataURL(raw string) (string, []byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil, errors.New("inference: empty data url")
	}

	mime := "image/png"
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		header, data, ok := strings.Cut(raw[len("data:"):], ",")
		if !ok {
			return "", nil, errors.New("inference: malformed data url")
		}
		params := strings.Split(header, ";")
		if !containsParam(params[1:], "base64") {
			return "", nil, errors.New("inference: data url is not base64 encoded")
		}
		if params[0] != "" {
			mime = strings.ToLower(params[0])
		}
		payload = data
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("inference: decode data url: %w", err)
		}
	}
	return mime, decoded, nil
}

// ImageFormat maps an image MIME type to its short format name.
func ImageFormat(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func containsParam(params []string, want string) bool {
	for _, p := range params {
		if strings.EqualFold(strings.TrimSpace(p), want) {
			return true
		}
	}
	return false
}
