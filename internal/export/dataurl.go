package export

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedImage is returned for data URLs the PDF writer cannot embed.
var ErrUnsupportedImage = errors.New("export: unsupported image data")

// DecodeDataURL splits a base64 data URL into its bytes and the PDF image
// type ("JPEG" or "PNG").
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: not a data URL", ErrUnsupportedImage)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing payload", ErrUnsupportedImage)
	}
	mime, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return nil, "", fmt.Errorf("%w: payload is not base64", ErrUnsupportedImage)
	}

	var imageType string
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		imageType = "JPEG"
	case "image/png":
		imageType = "PNG"
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mime)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return data, imageType, nil
}
