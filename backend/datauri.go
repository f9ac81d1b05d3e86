package backend

import (
	"encoding/base64"
	"image"
	"strings"

	"github.com/gogpu/convert/codec"
)

// DataURI encodes img with enc as a base64 data URI.
func DataURI(enc codec.Encoder, img image.Image) (string, error) {
	var sb strings.Builder
	sb.WriteString("data:" + enc.MediaType() + ";base64,")
	b64 := base64.NewEncoder(base64.StdEncoding, &sb)
	if err := enc.Encode(b64, img); err != nil {
		return "", err
	}
	if err := b64.Close(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
