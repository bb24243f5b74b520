package context

import (
	"encoding/base64"
	"strings"
)

// DefaultMediaType is used when an image arrives without a declared type.
const DefaultMediaType = "image/jpeg"

// Image is a raw image as supplied by the caller.
type Image struct {
	Data      []byte
	MediaType string
}

// NewImagePart base64-encodes the image into an inline part.
func NewImagePart(img Image) ImagePart {
	mediaType := strings.TrimSpace(img.MediaType)
	if mediaType == "" {
		mediaType = DefaultMediaType
	}
	return ImagePart{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(img.Data),
	}
}

// EncodeTurn builds the user turn for a new request. A nil or zero-length
// image yields a text-only turn; otherwise the text part precedes the image.
func EncodeTurn(text string, img *Image) Turn {
	if img == nil || len(img.Data) == 0 {
		return Turn{Role: RoleUser, Content: Text(text)}
	}
	return Turn{
		Role: RoleUser,
		Content: Parts{
			TextPart{Text: text},
			NewImagePart(*img),
		},
	}
}
