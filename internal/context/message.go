package context

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role
	Content Content
}

// Content is the body of a turn. It is either Text or Parts.
type Content interface {
	isContent()
}

// Text is plain text content.
type Text string

// Parts is ordered multimodal content.
type Parts []Part

func (Text) isContent()  {}
func (Parts) isContent() {}

// Part is one element of multimodal content. It is either TextPart or ImagePart.
type Part interface {
	isPart()
}

// TextPart carries the instruction text of a multimodal turn.
type TextPart struct {
	Text string
}

// ImagePart carries an inline image. Data is the base64 payload.
type ImagePart struct {
	MediaType string
	Data      string
}

func (TextPart) isPart()  {}
func (ImagePart) isPart() {}

// URL renders the part as a data URL.
func (p ImagePart) URL() string {
	return "data:" + p.MediaType + ";base64," + p.Data
}

// Text returns the plain text of the turn. For multimodal content it is the
// first text part.
func (t Turn) Text() string {
	switch c := t.Content.(type) {
	case Text:
		return string(c)
	case Parts:
		for _, p := range c {
			if tp, ok := p.(TextPart); ok {
				return tp.Text
			}
		}
	}
	return ""
}

// HasImage reports whether the turn carries an image part.
func (t Turn) HasImage() bool {
	parts, ok := t.Content.(Parts)
	if !ok {
		return false
	}
	for _, p := range parts {
		if _, ok := p.(ImagePart); ok {
			return true
		}
	}
	return false
}

// TextOnly returns a copy of the turn with its content collapsed to Text.
func (t Turn) TextOnly() Turn {
	return Turn{Role: t.Role, Content: Text(t.Text())}
}

func (t Turn) clone() Turn {
	if parts, ok := t.Content.(Parts); ok {
		cp := make(Parts, len(parts))
		copy(cp, parts)
		return Turn{Role: t.Role, Content: cp}
	}
	return t
}

type wireTurn struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

type wirePart struct {
	Type     string        `json:"type"`
	Text     *string       `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireImageURL struct {
	URL string `json:"url"`
}

const (
	partTypeText  = "text"
	partTypeImage = "image_url"
)

// MarshalJSON encodes the turn in the chat-completions message shape: content
// is a string for Text and an array of typed parts for Parts.
func (t Turn) MarshalJSON() ([]byte, error) {
	var (
		content []byte
		err     error
	)
	switch c := t.Content.(type) {
	case nil:
		content, err = json.Marshal("")
	case Text:
		content, err = json.Marshal(string(c))
	case Parts:
		parts := make([]wirePart, 0, len(c))
		for _, p := range c {
			switch p := p.(type) {
			case TextPart:
				text := p.Text
				parts = append(parts, wirePart{Type: partTypeText, Text: &text})
			case ImagePart:
				parts = append(parts, wirePart{Type: partTypeImage, ImageURL: &wireImageURL{URL: p.URL()}})
			default:
				return nil, fmt.Errorf("unsupported content part %T", p)
			}
		}
		content, err = json.Marshal(parts)
	default:
		return nil, fmt.Errorf("unsupported content %T", c)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireTurn{Role: t.Role, Content: content})
}

// UnmarshalJSON accepts both the string and the parts-array content shapes.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var w wireTurn
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.Role = w.Role

	raw := strings.TrimSpace(string(w.Content))
	switch {
	case raw == "" || raw == "null":
		t.Content = Text("")
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(w.Content, &s); err != nil {
			return fmt.Errorf("decode text content: %w", err)
		}
		t.Content = Text(s)
	case strings.HasPrefix(raw, "["):
		var wparts []wirePart
		if err := json.Unmarshal(w.Content, &wparts); err != nil {
			return fmt.Errorf("decode content parts: %w", err)
		}
		parts := make(Parts, 0, len(wparts))
		for i, wp := range wparts {
			switch wp.Type {
			case partTypeText:
				text := ""
				if wp.Text != nil {
					text = *wp.Text
				}
				parts = append(parts, TextPart{Text: text})
			case partTypeImage:
				if wp.ImageURL == nil {
					return fmt.Errorf("content part %d: missing image_url", i)
				}
				img, err := parseDataURL(wp.ImageURL.URL)
				if err != nil {
					return fmt.Errorf("content part %d: %w", i, err)
				}
				parts = append(parts, img)
			default:
				return fmt.Errorf("content part %d: unsupported type %q", i, wp.Type)
			}
		}
		t.Content = parts
	default:
		return fmt.Errorf("unsupported content shape: %s", truncate(raw, 40))
	}
	return nil
}

// parseDataURL accepts only inline base64 data URLs; remote image references
// are never forwarded.
func parseDataURL(url string) (ImagePart, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return ImagePart{}, fmt.Errorf("image url is not a data url")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return ImagePart{}, fmt.Errorf("malformed data url")
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return ImagePart{}, fmt.Errorf("data url is not base64 encoded")
	}
	if payload == "" {
		return ImagePart{}, fmt.Errorf("data url has empty payload")
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return ImagePart{}, fmt.Errorf("invalid base64 payload: %w", err)
	}
	if strings.TrimSpace(mediaType) == "" {
		mediaType = DefaultMediaType
	}
	return ImagePart{MediaType: mediaType, Data: payload}, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
