package gemini

import (
	"errors"
	"fmt"
)

var ErrNoImage = errors.New("no image generated")

// KeySource yields the API key at call time, so a key connected after the
// client was built is picked up by the next request.
type KeySource interface {
	APIKey() string
}

type StaticKey string

func (k StaticKey) APIKey() string { return string(k) }

type InlineImage struct {
	MimeType string
	Data     []byte
	// Caption is sent as a text part right after the image.
	Caption string
}

type ImageRequest struct {
	Prompt      string
	Images      []InlineImage
	AspectRatio string
	ImageSize   string // "1K" | "2K" | "4K"
}

type Image struct {
	MimeType string
	Data     []byte
}

type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini API %s", e.Status)
	}
	return fmt.Sprintf("gemini API %s: %s", e.Status, e.Message)
}
