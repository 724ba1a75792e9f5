package brand

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

type AttachmentKind string

const (
	KindLogo     AttachmentKind = "logo"
	KindHeadshot AttachmentKind = "headshot"
)

func ParseAttachmentKind(value string) (AttachmentKind, bool) {
	switch AttachmentKind(strings.ToLower(strings.TrimSpace(value))) {
	case KindLogo:
		return KindLogo, true
	case KindHeadshot:
		return KindHeadshot, true
	}
	return "", false
}

const DefaultMaxAttachmentBytes = 10 << 20

var (
	ErrAttachmentOccupied = errors.New("attachment slot already occupied")
	ErrAttachmentEmpty    = errors.New("attachment is empty")
	ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")
)

// Attachment is a user supplied reference image. Data wins over Path; a
// Path-only attachment is read lazily when a request is built.
type Attachment struct {
	Kind     AttachmentKind
	Name     string
	MimeType string
	Data     []byte
	Path     string
	MaxBytes int64
}

// Decoded is an attachment that was read fully and whose image header parsed.
type Decoded struct {
	Kind     AttachmentKind
	MimeType string
	Data     []byte
	Width    int
	Height   int
}

// Load reads the attachment into memory and validates that it is an image
// this process can decode.
func (a Attachment) Load() (Decoded, error) {
	data := a.Data
	if len(data) == 0 && a.Path != "" {
		raw, err := readLimited(a.Path, a.maxBytes())
		if err != nil {
			return Decoded{}, err
		}
		data = raw
	}
	if len(data) == 0 {
		return Decoded{}, ErrAttachmentEmpty
	}
	if int64(len(data)) > a.maxBytes() {
		return Decoded{}, fmt.Errorf("%w: %d bytes", ErrAttachmentTooLarge, len(data))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, fmt.Errorf("decode %s: %w", a.Kind, err)
	}

	return Decoded{
		Kind:     a.Kind,
		MimeType: resolveMimeType(a.MimeType, format, data),
		Data:     data,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

func (a Attachment) clone() *Attachment {
	c := a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

func (a Attachment) maxBytes() int64 {
	if a.MaxBytes > 0 {
		return a.MaxBytes
	}
	return DefaultMaxAttachmentBytes
}

func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrAttachmentTooLarge, limit)
	}
	return data, nil
}

// NormalizeMimeType strips parameters and falls back to sniffing.
func NormalizeMimeType(declared string, data []byte) string {
	mimeType := strings.TrimSpace(declared)
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

func resolveMimeType(declared, format string, data []byte) string {
	if strings.HasPrefix(strings.TrimSpace(declared), "image/") {
		return NormalizeMimeType(declared, data)
	}
	if format != "" {
		return "image/" + format
	}
	return NormalizeMimeType(declared, data)
}
