// Package brand holds the user's editable brand kit and the per-session
// store that owns it.
package brand

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"creator-studio-ai/internal/platform"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// DefaultTheme is used in prompts when the theme field is empty.
const DefaultTheme = "Modern Professional, Clean, High-Tech, Minimalist"

type Field string

const (
	FieldHeadline Field = "headline"
	FieldTagline  Field = "tagline"
	FieldCTA      Field = "cta"
	FieldTheme    Field = "theme"
)

func ParseField(value string) (Field, bool) {
	switch Field(strings.ToLower(strings.TrimSpace(value))) {
	case FieldHeadline:
		return FieldHeadline, true
	case FieldTagline:
		return FieldTagline, true
	case FieldCTA:
		return FieldCTA, true
	case FieldTheme:
		return FieldTheme, true
	}
	return "", false
}

type Configuration struct {
	Platforms []platform.ID

	Headline string
	Tagline  string
	CTA      string
	Theme    string

	Primary   Color
	Secondary Color
	Accent    Color

	OptimizeSafeZones bool

	Logo     *Attachment
	Headshot *Attachment
}

func DefaultConfiguration() Configuration {
	return Configuration{
		Primary:           RGB(0x63, 0x66, 0xf1),
		Secondary:         RGB(0xec, 0x48, 0x99),
		Accent:            RGB(0xfb, 0xbf, 0x24),
		OptimizeSafeZones: true,
	}
}

// Snapshot returns a deep copy that later edits cannot reach.
func (c Configuration) Snapshot() Configuration {
	out := c
	out.Platforms = append([]platform.ID(nil), c.Platforms...)
	if c.Logo != nil {
		out.Logo = c.Logo.clone()
	}
	if c.Headshot != nil {
		out.Headshot = c.Headshot.clone()
	}
	return out
}

func (c Configuration) Selected(id platform.ID) bool {
	for _, v := range c.Platforms {
		if v == id {
			return true
		}
	}
	return false
}

// TogglePlatform flips a platform's selection, keeping catalog display order.
func (c *Configuration) TogglePlatform(id platform.ID) error {
	if _, ok := platform.Lookup(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlatform, id)
	}
	if c.Selected(id) {
		out := c.Platforms[:0:0]
		for _, v := range c.Platforms {
			if v != id {
				out = append(out, v)
			}
		}
		c.Platforms = out
		return nil
	}
	return c.SetPlatforms(append(append([]platform.ID(nil), c.Platforms...), id))
}

// SetPlatforms replaces the selection. Duplicates collapse and the result is
// sorted by catalog position.
func (c *Configuration) SetPlatforms(ids []platform.ID) error {
	seen := make(map[platform.ID]struct{}, len(ids))
	out := make([]platform.ID, 0, len(ids))
	for _, id := range ids {
		id = platform.ID(strings.ToLower(strings.TrimSpace(string(id))))
		if id == "" {
			continue
		}
		if _, ok := platform.Lookup(id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPlatform, id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return platform.Position(out[i]) < platform.Position(out[j])
	})
	c.Platforms = out
	return nil
}

func (c *Configuration) SetField(field Field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case FieldHeadline:
		c.Headline = value
	case FieldTagline:
		c.Tagline = value
	case FieldCTA:
		c.CTA = value
	case FieldTheme:
		c.Theme = value
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

func (c Configuration) FieldValue(field Field) string {
	switch field {
	case FieldHeadline:
		return c.Headline
	case FieldTagline:
		return c.Tagline
	case FieldCTA:
		return c.CTA
	case FieldTheme:
		return c.Theme
	}
	return ""
}

// SetColors parses and applies up to three colors; empty strings keep the
// current value. Nothing changes when any value is invalid.
func (c *Configuration) SetColors(primary, secondary, accent string) error {
	next := [3]Color{c.Primary, c.Secondary, c.Accent}
	for i, raw := range []string{primary, secondary, accent} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		parsed, err := ParseColor(raw)
		if err != nil {
			return err
		}
		next[i] = parsed
	}
	c.Primary, c.Secondary, c.Accent = next[0], next[1], next[2]
	return nil
}

func (c Configuration) Attachment(kind AttachmentKind) *Attachment {
	switch kind {
	case KindLogo:
		return c.Logo
	case KindHeadshot:
		return c.Headshot
	}
	return nil
}

// Attach fills an empty slot. Replacing requires an explicit Detach first.
func (c *Configuration) Attach(kind AttachmentKind, a Attachment) error {
	if c.Attachment(kind) != nil {
		return fmt.Errorf("%w: %s", ErrAttachmentOccupied, kind)
	}
	a.Kind = kind
	switch kind {
	case KindLogo:
		c.Logo = a.clone()
	case KindHeadshot:
		c.Headshot = a.clone()
	default:
		return fmt.Errorf("unknown attachment kind %q", kind)
	}
	return nil
}

// Detach reports whether a slot was cleared.
func (c *Configuration) Detach(kind AttachmentKind) bool {
	switch kind {
	case KindLogo:
		had := c.Logo != nil
		c.Logo = nil
		return had
	case KindHeadshot:
		had := c.Headshot != nil
		c.Headshot = nil
		return had
	}
	return false
}

// FreeAttachmentKind returns the first empty slot, logo before headshot.
func (c Configuration) FreeAttachmentKind() (AttachmentKind, bool) {
	if c.Logo == nil {
		return KindLogo, true
	}
	if c.Headshot == nil {
		return KindHeadshot, true
	}
	return "", false
}
