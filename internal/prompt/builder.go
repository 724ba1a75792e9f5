// Package prompt turns a platform descriptor and a brand kit snapshot into a
// generation request.
package prompt

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"creator-studio-ai/internal/brand"
	"creator-studio-ai/internal/platform"
)

const (
	logoCaption = `[IMAGE 1: BRAND LOGO]
- Place prominently (Top-Right or Top-Left).
- Ensure high contrast against background.`

	headshotCaption = `[IMAGE 2: REFERENCE FACE - STRICT IDENTITY & POSE PRESERVATION]
- SOURCE OF TRUTH: Use the EXACT face and head structure from this image.
- ANGLE/POSE: PRESERVE THE ORIGINAL HEAD ANGLE. If the photo is front-facing, keep the subject front-facing. Do NOT force a side profile view if it looks unnatural.
- EXPRESSION: Maintain the original expression.
- COMPOSITION: Place the subject in a balanced position (Left or Right) that matches their gaze direction. If looking straight, place off-center to balance the text.
- INTEGRATION: Match the lighting and color grading of the subject to the background, but do not alter the face itself.`
)

var forbiddenElements = []string{
	"ABSOLUTELY NO fake profile picture circles, squares, or avatars.",
	`ABSOLUTELY NO placeholder UI buttons (e.g., "Connect", "Follow").`,
	`The area marked as "obstructed" or "safe zone" must be NEGATIVE SPACE (Background Only).`,
}

var visualStrategy = []string{
	"ANALYZE the content niche based on the headline and tagline (e.g., Finance, Gaming, Wellness, Coding, Lifestyle).",
	"SYNTHESIZE a unique visual metaphor that fits *this specific* niche.",
	"COMPOSITION: Use high-end graphic design principles: layering, depth, texture, and sophisticated lighting.",
}

var antiCliche = []string{
	"AVOID LITERALISM: Do not place literal objects representing the field (e.g. no microphones for podcasts, no controllers for gaming, no coins for finance).",
	"AVOID TECH TROPES: If the topic is Tech/AI, absolutely NO glowing brains, NO circuit boards, NO robot hands, NO matrix code.",
	`AVOID REPETITIVE STYLES: Do not default to "Glassmorphism", "Synthwave", or "Cyberpunk" unless the user's Theme specifically requests it.`,
	"GOAL: Create a texture-rich, depth-filled background. Use architectural forms, organic flows, material textures (matte, metallic, fabric, stone), or dynamic light shaping to evoke the brand's feeling without using cheap stock photo tropes.",
}

// Attachment is a decoded reference image with the caption that follows it.
type Attachment struct {
	Kind     brand.AttachmentKind
	MimeType string
	Data     []byte
	Caption  string
}

type Request struct {
	Platform    platform.ID
	AspectRatio string
	Text        string
	// Attachments are ordered: logo before headshot.
	Attachments []Attachment
	// Omitted lists attachments that were configured but could not be read.
	Omitted []brand.AttachmentKind
}

type Options struct {
	Logger *slog.Logger
}

type Builder struct {
	logger *slog.Logger
}

func NewBuilder(opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{logger: logger}
}

// Build never fails: unreadable attachments are logged and left out.
func (b *Builder) Build(p platform.Descriptor, cfg brand.Configuration) Request {
	req := Request{
		Platform:    p.ID,
		AspectRatio: p.AspectRatio,
		Text:        Text(p, cfg),
	}

	for _, slot := range []struct {
		kind    brand.AttachmentKind
		a       *brand.Attachment
		caption string
	}{
		{brand.KindLogo, cfg.Logo, logoCaption},
		{brand.KindHeadshot, cfg.Headshot, headshotCaption},
	} {
		if slot.a == nil {
			continue
		}
		decoded, err := slot.a.Load()
		if err != nil {
			b.logger.Warn("attachment skipped", "kind", slot.kind, "platform", p.ID, "name", slot.a.Name, "err", err)
			req.Omitted = append(req.Omitted, slot.kind)
			continue
		}
		req.Attachments = append(req.Attachments, Attachment{
			Kind:     slot.kind,
			MimeType: decoded.MimeType,
			Data:     decoded.Data,
			Caption:  slot.caption,
		})
	}

	return req
}

// Text renders the instruction block. The headline is written verbatim once,
// in the typography section.
func Text(p platform.Descriptor, cfg brand.Configuration) string {
	var b strings.Builder
	b.Grow(4096)

	b.WriteString(fmt.Sprintf("ROLE: You are a world-class Senior Art Director specializing in premium %s design.\n", p.Label))
	b.WriteString("TASK: Design a high-impact branding asset that reflects the unique identity of the user.\n")
	b.WriteString("FORMAT: High-resolution (8k), photorealistic or premium 3D/Vector.\n")
	b.WriteString(fmt.Sprintf("TARGET ASPECT RATIO: %s (Usage: %s).\n\n", p.AspectRatio, p.TargetUsage))

	if cfg.OptimizeSafeZones {
		b.WriteString("LAYOUT & COMPOSITION (CRITICAL):\n")
		b.WriteString("- " + p.SafeZoneInstruction + "\n")
		b.WriteString("- IF STRIP FORMAT (e.g. LinkedIn/Twitter/Email): Vertically center all text/logos so they survive cropping.\n\n")
		b.WriteString("*** FORBIDDEN ELEMENTS (STRICT RULE) ***\n")
		writeLines(&b, forbiddenElements)
		b.WriteString("\n")
	}

	theme := strings.TrimSpace(cfg.Theme)
	if theme == "" {
		theme = brand.DefaultTheme
	}
	b.WriteString("DYNAMIC CREATIVE DIRECTION:\n")
	b.WriteString("- INPUT THEME: " + quote(theme) + "\n")
	if tagline := strings.TrimSpace(cfg.Tagline); tagline != "" {
		b.WriteString("- BRAND CONTEXT: the HEADLINE given under TYPOGRAPHY, with Tagline: " + quote(tagline) + ".\n\n")
	} else {
		b.WriteString("- BRAND CONTEXT: the HEADLINE given under TYPOGRAPHY.\n\n")
	}
	b.WriteString("VISUAL STRATEGY:\n")
	writeNumbered(&b, visualStrategy)
	b.WriteString("\n")
	b.WriteString("ANTI-CLICHE PROTOCOL (STRICT):\n")
	writeLines(&b, antiCliche)
	b.WriteString("\n")

	b.WriteString("COLOR PALETTE (Apply with sophistication):\n")
	b.WriteString("- PRIMARY: " + cfg.Primary.String() + "\n")
	b.WriteString("- SECONDARY: " + cfg.Secondary.String() + "\n")
	b.WriteString("- ACCENT: " + cfg.Accent.String() + "\n")
	b.WriteString("- APPLICATION: Use these colors for lighting accents, gradients, and key visual anchors. Ensure high contrast for text readability.\n\n")

	b.WriteString("TYPOGRAPHY (Render exactly as written):\n")
	b.WriteString("- HEADLINE: " + quote(strings.TrimSpace(cfg.Headline)) + " (Large, Bold, Readable)\n")
	if tagline := strings.TrimSpace(cfg.Tagline); tagline != "" {
		b.WriteString("- SUBTITLE: " + quote(tagline) + "\n")
	}
	if cta := strings.TrimSpace(cfg.CTA); cta != "" {
		b.WriteString("- CTA: " + quote(cta) + " (Use Accent Color)\n")
	}

	return strings.TrimSpace(b.String())
}

func writeLines(b *strings.Builder, lines []string) {
	for _, line := range lines {
		b.WriteString("- " + line + "\n")
	}
}

func writeNumbered(b *strings.Builder, lines []string) {
	for i, line := range lines {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, line))
	}
}

// quote wraps user text in plain double quotes without escaping, so the model
// sees exactly what the user typed.
func quote(s string) string {
	return `"` + s + `"`
}
