package prompt

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-studio-ai/internal/brand"
	"creator-studio-ai/internal/platform"
)

func mustPlatform(t *testing.T, id platform.ID) platform.Descriptor {
	t.Helper()
	d, ok := platform.Lookup(id)
	require.True(t, ok)
	return d
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func baseConfig() brand.Configuration {
	cfg := brand.DefaultConfiguration()
	cfg.Headline = "Jane Doe"
	return cfg
}

func TestSafeZoneToggle(t *testing.T) {
	for _, p := range platform.All() {
		cfg := baseConfig()

		cfg.OptimizeSafeZones = true
		on := Text(p, cfg)
		assert.Contains(t, on, p.SafeZoneInstruction, p.ID)
		assert.Contains(t, on, "FORBIDDEN ELEMENTS")

		cfg.OptimizeSafeZones = false
		off := Text(p, cfg)
		assert.NotContains(t, off, p.SafeZoneInstruction, p.ID)
		assert.NotContains(t, off, "FORBIDDEN ELEMENTS")
	}
}

func TestHeadlineAppearsOnce(t *testing.T) {
	cfg := baseConfig()
	cfg.Tagline = "Helping you scale"
	cfg.CTA = "Link in Bio"
	cfg.Theme = "warm stone textures"

	for _, p := range platform.All() {
		text := Text(p, cfg)
		assert.Equal(t, 1, strings.Count(text, "Jane Doe"), p.ID)
	}
}

func TestOptionalTextFields(t *testing.T) {
	p := mustPlatform(t, platform.LinkedInEvent)

	cfg := baseConfig()
	text := Text(p, cfg)
	assert.NotContains(t, text, "SUBTITLE")
	assert.NotContains(t, text, "CTA:")
	assert.NotContains(t, text, "Tagline:")

	cfg.Tagline = "Helping you scale"
	cfg.CTA = "Link in Bio"
	text = Text(p, cfg)
	assert.Contains(t, text, `- SUBTITLE: "Helping you scale"`)
	assert.Contains(t, text, `- CTA: "Link in Bio" (Use Accent Color)`)
}

func TestSectionOrderAndDefaults(t *testing.T) {
	p := mustPlatform(t, platform.FacebookCover)
	text := Text(p, baseConfig())

	assert.True(t, strings.HasPrefix(text, "ROLE: You are a world-class Senior Art Director specializing in premium Facebook Cover design."))
	assert.Contains(t, text, "TARGET ASPECT RATIO: 16:9 (Usage: 820x312 pixels (Approx 2.6:1)).")
	assert.Contains(t, text, `INPUT THEME: "`+brand.DefaultTheme+`"`)
	assert.Contains(t, text, "- PRIMARY: #6366f1")

	var last int
	for _, heading := range []string{
		"ROLE:",
		"LAYOUT & COMPOSITION",
		"DYNAMIC CREATIVE DIRECTION",
		"ANTI-CLICHE PROTOCOL",
		"COLOR PALETTE",
		"TYPOGRAPHY",
	} {
		idx := strings.Index(text, heading)
		require.GreaterOrEqual(t, idx, last, heading)
		last = idx
	}
}

func TestThemeOverridesDefault(t *testing.T) {
	cfg := baseConfig()
	cfg.Theme = "dark cyberpunk city"
	text := Text(mustPlatform(t, platform.ZoomBackground), cfg)
	assert.Contains(t, text, `INPUT THEME: "dark cyberpunk city"`)
	assert.NotContains(t, text, brand.DefaultTheme)
}

func TestBuildAttachmentOrder(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, cfg.Attach(brand.KindHeadshot, brand.Attachment{Data: pngData(t)}))
	require.NoError(t, cfg.Attach(brand.KindLogo, brand.Attachment{Data: pngData(t), MimeType: "image/png"}))

	req := NewBuilder(Options{}).Build(mustPlatform(t, platform.YouTubeChannel), cfg)

	require.Len(t, req.Attachments, 2)
	assert.Equal(t, brand.KindLogo, req.Attachments[0].Kind)
	assert.Equal(t, brand.KindHeadshot, req.Attachments[1].Kind)
	assert.Contains(t, req.Attachments[0].Caption, "BRAND LOGO")
	assert.Contains(t, req.Attachments[1].Caption, "PRESERVE THE ORIGINAL HEAD ANGLE")
	assert.Equal(t, "image/png", req.Attachments[1].MimeType)
	assert.Empty(t, req.Omitted)
	assert.Equal(t, "16:9", req.AspectRatio)
}

func TestCorruptLogoDegradesToNoLogo(t *testing.T) {
	p := mustPlatform(t, platform.TwitterHeader)
	b := NewBuilder(Options{})

	clean := b.Build(p, baseConfig())

	cfg := baseConfig()
	require.NoError(t, cfg.Attach(brand.KindLogo, brand.Attachment{Name: "broken.png", Data: []byte("garbage")}))
	degraded := b.Build(p, cfg)

	assert.Equal(t, []brand.AttachmentKind{brand.KindLogo}, degraded.Omitted)
	degraded.Omitted = nil
	assert.Equal(t, clean, degraded)
}
