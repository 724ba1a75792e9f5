package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"creator-studio-ai/internal/brand"
	"creator-studio-ai/internal/credential"
	"creator-studio-ai/internal/generate"
	"creator-studio-ai/internal/mediagroup"
	"creator-studio-ai/internal/platform"
	"creator-studio-ai/internal/telegram"
)

// Bot is the part of the Telegram client the handlers use.
type Bot interface {
	SendText(chatID int64, text string) error
	SendMessage(chatID int64, text string) (int, error)
	SendTextWithKeyboard(chatID int64, text string, kb telegram.InlineKeyboard) (int, error)
	EditText(chatID int64, messageID int, text string) error
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb telegram.InlineKeyboard) error
	DeleteMessage(chatID int64, messageID int) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendTyping(chatID int64)
	SendPhotoBytes(chatID int64, mimeType string, data []byte, caption string) (int, error)
	DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, string, error)
}

type Options struct {
	Telegram           Bot
	Kits               *brand.Store
	Orchestrator       *generate.Orchestrator
	Gate               *credential.Gate
	MaxAttachmentBytes int64
	Logger             *slog.Logger
}

type Handler struct {
	tg         Bot
	kits       *brand.Store
	orch       *generate.Orchestrator
	gate       *credential.Gate
	maxBytes   int64
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	kits := opts.Kits
	if kits == nil {
		kits = brand.NewStore()
	}
	maxBytes := opts.MaxAttachmentBytes
	if maxBytes <= 0 {
		maxBytes = brand.DefaultMaxAttachmentBytes
	}

	return &Handler{
		tg:       opts.Telegram,
		kits:     kits,
		orch:     opts.Orchestrator,
		gate:     opts.Gate,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

// Commands lists the bot menu in display order.
var Commands = []telegram.Command{
	{Name: "kit", Description: "Open the brand kit editor"},
	{Name: "generate", Description: "Generate banners for the selected platforms"},
	{Name: "headline", Description: "Set the headline"},
	{Name: "tagline", Description: "Set the subtitle"},
	{Name: "cta", Description: "Set the call to action"},
	{Name: "theme", Description: "Describe the visual theme"},
	{Name: "colors", Description: "Set the brand colors"},
	{Name: "platforms", Description: "Select platforms by id"},
	{Name: "logo", Description: "Upload a logo"},
	{Name: "headshot", Description: "Upload a headshot"},
	{Name: "remove", Description: "Remove the logo or headshot"},
	{Name: "connect", Description: "Connect the image generation key"},
	{Name: "cancel", Description: "Cancel the pending input"},
	{Name: "reset", Description: "Start over with a fresh kit"},
	{Name: "help", Description: "Show help"},
}

func sessionKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, msg)
	}

	if file, ok := imageFile(msg); ok {
		return h.handleImage(ctx, chatID, userID, msg, file)
	}

	if msg.Text != "" {
		return h.handleText(ctx, chatID, userID, msg.Text)
	}

	return nil
}

func (h *Handler) handleCommand(ctx context.Context, chatID, userID int64, msg *telegram.Message) error {
	key := sessionKey(chatID, userID)
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID, helpText())
	case "kit":
		h.kits.Update(key, func(st *brand.Session) error {
			st.Menu = "main"
			return nil
		})
		return h.renderKit(chatID, userID, 0, false)
	case "headline", "tagline", "cta", "theme":
		field, _ := brand.ParseField(msg.Command())
		if args == "" {
			return h.awaitField(chatID, userID, field)
		}
		return h.applyField(chatID, userID, field, args)
	case "colors":
		return h.handleColors(chatID, userID, args)
	case "platforms":
		return h.handlePlatforms(chatID, userID, args)
	case "logo", "headshot":
		kind, _ := brand.ParseAttachmentKind(msg.Command())
		return h.awaitAttachment(chatID, userID, kind)
	case "remove":
		kind, ok := brand.ParseAttachmentKind(args)
		if !ok {
			return h.tg.SendText(chatID, "Usage: /remove logo or /remove headshot")
		}
		return h.removeAttachment(chatID, userID, kind)
	case "generate":
		return h.startGeneration(ctx, chatID, userID)
	case "connect":
		return h.connect(ctx, chatID)
	case "cancel":
		h.kits.Update(key, func(st *brand.Session) error {
			st.AwaitingField = ""
			st.AwaitingAttachment = ""
			return nil
		})
		return h.tg.SendText(chatID, "Cancelled.")
	case "reset":
		if h.orch != nil && h.orch.Generating(key) {
			return h.tg.SendText(chatID, "⏳ A generation is still running. Try again when it finishes.")
		}
		h.kits.Reset(key)
		if h.orch != nil {
			h.orch.Forget(key)
		}
		_ = h.tg.SendText(chatID, "✅ Kit reset to defaults.")
		return h.renderKit(chatID, userID, 0, false)
	default:
		return h.tg.SendText(chatID, "Unknown command. See /help.")
	}
}

func (h *Handler) handleText(ctx context.Context, chatID, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	st := h.kits.Get(sessionKey(chatID, userID))
	if st.AwaitingField != "" {
		return h.applyField(chatID, userID, st.AwaitingField, text)
	}
	if st.AwaitingAttachment != "" {
		return h.tg.SendText(chatID, fmt.Sprintf("📷 Send the %s as a photo or image file (cancel: /cancel).", st.AwaitingAttachment))
	}
	return h.tg.SendText(chatID, "Open the editor with /kit or see /help.")
}

func (h *Handler) awaitField(chatID, userID int64, field brand.Field) error {
	st, _ := h.kits.Update(sessionKey(chatID, userID), func(st *brand.Session) error {
		st.AwaitingField = field
		st.AwaitingAttachment = ""
		return nil
	})
	return h.tg.SendText(chatID, fieldPromptText(field, st.Config.FieldValue(field)))
}

// applyField stores text for a field. A lone "-" clears it.
func (h *Handler) applyField(chatID, userID int64, field brand.Field, value string) error {
	if value == "-" {
		value = ""
	}
	_, err := h.kits.Update(sessionKey(chatID, userID), func(st *brand.Session) error {
		st.AwaitingField = ""
		return st.Config.SetField(field, value)
	})
	if err != nil {
		return h.tg.SendText(chatID, "❌ "+err.Error())
	}
	_ = h.tg.SendText(chatID, fmt.Sprintf("✅ %s updated.", fieldLabel(field)))
	return h.renderKit(chatID, userID, 0, false)
}

func (h *Handler) handleColors(chatID, userID int64, args string) error {
	key := sessionKey(chatID, userID)
	fields := strings.Fields(args)
	if len(fields) == 0 {
		st := h.kits.Get(key)
		return h.tg.SendText(chatID, fmt.Sprintf(
			"🎨 Colors\nPrimary: %s\nSecondary: %s\nAccent: %s\n\nUsage: /colors #6366f1 #ec4899 #fbbf24 (use - to keep a value)",
			st.Config.Primary, st.Config.Secondary, st.Config.Accent,
		))
	}
	if len(fields) > 3 {
		return h.tg.SendText(chatID, "Usage: /colors <primary> [secondary] [accent]")
	}

	values := make([]string, 3)
	for i, f := range fields {
		if f != "-" {
			values[i] = f
		}
	}
	_, err := h.kits.Update(key, func(st *brand.Session) error {
		return st.Config.SetColors(values[0], values[1], values[2])
	})
	if err != nil {
		return h.tg.SendText(chatID, "❌ Colors must look like #6366f1. Nothing was changed.")
	}
	return h.renderKit(chatID, userID, 0, false)
}

func (h *Handler) handlePlatforms(chatID, userID int64, args string) error {
	if args == "" {
		return h.tg.SendText(chatID, platformListText())
	}

	var ids []platform.ID
	for _, raw := range strings.FieldsFunc(args, func(r rune) bool { return r == ',' || r == ' ' }) {
		ids = append(ids, platform.ID(raw))
	}
	_, err := h.kits.Update(sessionKey(chatID, userID), func(st *brand.Session) error {
		return st.Config.SetPlatforms(ids)
	})
	if errors.Is(err, brand.ErrUnknownPlatform) {
		return h.tg.SendText(chatID, "❌ "+err.Error()+"\n\n"+platformListText())
	}
	if err != nil {
		return err
	}
	return h.renderKit(chatID, userID, 0, false)
}

func (h *Handler) connect(ctx context.Context, chatID int64) error {
	if h.gate == nil {
		return h.tg.SendText(chatID, "❌ Key selection is not available.")
	}
	switch h.gate.Connect(ctx) {
	case credential.Available:
		return h.tg.SendText(chatID, "🔑 API key connected. Use /generate.")
	case credential.Checking:
		return h.tg.SendText(chatID, "⏳ Key check already in progress.")
	default:
		return h.tg.SendText(chatID, "❌ No API key found. Add GEMINI_API_KEY to the environment or env file, then /connect again.")
	}
}

func helpText() string {
	var b strings.Builder
	b.WriteString("🎨 Creator Studio AI\n\n")
	b.WriteString("Build a brand kit, pick platforms and generate matching banners.\n\n")
	for _, c := range Commands {
		b.WriteString(fmt.Sprintf("/%s - %s\n", c.Name, c.Description))
	}
	b.WriteString("\nText fields: send - to clear. Send a logo and headshot together as an album to fill both slots.")
	return b.String()
}

func platformListText() string {
	var b strings.Builder
	b.WriteString("Platforms:\n")
	for _, p := range platform.All() {
		b.WriteString(fmt.Sprintf("%s - %s (%s)\n", p.ID, p.Label, p.AspectRatio))
	}
	b.WriteString("\nUsage: /platforms facebook_cover,twitter_header")
	return b.String()
}

func fieldLabel(field brand.Field) string {
	switch field {
	case brand.FieldHeadline:
		return "Headline"
	case brand.FieldTagline:
		return "Subtitle"
	case brand.FieldCTA:
		return "Call to action"
	case brand.FieldTheme:
		return "Theme"
	}
	return string(field)
}

func fieldPromptText(field brand.Field, current string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📝 Send the new %s", strings.ToLower(fieldLabel(field))))
	if field == brand.FieldTheme {
		b.WriteString(" (e.g. \"Warm editorial, film grain\")")
	}
	b.WriteString(".\n")
	if current != "" {
		b.WriteString("Current: " + truncateLine(current, 200) + "\n")
	}
	b.WriteString("Send - to clear, /cancel to keep it.")
	return b.String()
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
