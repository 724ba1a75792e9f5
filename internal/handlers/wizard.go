package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"creator-studio-ai/internal/brand"
	"creator-studio-ai/internal/credential"
	"creator-studio-ai/internal/platform"
	"creator-studio-ai/internal/telegram"
)

const kitCallbackPrefix = "kit"

type callback struct {
	Owner  int64
	Action string
	Args   []string
}

func parseCallback(data string) (callback, bool) {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, kitCallbackPrefix+":") {
		return callback{}, false
	}
	parts := strings.Split(data, ":")
	if len(parts) < 3 || parts[2] == "" {
		return callback{}, false
	}
	owner, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return callback{}, false
	}
	return callback{Owner: owner, Action: parts[2], Args: parts[3:]}, true
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", kitCallbackPrefix, ownerID, strings.Join(parts, ":"))
}

func (h *Handler) handleCallback(ctx context.Context, q *telegram.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}
	c, ok := parseCallback(q.Data)
	if !ok {
		return nil
	}
	if c.Owner != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This menu belongs to someone else.", true)
		return nil
	}

	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID
	key := sessionKey(chatID, c.Owner)
	arg := func(i int) string {
		if i < len(c.Args) {
			return c.Args[i]
		}
		return ""
	}

	var notice string
	_, err := h.kits.Update(key, func(st *brand.Session) error {
		st.MessageID = msgID

		switch c.Action {
		case "menu":
			st.Menu = normalizeMenu(arg(0))
		case "toggle":
			return st.Config.TogglePlatform(platform.ID(arg(0)))
		case "all":
			cat := categoryFromMenu(arg(0))
			ids := st.Config.Platforms
			for _, d := range platform.ByCategory(cat) {
				if !st.Config.Selected(d.ID) {
					ids = append(ids, d.ID)
				}
			}
			return st.Config.SetPlatforms(ids)
		case "none":
			cat := categoryFromMenu(arg(0))
			var ids []platform.ID
			for _, id := range st.Config.Platforms {
				if d, ok := platform.Lookup(id); ok && d.Category != cat {
					ids = append(ids, id)
				}
			}
			return st.Config.SetPlatforms(ids)
		case "safe":
			st.Config.OptimizeSafeZones = !st.Config.OptimizeSafeZones
		case "edit":
			if field, ok := brand.ParseField(arg(0)); ok {
				st.AwaitingField = field
				st.AwaitingAttachment = ""
				notice = fieldPromptText(field, st.Config.FieldValue(field))
			}
		case "upload":
			if kind, ok := brand.ParseAttachmentKind(arg(0)); ok {
				if st.Config.Attachment(kind) != nil {
					notice = occupiedText(kind)
					break
				}
				st.AwaitingAttachment = kind
				st.AwaitingField = ""
				notice = fmt.Sprintf("📷 Send the %s as a photo or image file (cancel: /cancel).", kind)
			}
		case "remove":
			if kind, ok := brand.ParseAttachmentKind(arg(0)); ok {
				st.Config.Detach(kind)
			}
		case "close":
			st.AwaitingField = ""
			st.AwaitingAttachment = ""
			st.Menu = "main"
		}
		return nil
	})
	if err != nil {
		h.logger.Warn("kit callback rejected", "action", c.Action, "err", err)
	}

	switch c.Action {
	case "generate":
		_ = h.tg.AnswerCallback(q.ID, "Generating…", false)
		return h.startGeneration(ctx, chatID, c.Owner)
	case "connect":
		_ = h.tg.AnswerCallback(q.ID, "Connecting…", false)
		if err := h.connect(ctx, chatID); err != nil {
			return err
		}
	case "reset":
		_ = h.tg.AnswerCallback(q.ID, "Reset", false)
		if h.orch == nil || !h.orch.Generating(key) {
			h.kits.Reset(key)
			if h.orch != nil {
				h.orch.Forget(key)
			}
		}
	default:
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
	}

	if notice != "" {
		_ = h.tg.SendText(chatID, notice)
	}
	if c.Action == "close" {
		return h.tg.EditText(chatID, msgID, kitSummaryText(h.kits.Get(key), h.gateState()))
	}
	return h.renderKit(chatID, c.Owner, msgID, true)
}

// renderKit edits the editor message in place when possible and sends a new
// one otherwise.
func (h *Handler) renderKit(chatID, userID int64, messageID int, edit bool) error {
	key := sessionKey(chatID, userID)
	st := h.kits.Get(key)
	if messageID == 0 {
		messageID = st.MessageID
	}

	text := kitText(st, h.gateState())
	kb := kitKeyboard(userID, st)

	if edit && messageID != 0 {
		if err := h.tg.EditTextWithKeyboard(chatID, messageID, text, kb); err == nil {
			return nil
		}
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.kits.Update(key, func(st *brand.Session) error {
		st.MessageID = msgID
		return nil
	})
	return nil
}

func (h *Handler) gateState() credential.State {
	if h.gate == nil {
		return credential.Unavailable
	}
	return h.gate.State()
}

func normalizeMenu(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "fields", "assets":
		return name
	}
	for _, cat := range platform.Categories() {
		if strings.ToLower(string(cat)) == name {
			return name
		}
	}
	return "main"
}

func categoryFromMenu(menu string) platform.Category {
	for _, cat := range platform.Categories() {
		if strings.EqualFold(string(cat), menu) {
			return cat
		}
	}
	return ""
}

func kitSummaryText(st brand.Session, state credential.State) string {
	cfg := st.Config

	var b strings.Builder
	b.WriteString("🎨 Brand Kit\n\n")
	b.WriteString(fmt.Sprintf("Headline: %s\n", valueOrDash(cfg.Headline)))
	b.WriteString(fmt.Sprintf("Subtitle: %s\n", valueOrDash(cfg.Tagline)))
	b.WriteString(fmt.Sprintf("CTA: %s\n", valueOrDash(cfg.CTA)))
	theme := cfg.Theme
	if theme == "" {
		theme = brand.DefaultTheme + " (default)"
	}
	b.WriteString(fmt.Sprintf("Theme: %s\n", truncateLine(theme, 80)))
	b.WriteString(fmt.Sprintf("Colors: %s / %s / %s\n", cfg.Primary, cfg.Secondary, cfg.Accent))
	b.WriteString(fmt.Sprintf("Safe zones: %s\n", onOff(cfg.OptimizeSafeZones)))
	b.WriteString(fmt.Sprintf("Logo: %s\n", attachmentStatus(cfg.Logo)))
	b.WriteString(fmt.Sprintf("Headshot: %s\n", attachmentStatus(cfg.Headshot)))

	if len(cfg.Platforms) == 0 {
		b.WriteString("Platforms: (none)\n")
	} else {
		labels := make([]string, 0, len(cfg.Platforms))
		for _, id := range cfg.Platforms {
			if d, ok := platform.Lookup(id); ok {
				labels = append(labels, d.Label)
			}
		}
		b.WriteString(fmt.Sprintf("Platforms (%d): %s\n", len(labels), strings.Join(labels, ", ")))
	}
	b.WriteString(fmt.Sprintf("API key: %s\n", credentialLabel(state)))
	return strings.TrimSpace(b.String())
}

func kitText(st brand.Session, state credential.State) string {
	var b strings.Builder
	b.WriteString(kitSummaryText(st, state))
	b.WriteString("\n")

	if cat := categoryFromMenu(st.Menu); cat != "" {
		b.WriteString(fmt.Sprintf("\n%s platforms:\n", cat))
		for _, d := range platform.ByCategory(cat) {
			b.WriteString(fmt.Sprintf("• %s (%s): %s\n", d.Label, d.AspectRatio, d.Description))
		}
	}

	switch {
	case st.AwaitingField != "":
		b.WriteString(fmt.Sprintf("\n📝 Waiting for the %s (cancel: /cancel).\n", strings.ToLower(fieldLabel(st.AwaitingField))))
	case st.AwaitingAttachment != "":
		b.WriteString(fmt.Sprintf("\n📷 Waiting for the %s image (cancel: /cancel).\n", st.AwaitingAttachment))
	case state != credential.Available:
		b.WriteString("\n🔑 Connect an API key before generating.\n")
	case len(st.Config.Platforms) == 0:
		b.WriteString("\nPick at least one platform, then Generate.\n")
	}
	return strings.TrimSpace(b.String())
}

func kitKeyboard(ownerID int64, st brand.Session) telegram.InlineKeyboard {
	switch st.Menu {
	case "fields":
		return fieldsKeyboard(ownerID, st)
	case "assets":
		return assetsKeyboard(ownerID, st)
	}
	if cat := categoryFromMenu(st.Menu); cat != "" {
		return categoryKeyboard(ownerID, st, cat)
	}
	return mainKeyboard(ownerID, st)
}

func mainKeyboard(ownerID int64, st brand.Session) telegram.InlineKeyboard {
	var rows [][]tgbotapi.InlineKeyboardButton

	var row []tgbotapi.InlineKeyboardButton
	for _, cat := range platform.Categories() {
		n := 0
		for _, d := range platform.ByCategory(cat) {
			if st.Config.Selected(d.ID) {
				n++
			}
		}
		label := string(cat)
		if n > 0 {
			label = fmt.Sprintf("%s (%d)", cat, n)
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "menu", strings.ToLower(string(cat)))))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📝 Text", cb(ownerID, "menu", "fields")),
			tgbotapi.NewInlineKeyboardButtonData("🖼 Logo & Headshot", cb(ownerID, "menu", "assets")),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("Safe zones: "+onOff(st.Config.OptimizeSafeZones), cb(ownerID, "safe")),
			tgbotapi.NewInlineKeyboardButtonData("🔑 Connect", cb(ownerID, "connect")),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🎨 Generate (%d)", len(st.Config.Platforms)), cb(ownerID, "generate")),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("Reset", cb(ownerID, "reset")),
			tgbotapi.NewInlineKeyboardButtonData("Close", cb(ownerID, "close")),
		},
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func categoryKeyboard(ownerID int64, st brand.Session, cat platform.Category) telegram.InlineKeyboard {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, d := range platform.ByCategory(cat) {
		label := "⬜ " + d.Label
		if st.Config.Selected(d.ID) {
			label = "✅ " + d.Label
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "toggle", string(d.ID))),
		})
	}

	menu := strings.ToLower(string(cat))
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("Select all", cb(ownerID, "all", menu)),
			tgbotapi.NewInlineKeyboardButtonData("Clear", cb(ownerID, "none", menu)),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", "main")),
		},
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func fieldsKeyboard(ownerID int64, st brand.Session) telegram.InlineKeyboard {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, field := range []brand.Field{brand.FieldHeadline, brand.FieldTagline, brand.FieldCTA, brand.FieldTheme} {
		label := fieldLabel(field)
		if st.Config.FieldValue(field) != "" {
			label = "✅ " + label
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "edit", string(field))),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", "main")),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func assetsKeyboard(ownerID int64, st brand.Session) telegram.InlineKeyboard {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, kind := range []brand.AttachmentKind{brand.KindLogo, brand.KindHeadshot} {
		title := strings.ToUpper(string(kind[:1])) + string(kind[1:])
		if st.Config.Attachment(kind) != nil {
			rows = append(rows, []tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("🗑 Remove "+string(kind), cb(ownerID, "remove", string(kind))),
			})
			continue
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📷 Upload "+title, cb(ownerID, "upload", string(kind))),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", "main")),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func attachmentStatus(a *brand.Attachment) string {
	if a == nil {
		return "(none)"
	}
	if a.Name != "" {
		return truncateLine(a.Name, 40) + " ✅"
	}
	return "saved ✅"
}

func credentialLabel(state credential.State) string {
	switch state {
	case credential.Available:
		return "connected ✅"
	case credential.Checking:
		return "checking…"
	default:
		return "not connected (/connect)"
	}
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return truncateLine(s, 80)
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
