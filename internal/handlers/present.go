package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"creator-studio-ai/internal/brand"
	"creator-studio-ai/internal/generate"
	"creator-studio-ai/internal/platform"
)

func (h *Handler) startGeneration(ctx context.Context, chatID, userID int64) error {
	if h.orch == nil {
		return h.tg.SendText(chatID, "❌ Generation is not configured.")
	}

	key := sessionKey(chatID, userID)
	st, _ := h.kits.Update(key, func(st *brand.Session) error {
		st.AwaitingField = ""
		st.AwaitingAttachment = ""
		return nil
	})

	p := &presenter{tg: h.tg, chatID: chatID, logger: h.logger, placeholders: make(map[platform.ID]int)}
	run, err := h.orch.Submit(ctx, key, st.Config, p.observe)
	switch {
	case errors.Is(err, generate.ErrCredentialUnavailable):
		return h.tg.SendText(chatID, "🔑 No API key is connected. Use /connect, then /generate again.")
	case errors.Is(err, generate.ErrRunInProgress):
		return h.tg.SendText(chatID, "⏳ Generation already in progress. Wait for it to finish.")
	case err != nil:
		return err
	case run == nil:
		return h.tg.SendText(chatID, "Select at least one platform first (/kit).")
	}
	return nil
}

// presenter mirrors one run into the chat: a placeholder per platform that
// is replaced as its slot settles, then a summary. Events arrive one at a
// time.
type presenter struct {
	tg     Bot
	chatID int64
	logger *slog.Logger

	placeholders map[platform.ID]int
}

func (p *presenter) observe(ev generate.Event) {
	switch {
	case ev.Done:
		if err := p.tg.SendText(p.chatID, runSummaryText(ev.Results)); err != nil {
			p.logger.Error("send summary failed", "run", ev.RunID, "err", err)
		}
	case ev.Changed != nil:
		p.settle(*ev.Changed)
	default:
		_ = p.tg.SendText(p.chatID, fmt.Sprintf("🎨 Generating %d banner(s)…", len(ev.Results)))
		for _, r := range ev.Results {
			id, err := p.tg.SendMessage(p.chatID, pendingText(r))
			if err != nil {
				p.logger.Warn("send placeholder failed", "platform", r.Platform, "err", err)
				continue
			}
			p.placeholders[r.Platform] = id
		}
	}
}

func (p *presenter) settle(r generate.Result) {
	msgID := p.placeholders[r.Platform]

	if r.Status == generate.StatusSucceeded && r.Image != nil {
		if _, err := p.tg.SendPhotoBytes(p.chatID, r.Image.MimeType, r.Image.Data, resultCaption(r)); err != nil {
			p.logger.Error("send banner failed", "platform", r.Platform, "err", err)
			p.replace(msgID, fmt.Sprintf("❌ %s: could not deliver the image", r.Label))
			return
		}
		if msgID != 0 {
			_ = p.tg.DeleteMessage(p.chatID, msgID)
		}
		return
	}

	p.replace(msgID, failureText(r))
}

func (p *presenter) replace(msgID int, text string) {
	if msgID != 0 {
		if err := p.tg.EditText(p.chatID, msgID, text); err == nil {
			return
		}
	}
	_ = p.tg.SendText(p.chatID, text)
}

func pendingText(r generate.Result) string {
	return fmt.Sprintf("⏳ %s (%s)…", r.Label, r.AspectRatio)
}

func failureText(r generate.Result) string {
	reason := r.Error
	if reason == "" {
		reason = "failed to generate"
	}
	return fmt.Sprintf("❌ %s: %s", r.Label, reason)
}

func resultCaption(r generate.Result) string {
	caption := fmt.Sprintf("✅ %s · %s", r.Label, r.AspectRatio)
	if d, ok := platform.Lookup(r.Platform); ok && d.TargetUsage != "" {
		caption += "\n" + d.TargetUsage
	}
	if len(r.Omitted) > 0 {
		caption += "\n⚠️ Skipped unreadable " + kindList(r.Omitted)
	}
	return caption
}

func runSummaryText(results []generate.Result) string {
	var ok, failed int
	omitted := map[brand.AttachmentKind]bool{}
	for _, r := range results {
		switch r.Status {
		case generate.StatusSucceeded:
			ok++
		case generate.StatusFailed:
			failed++
		}
		for _, k := range r.Omitted {
			omitted[k] = true
		}
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏁 Done: %d of %d ready", ok, len(results)))
	if failed > 0 {
		b.WriteString(fmt.Sprintf(", %d failed", failed))
	}
	b.WriteString(".")
	var kinds []brand.AttachmentKind
	for _, k := range []brand.AttachmentKind{brand.KindLogo, brand.KindHeadshot} {
		if omitted[k] {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) > 0 {
		b.WriteString("\n⚠️ The " + kindList(kinds) + " could not be read and was left out.")
	}
	b.WriteString("\nEdit the kit with /kit or run again with /generate.")
	return b.String()
}

func kindList(kinds []brand.AttachmentKind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, " and ")
}
