package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"creator-studio-ai/internal/brand"
	"creator-studio-ai/internal/mediagroup"
	"creator-studio-ai/internal/telegram"
)

// imageFile picks the largest photo size, or an image document.
func imageFile(msg *telegram.Message) (mediagroup.File, bool) {
	if len(msg.Photo) > 0 {
		p := msg.Photo[len(msg.Photo)-1]
		return mediagroup.File{ID: p.FileID, Size: int64(p.FileSize)}, true
	}
	if d := msg.Document; d != nil && strings.HasPrefix(strings.ToLower(d.MimeType), "image/") {
		return mediagroup.File{ID: d.FileID, Name: d.FileName, MimeType: d.MimeType, Size: int64(d.FileSize)}, true
	}
	return mediagroup.File{}, false
}

func (h *Handler) awaitAttachment(chatID, userID int64, kind brand.AttachmentKind) error {
	st, _ := h.kits.Update(sessionKey(chatID, userID), func(st *brand.Session) error {
		if st.Config.Attachment(kind) != nil {
			return nil
		}
		st.AwaitingAttachment = kind
		st.AwaitingField = ""
		return nil
	})
	if st.AwaitingAttachment != kind {
		return h.tg.SendText(chatID, occupiedText(kind))
	}
	return h.tg.SendText(chatID, fmt.Sprintf("📷 Send the %s as a photo or image file (cancel: /cancel).", kind))
}

func (h *Handler) removeAttachment(chatID, userID int64, kind brand.AttachmentKind) error {
	var removed bool
	h.kits.Update(sessionKey(chatID, userID), func(st *brand.Session) error {
		removed = st.Config.Detach(kind)
		return nil
	})
	if !removed {
		return h.tg.SendText(chatID, fmt.Sprintf("No %s to remove.", kind))
	}
	_ = h.tg.SendText(chatID, fmt.Sprintf("🗑 %s removed.", strings.ToUpper(string(kind[:1]))+string(kind[1:])))
	return h.renderKit(chatID, userID, 0, false)
}

func (h *Handler) handleImage(ctx context.Context, chatID, userID int64, msg *telegram.Message, file mediagroup.File) error {
	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			File:         file,
		})
		return nil
	}
	return h.storeImages(ctx, chatID, userID, msg.Caption, []mediagroup.File{file})
}

func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	if err := h.storeImages(ctx, group.ChatID, group.UserID, group.Caption, group.Files); err != nil {
		h.logger.Error("media group processing failed", "err", err)
	}
}

// slotsFor assigns files to attachment slots: a kind named in the caption,
// then the kind being awaited, then whatever is free, logo before headshot.
func slotsFor(cfg brand.Configuration, awaiting brand.AttachmentKind, caption string, n int) []brand.AttachmentKind {
	taken := map[brand.AttachmentKind]bool{
		brand.KindLogo:     cfg.Logo != nil,
		brand.KindHeadshot: cfg.Headshot != nil,
	}

	var order []brand.AttachmentKind
	if kind, ok := brand.ParseAttachmentKind(caption); ok {
		order = append(order, kind)
	}
	if awaiting != "" {
		order = append(order, awaiting)
	}
	order = append(order, brand.KindLogo, brand.KindHeadshot)

	var out []brand.AttachmentKind
	for _, kind := range order {
		if len(out) == n {
			break
		}
		if taken[kind] {
			continue
		}
		taken[kind] = true
		out = append(out, kind)
	}
	return out
}

func (h *Handler) storeImages(ctx context.Context, chatID, userID int64, caption string, files []mediagroup.File) error {
	key := sessionKey(chatID, userID)
	st := h.kits.Get(key)

	// an explicitly requested slot that is taken is reported, not silently redirected
	want := st.AwaitingAttachment
	if kind, ok := brand.ParseAttachmentKind(caption); ok {
		want = kind
	}
	if want != "" && st.Config.Attachment(want) != nil {
		return h.tg.SendText(chatID, occupiedText(want))
	}

	kinds := slotsFor(st.Config, st.AwaitingAttachment, caption, len(files))
	if len(kinds) == 0 {
		return h.tg.SendText(chatID, "Logo and headshot are both set. Use /remove logo or /remove headshot first.")
	}
	files = files[:len(kinds)]

	h.tg.SendTyping(chatID)

	downloads := make([]brand.Attachment, len(files))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, f := range files {
		eg.Go(func() error {
			if f.Size > h.maxBytes {
				return fmt.Errorf("%w: %d bytes", brand.ErrAttachmentTooLarge, f.Size)
			}
			data, mimeType, err := h.tg.DownloadFile(egCtx, f.ID, h.maxBytes)
			if err != nil {
				return err
			}
			if f.MimeType != "" {
				mimeType = f.MimeType
			}
			downloads[i] = brand.Attachment{
				Kind:     kinds[i],
				Name:     f.Name,
				MimeType: brand.NormalizeMimeType(mimeType, data),
				Data:     data,
				MaxBytes: h.maxBytes,
			}
			if _, err := downloads[i].Load(); err != nil {
				return fmt.Errorf("%s: %w", kinds[i], err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("attachment download failed", "err", err)
		if errors.Is(err, brand.ErrAttachmentTooLarge) {
			return h.tg.SendText(chatID, fmt.Sprintf("❌ Image is too large (limit %d MB).", h.maxBytes>>20))
		}
		return h.tg.SendText(chatID, "❌ Could not read the image. Send a PNG, JPEG, WebP, GIF or BMP file.")
	}

	var stored []brand.AttachmentKind
	_, err := h.kits.Update(key, func(st *brand.Session) error {
		for _, a := range downloads {
			if err := st.Config.Attach(a.Kind, a); err != nil {
				return err
			}
			stored = append(stored, a.Kind)
			if st.AwaitingAttachment == a.Kind {
				st.AwaitingAttachment = ""
			}
		}
		return nil
	})
	if errors.Is(err, brand.ErrAttachmentOccupied) {
		_ = h.tg.SendText(chatID, "❌ "+err.Error()+". Remove it first.")
	} else if err != nil {
		return err
	}

	if len(stored) > 0 {
		names := make([]string, 0, len(stored))
		for _, k := range stored {
			names = append(names, string(k))
		}
		_ = h.tg.SendText(chatID, "✅ Saved: "+strings.Join(names, ", "))
	}
	return h.renderKit(chatID, userID, 0, false)
}

func occupiedText(kind brand.AttachmentKind) string {
	return fmt.Sprintf("A %s is already set. Remove it first with /remove %s.", kind, kind)
}
