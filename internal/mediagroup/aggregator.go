// Package mediagroup collects the photos of a Telegram album, which arrive as
// separate updates, and delivers them as one batch once the album goes quiet.
package mediagroup

import (
	"fmt"
	"sync"
	"time"
)

// File is one uploaded image. Name and MimeType are empty for compressed
// photos and set for image documents.
type File struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
}

type Item struct {
	ChatID       int64
	UserID       int64
	MediaGroupID string
	Caption      string
	File         File
}

type Group struct {
	ChatID  int64
	UserID  int64
	Caption string
	// Files keep arrival order.
	Files []File
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Group)
}

type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Group)
	groups   map[string]*pendingGroup
}

type pendingGroup struct {
	group Group
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		groups:   make(map[string]*pendingGroup),
	}
}

// Add reports whether the item was queued. Items without an album id or file
// are not.
func (a *Aggregator) Add(item Item) bool {
	if item.MediaGroupID == "" || item.File.ID == "" {
		return false
	}

	key := makeKey(item.ChatID, item.MediaGroupID)

	a.mu.Lock()
	defer a.mu.Unlock()

	pg, ok := a.groups[key]
	if !ok {
		pg = &pendingGroup{
			group: Group{
				ChatID:  item.ChatID,
				UserID:  item.UserID,
				Caption: item.Caption,
			},
		}
		a.groups[key] = pg
	}
	pg.group.Files = append(pg.group.Files, item.File)
	if item.Caption != "" {
		pg.group.Caption = item.Caption
	}

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
	return true
}

// Pending returns the number of albums still waiting for their debounce.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

// FlushAll delivers every pending album immediately, e.g. on shutdown.
func (a *Aggregator) FlushAll() {
	a.mu.Lock()
	keys := make([]string, 0, len(a.groups))
	for key, pg := range a.groups {
		if pg.timer != nil {
			pg.timer.Stop()
		}
		keys = append(keys, key)
	}
	a.mu.Unlock()

	for _, key := range keys {
		a.flush(key)
	}
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pg, ok := a.groups[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)
	group := pg.group
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(group)
	}
}

func makeKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
