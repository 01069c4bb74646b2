package whistle

import (
	"sort"
	"time"

	"github.com/aweist/whistle-bot/models"
)

// Window is a bounded most-recent-first list of emitted whistles.
type Window []models.Whistle

// NewWindow sorts whistles newest first and keeps at most size of them.
func NewWindow(whistles []models.Whistle, size int) Window {
	w := make(Window, len(whistles))
	copy(w, whistles)
	sort.SliceStable(w, func(i, j int) bool {
		return w[i].PostedAt.After(w[j].PostedAt)
	})
	if size > 0 && len(w) > size {
		w = w[:size]
	}
	return w
}

// Latest returns the most recent whistle, if any.
func (w Window) Latest() (models.Whistle, bool) {
	if len(w) == 0 {
		return models.Whistle{}, false
	}
	return w[0], true
}

// Wait returns how long to hold off before posting at now so that posts
// stay at least minInterval apart. Zero means post now.
func (w Window) Wait(now time.Time, minInterval time.Duration) time.Duration {
	latest, ok := w.Latest()
	if !ok || minInterval <= 0 {
		return 0
	}
	since := now.Sub(latest.PostedAt)
	if since < 0 || since >= minInterval {
		return 0
	}
	return minInterval - since
}
