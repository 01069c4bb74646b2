package scheduler

import (
	"sync"
	"time"

	"github.com/aweist/whistle-bot/models"
)

// Status is a snapshot of the scheduler for read-only consumers.
type Status struct {
	Day            string             `json:"day"`
	Phase          string             `json:"phase"`
	RegularEnabled bool               `json:"regular_enabled"`
	CeremonyToday  bool               `json:"ceremony_today"`
	Schedule       []string           `json:"schedule"`
	NextWhistle    string             `json:"next_whistle"`
	Game           *models.GameRecord `json:"game,omitempty"`
	Live           *models.GameState  `json:"live,omitempty"`
	Transport      string             `json:"transport"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// StatusBoard shares the latest Status between the actor and readers.
type StatusBoard struct {
	mu     sync.RWMutex
	status Status
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{status: Status{Phase: models.NotGameday.String()}}
}

func (b *StatusBoard) Set(s Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
}

func (b *StatusBoard) Get() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}
