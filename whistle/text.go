// Package whistle builds whistle texts and checks them against the
// platform limit and recently posted output.
package whistle

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/aweist/whistle-bot/apperrors"
	"github.com/aweist/whistle-bot/models"
)

// Run lengths for each letter group of the whistle.
const (
	SsDefault     = 2
	HsDefault     = 2
	LowEsDefault  = 3
	HighEsDefault = 10
	HighOsDefault = 5
	LowOsDefault  = 3

	SsDelta     = 1
	HsDelta     = 1
	LowEsDelta  = 2
	HighEsDelta = 5
	HighOsDelta = 2
	LowOsDelta  = 2
)

const (
	DefaultText = "shhvreeeEEEEEEEEEEOOOOOooow"

	// RivalMarker replaces the high O run when playing the rival.
	RivalMarker = "O(THWg)O"

	DefaultCharLimit   = 280
	DefaultMaxAttempts = 100
)

// Suffix is an optional tag appended when the suffix draw passes its
// threshold. Above selects draw > Threshold, otherwise draw < Threshold.
type Suffix struct {
	Text      string
	Threshold float64
	Above     bool
}

// DefaultSuffixes are checked in order; the first match wins.
var DefaultSuffixes = []Suffix{
	{Text: " (#BlackLivesMatter)", Threshold: 0.95, Above: true},
	{Text: " (#StopAsianHate)", Threshold: 0.9, Above: true},
	{Text: " (#WearAMask)", Threshold: 0.1, Above: false},
}

var ErrExhausted = errors.New("no valid whistle text found")

// Generator produces whistle texts. It is not safe for concurrent use.
type Generator struct {
	rng         *rand.Rand
	suffixes    []Suffix
	rivalCode   string
	charLimit   int
	maxAttempts int
}

type GeneratorConfig struct {
	Seed        int64
	Suffixes    []Suffix
	RivalCode   string
	CharLimit   int
	MaxAttempts int
}

func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.CharLimit <= 0 {
		cfg.CharLimit = DefaultCharLimit
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Generator{
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		suffixes:    cfg.Suffixes,
		rivalCode:   cfg.RivalCode,
		charLimit:   cfg.CharLimit,
		maxAttempts: cfg.MaxAttempts,
	}
}

func (g *Generator) CharLimit() int {
	return g.charLimit
}

func (g *Generator) between(def, delta int) int {
	return def - delta + g.rng.Intn(2*delta+1)
}

// Random builds a whistle with each letter run drawn uniformly from
// [default-delta, default+delta], then maybe appends a suffix.
func (g *Generator) Random() string {
	text := build(
		g.between(SsDefault, SsDelta),
		g.between(HsDefault, HsDelta),
		g.between(LowEsDefault, LowEsDelta),
		g.between(HighEsDefault, HighEsDelta),
		strings.Repeat("O", g.between(HighOsDefault, HighOsDelta)),
		g.between(LowOsDefault, LowOsDelta),
	)

	draw := g.rng.Float64()
	for _, s := range g.suffixes {
		if (s.Above && draw > s.Threshold) || (!s.Above && draw < s.Threshold) {
			return text + s.Text
		}
	}
	return text
}

// Score builds the deterministic scoring whistle: the high E run grows
// with score, and the rival gets its marker instead of the high O run.
func (g *Generator) Score(score int, opponent string) string {
	highEs := HighEsDefault
	if score > highEs {
		highEs = score
	}
	highOs := strings.Repeat("O", HighOsDefault)
	if g.rivalCode != "" && opponent == g.rivalCode {
		highOs = RivalMarker
	}
	return build(SsDefault, HsDefault, LowEsDefault, highEs, highOs, LowOsDefault)
}

func build(ss, hs, lowEs, highEs int, highOs string, lowOs int) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("s", ss))
	b.WriteString(strings.Repeat("h", hs))
	b.WriteString("vr")
	b.WriteString(strings.Repeat("e", lowEs))
	b.WriteString(strings.Repeat("E", highEs))
	b.WriteString(highOs)
	b.WriteString(strings.Repeat("o", lowOs))
	b.WriteString("w")
	return b.String()
}

// Valid rejects text longer than the limit or equal to a recent output.
func (g *Generator) Valid(text string, recent []models.Whistle) bool {
	return Valid(text, g.charLimit, recent)
}

// Valid is the limit-and-duplicate check without a generator.
func Valid(text string, limit int, recent []models.Whistle) bool {
	if len(text) > limit {
		return false
	}
	for _, w := range recent {
		if w.Text == text {
			return false
		}
	}
	return true
}

// ValidRandom generates random whistles behind prefix until one is valid
// against recent, giving up after the configured number of attempts.
func (g *Generator) ValidRandom(prefix string, recent []models.Whistle) (string, error) {
	for i := 0; i < g.maxAttempts; i++ {
		text := prefix + g.Random()
		if g.Valid(text, recent) {
			return text, nil
		}
	}
	return "", apperrors.New(apperrors.KindTextGenerationExhausted, "whistle.generate", ErrExhausted)
}
