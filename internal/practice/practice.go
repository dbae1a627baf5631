// Package practice runs a self-graded listening drill over a pool of exam
// commands: a command is read out, the learner says whether they understood
// it, and the next one is drawn.
package practice

import (
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fahrprobe/fahrprobe-cli/internal/speech"
	"github.com/fahrprobe/fahrprobe-cli/internal/timeline"
)

// DefaultSpeakDelay is how long after a draw the command is read out.
const DefaultSpeakDelay = 500 * time.Millisecond

// Phase is where a round stands.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseListening Phase = "listening"
	PhaseRevealed  Phase = "revealed"
)

// Item is one practice prompt.
type Item struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Translation string `json:"translation"`
	Category    string `json:"category,omitempty"`
	Tip         string `json:"tip,omitempty"`
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	SessionID string `json:"session_id"`
	Phase     Phase  `json:"phase"`
	Current   *Item  `json:"current,omitempty"`
	Correct   int    `json:"correct"`
	Total     int    `json:"total"`
	Practiced int    `json:"practiced"`
	Available int    `json:"available"`
	Empty     bool   `json:"empty"`
}

// Accuracy is the share of judged items marked known, as a whole
// percentage.
func (s Snapshot) Accuracy() int {
	return percent(s.Correct, s.Total)
}

// Coverage is the share of the pool drawn in the current cycle, as a whole
// percentage.
func (s Snapshot) Coverage() int {
	return percent(s.Practiced, s.Available)
}

func percent(n, of int) int {
	if of <= 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(of) * 100))
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock schedules the speech delay on clock.
func WithClock(clock timeline.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithSpeaker reads items out through s.
func WithSpeaker(s speech.Speaker) Option {
	return func(c *Controller) { c.speaker = s }
}

// WithSeed makes draws reproducible.
func WithSeed(seed int64) Option {
	return func(c *Controller) { c.rng = rand.New(rand.NewSource(seed)) }
}

// WithSpeakDelay changes the delay between a draw and its speech.
func WithSpeakDelay(d time.Duration) Option {
	return func(c *Controller) { c.delay = d }
}

// Controller is the practice session state machine. It is safe for
// concurrent use.
type Controller struct {
	clock   timeline.Clock
	speaker speech.Speaker
	delay   time.Duration

	mu        sync.Mutex
	rng       *rand.Rand
	pool      []Item
	used      map[string]struct{}
	current   *Item
	phase     Phase
	correct   int
	total     int
	empty     bool
	sessionID string

	epoch uint64
	timer timeline.Timer
}

// New creates an idle controller over pool.
func New(pool []Item, opts ...Option) *Controller {
	c := &Controller{
		clock:     timeline.RealClock{},
		speaker:   speech.Nop{},
		delay:     DefaultSpeakDelay,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		pool:      slices.Clone(pool),
		used:      make(map[string]struct{}),
		phase:     PhaseIdle,
		sessionID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start draws the next item and schedules it to be read out. It reports
// false, leaving no current item, when the pool is empty.
func (c *Controller) Start() (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draw()
}

// Reveal shows the translation of the current item.
func (c *Controller) Reveal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseListening {
		c.phase = PhaseRevealed
	}
}

// MarkKnown counts the current item as understood and draws the next one.
func (c *Controller) MarkKnown() (Item, bool) {
	return c.judge(true)
}

// MarkUnknown counts the current item as missed and draws the next one.
func (c *Controller) MarkUnknown() (Item, bool) {
	return c.judge(false)
}

func (c *Controller) judge(known bool) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseListening && c.phase != PhaseRevealed {
		return Item{}, false
	}
	if known {
		c.correct++
	}
	c.total++
	return c.draw()
}

// Replay reads the current item out again, right away.
func (c *Controller) Replay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.speaker.Speak(c.current.Text, nil)
	}
}

// Reset zeroes the score, forgets drawn items and returns to idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// SetPool replaces the pool, for example after a filter change, and resets
// the session.
func (c *Controller) SetPool(pool []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pool = slices.Clone(pool)
	c.reset()
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		SessionID: c.sessionID,
		Phase:     c.phase,
		Correct:   c.correct,
		Total:     c.total,
		Practiced: len(c.used),
		Available: len(c.pool),
		Empty:     c.empty,
	}
	if c.current != nil {
		item := *c.current
		snap.Current = &item
	}
	return snap
}

func (c *Controller) reset() {
	c.cancelSpeech()
	c.speaker.Stop()
	c.correct = 0
	c.total = 0
	clear(c.used)
	c.current = nil
	c.phase = PhaseIdle
	c.empty = false
	c.sessionID = uuid.New().String()
}

// draw samples without replacement until the pool is exhausted, then starts
// a new cycle over the whole pool.
func (c *Controller) draw() (Item, bool) {
	c.cancelSpeech()

	if len(c.pool) == 0 {
		c.current = nil
		c.phase = PhaseIdle
		c.empty = true
		return Item{}, false
	}
	c.empty = false

	available := make([]int, 0, len(c.pool))
	for i, item := range c.pool {
		if _, used := c.used[item.ID]; !used {
			available = append(available, i)
		}
	}
	if len(available) == 0 {
		clear(c.used)
		for i := range c.pool {
			available = append(available, i)
		}
	}

	item := c.pool[available[c.rng.Intn(len(available))]]
	c.used[item.ID] = struct{}{}
	c.current = &item
	c.phase = PhaseListening
	c.scheduleSpeech(item.Text)
	return item, true
}

func (c *Controller) scheduleSpeech(text string) {
	epoch := c.epoch
	c.timer = c.clock.AfterFunc(c.delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if epoch != c.epoch {
			return
		}
		c.timer = nil
		c.speaker.Speak(text, nil)
	})
}

func (c *Controller) cancelSpeech() {
	c.epoch++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
