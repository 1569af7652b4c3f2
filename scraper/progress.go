package scraper

import (
	"sync/atomic"
	"time"
)

// Crawl states, in the order a run moves through them.
const (
	StateInit         = "init"
	StateResume       = "resume"
	StateFresh        = "fresh"
	StateCrawling     = "crawling"
	StateCompleted    = "completed"
	StateLimitReached = "limit_reached"
	StateFailed       = "failed"
)

// Progress holds the counters of a running crawl. The crawl goroutine
// writes them; anything else may read them concurrently.
type Progress struct {
	state    atomic.Value
	visited  atomic.Int64
	emitted  atomic.Int64
	skipped  atomic.Int64
	page     atomic.Int64
	maxPage  atomic.Int64
	started  atomic.Int64
	lastEmit atomic.Int64
}

func NewProgress() *Progress {
	p := &Progress{}
	p.state.Store(StateInit)
	p.started.Store(time.Now().Unix())
	return p
}

func (p *Progress) SetState(s string)   { p.state.Store(s) }
func (p *Progress) SetPage(n int)       { p.page.Store(int64(n)) }
func (p *Progress) SetMaxPage(n int)    { p.maxPage.Store(int64(n)) }
func (p *Progress) Visited()            { p.visited.Add(1) }
func (p *Progress) Skipped()            { p.skipped.Add(1) }
func (p *Progress) State() string       { return p.state.Load().(string) }
func (p *Progress) EmittedCount() int64 { return p.emitted.Load() }

// Emitted records one written row and returns the new total.
func (p *Progress) Emitted() int64 {
	p.lastEmit.Store(time.Now().Unix())
	return p.emitted.Add(1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	State     string    `json:"state"`
	Visited   int64     `json:"visited"`
	Emitted   int64     `json:"emitted"`
	Skipped   int64     `json:"skipped"`
	Page      int64     `json:"page"`
	MaxPage   int64     `json:"max_page"`
	StartedAt time.Time `json:"started_at"`
	LastEmit  time.Time `json:"last_emit,omitempty"`
}

func (p *Progress) Snapshot() Snapshot {
	s := Snapshot{
		State:     p.State(),
		Visited:   p.visited.Load(),
		Emitted:   p.emitted.Load(),
		Skipped:   p.skipped.Load(),
		Page:      p.page.Load(),
		MaxPage:   p.maxPage.Load(),
		StartedAt: time.Unix(p.started.Load(), 0).UTC(),
	}
	if last := p.lastEmit.Load(); last > 0 {
		s.LastEmit = time.Unix(last, 0).UTC()
	}
	return s
}
