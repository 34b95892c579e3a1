package status

import (
	"sync"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

// Global is the process-wide part of a report.
type Global struct {
	Status    domain.Status `json:"-"`
	Text      string        `json:"status"`
	Heartbeat uint64        `json:"heartbeat"`
	Time      time.Time     `json:"time"`
	// LastEvent is the most recent notable message.
	LastEvent string `json:"last_event,omitempty"`
	Healthy   bool   `json:"storage_healthy"`
	Sets      int    `json:"sets"`
}

// Set is the per-set part of a report.
type Set struct {
	Name        string        `json:"name"`
	Slot        int           `json:"slot"`
	Status      domain.Status `json:"-"`
	Text        string        `json:"status"`
	Message     string        `json:"message,omitempty"`
	File        string        `json:"file,omitempty"`
	Requested   string        `json:"requested"`
	Enabled     string        `json:"enabled"`
	Pending     string        `json:"pending"`
	Points      int           `json:"points"`
	Unreachable int           `json:"unreachable"`
	LastSave    time.Time     `json:"last_save,omitempty"`
	LastAttempt time.Time     `json:"last_attempt,omitempty"`
	LastBackup  time.Time     `json:"last_backup,omitempty"`
}

// Report is one cycle's published state.
type Report struct {
	Global Global `json:"global"`
	Sets   []Set  `json:"sets"`
}

// Publisher receives a report after every scheduler cycle. Publish is
// called from the scheduler goroutine and must not block.
type Publisher interface {
	Publish(r Report)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Report)

func (f PublisherFunc) Publish(r Report) { f(r) }

// Multi fans a report out to several publishers.
type Multi []Publisher

func (m Multi) Publish(r Report) {
	for _, p := range m {
		if p != nil {
			p.Publish(r)
		}
	}
}

// Board keeps the latest report for readers on other goroutines.
type Board struct {
	mu     sync.RWMutex
	report Report
	byName map[string]int
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{byName: map[string]int{}}
}

func (b *Board) Publish(r Report) {
	idx := make(map[string]int, len(r.Sets))
	for i, s := range r.Sets {
		idx[s.Name] = i
	}
	b.mu.Lock()
	b.report = r
	b.byName = idx
	b.mu.Unlock()
}

// Report returns the latest report. The Sets slice is a copy.
func (b *Board) Report() Report {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r := b.report
	r.Sets = append([]Set(nil), b.report.Sets...)
	return r
}

// Set returns the latest status of one set.
func (b *Board) Set(name string) (Set, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.byName[name]
	if !ok {
		return Set{}, false
	}
	return b.report.Sets[i], true
}
