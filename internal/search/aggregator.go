// Package search normalizes provider payloads into SearchResults and fans a
// query out to every configured source with independent per-source state.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/metrics"
	"github.com/tuannvm/devhub/internal/models"
)

// Source is one tracked search backend.
type Source struct {
	Name     string
	Searcher Searcher
	// Fallback is the error text used when a failure carries no message.
	Fallback string
}

func (s Source) fallback() string {
	if s.Fallback != "" {
		return s.Fallback
	}
	return fmt.Sprintf("%s search failed", s.Name)
}

// SourceState is the state of one source for the current search.
type SourceState struct {
	Status  models.SearchStageStatus `json:"status"`
	Results []models.SearchResult    `json:"results"`
	Error   string                   `json:"error,omitempty"`
}

// State is an immutable snapshot of the aggregator. Every update publishes a
// new State; the Sources map of a published State is never written again.
type State struct {
	RunID      string                 `json:"runId,omitempty"`
	Query      string                 `json:"query"`
	Generation uint64                 `json:"generation"`
	Order      []string               `json:"order"`
	Sources    map[string]SourceState `json:"sources"`
}

// Source returns the state of the named source.
func (s State) Source(name string) SourceState {
	if st, ok := s.Sources[name]; ok {
		return st
	}
	return SourceState{Status: models.StatusIdle, Results: []models.SearchResult{}}
}

// Done reports whether every tracked source reached a terminal status.
func (s State) Done() bool {
	for _, name := range s.Order {
		if !s.Source(name).Status.IsTerminal() {
			return false
		}
	}
	return true
}

// Results returns every source's results concatenated in tracking order.
func (s State) Results() []models.SearchResult {
	var out []models.SearchResult
	for _, name := range s.Order {
		out = append(out, s.Source(name).Results...)
	}
	return out
}

// Errors returns the error text of every failed source keyed by name.
func (s State) Errors() map[string]string {
	out := map[string]string{}
	for _, name := range s.Order {
		if st := s.Source(name); st.Status == models.StatusError {
			out[name] = st.Error
		}
	}
	return out
}

// Observer receives every published State.
type Observer func(State)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithObserver registers an observer. Observers are called one at a time in
// publication order and must not call back into the aggregator.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observers = append(a.observers, o) }
}

// WithLogger sets the aggregator logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Aggregator) { a.log = l }
}

// Aggregator runs every source concurrently and tracks each one's status
// independently. A newer Search supersedes an older one: the older run's
// context is cancelled and its late updates are dropped.
type Aggregator struct {
	sources   []Source
	observers []Observer
	log       *zap.SugaredLogger

	// publishMu serializes state changes with their notification.
	publishMu sync.Mutex

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
}

// NewAggregator creates an aggregator tracking sources in the given order.
func NewAggregator(sources []Source, opts ...Option) *Aggregator {
	a := &Aggregator{sources: sources}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logging.OrDefault(a.log)

	order := make([]string, 0, len(sources))
	states := make(map[string]SourceState, len(sources))
	for _, src := range sources {
		order = append(order, src.Name)
		states[src.Name] = SourceState{Status: models.StatusIdle, Results: []models.SearchResult{}}
	}
	a.state = State{Order: order, Sources: states}
	return a
}

// State returns the current snapshot.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Search runs query against every source and returns once each source has
// settled, along with the final snapshot of this run. A blank query is a
// no-op that returns the current state.
func (a *Aggregator) Search(ctx context.Context, query string) State {
	query = strings.TrimSpace(query)
	if query == "" {
		return a.State()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	gen := a.begin(query, cancel)
	a.log.Debugf("Search %d started for %q across %d sources", gen, query, len(a.sources))

	var g errgroup.Group
	for _, src := range a.sources {
		g.Go(func() error {
			start := time.Now()
			results, err := runSource(runCtx, src, query)
			a.settle(gen, src, results, err, time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	a.mu.Lock()
	if a.generation == gen {
		a.cancel = nil
	}
	final := a.state
	a.mu.Unlock()
	return final
}

// begin moves every source to loading in one transition and returns the new
// generation.
func (a *Aggregator) begin(query string, cancel context.CancelFunc) uint64 {
	a.publishMu.Lock()
	defer a.publishMu.Unlock()

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.generation++
	a.cancel = cancel

	states := make(map[string]SourceState, len(a.sources))
	for _, src := range a.sources {
		states[src.Name] = SourceState{Status: models.StatusLoading, Results: []models.SearchResult{}}
	}
	a.state = State{
		RunID:      uuid.NewString(),
		Query:      query,
		Generation: a.generation,
		Order:      a.state.Order,
		Sources:    states,
	}
	gen, snapshot := a.generation, a.state
	a.mu.Unlock()

	a.notify(snapshot)
	return gen
}

func (a *Aggregator) settle(gen uint64, src Source, results []models.SearchResult, err error, d time.Duration) {
	next := SourceState{Results: []models.SearchResult{}}
	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		next.Status = models.StatusError
		next.Error = err.Error()
		if next.Error == "" {
			next.Error = src.fallback()
		}
		outcome = metrics.OutcomeError
	case len(results) == 0:
		next.Status = models.StatusNoResults
		outcome = metrics.OutcomeNoResults
	default:
		next.Status = models.StatusSuccess
		next.Results = results
	}

	a.publishMu.Lock()
	defer a.publishMu.Unlock()

	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		a.log.Debugf("Dropping %s result of superseded search %d", src.Name, gen)
		metrics.ObserveSearch(src.Name, metrics.OutcomeStale, d)
		return
	}
	states := make(map[string]SourceState, len(a.state.Sources))
	for name, st := range a.state.Sources {
		states[name] = st
	}
	states[src.Name] = next
	snapshot := a.state
	snapshot.Sources = states
	a.state = snapshot
	a.mu.Unlock()

	if err != nil {
		a.log.Warnf("%s search failed: %v", src.Name, err)
	}
	metrics.ObserveSearch(src.Name, outcome, d)
	a.notify(snapshot)
}

func (a *Aggregator) notify(s State) {
	for _, o := range a.observers {
		o(s)
	}
}

// runSource turns a panicking searcher into an error so its source still
// settles.
func runSource(ctx context.Context, src Source, query string) (results []models.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", src.fallback(), r)
		}
	}()
	return src.Searcher.Search(ctx, query)
}
