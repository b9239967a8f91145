package search

import (
	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/stream"
)

// LatestResults keeps the most recent successful results of a search state
// stream. It holds nil until the first success.
type LatestResults struct {
	latest *stream.Stream[*domain.SearchResults]
	sub    *stream.Subscription[State]
	done   chan struct{}
}

// NewLatestResults follows states from now on, starting from initial.
func NewLatestResults(states stream.Observable[State], initial *domain.SearchResults) *LatestResults {
	l := &LatestResults{
		latest: stream.New[*domain.SearchResults](initial, nil),
		sub:    states.Subscribe(),
		done:   make(chan struct{}),
	}
	go l.follow()
	return l
}

// Results is the observable view of the latest results.
func (l *LatestResults) Results() stream.Observable[*domain.SearchResults] {
	return l.latest
}

// Value returns the latest results, if any.
func (l *LatestResults) Value() (domain.SearchResults, bool) {
	r := l.latest.Value()
	if r == nil {
		return domain.SearchResults{}, false
	}
	return *r, true
}

// Close stops following and ends the view's stream.
func (l *LatestResults) Close() {
	l.sub.Cancel()
	<-l.done
}

func (l *LatestResults) follow() {
	defer close(l.done)
	defer l.latest.Close()

	for st := range l.sub.C() {
		if st.Phase != domain.PhaseSuccess {
			continue
		}
		data := st.Data
		l.latest.Send(&data)
	}
}
