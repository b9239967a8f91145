// Package search runs nearby restaurant searches as single-load state
// machines: each fetch moves the observable state through
// Uninitialized → Loading → Success → Done, or Loading → Error.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/observability"
	"github.com/couchcryptid/nearby-search/internal/stream"
)

// State is the observable lifecycle of a nearby search.
type State = domain.LoadState[domain.SearchResults]

// Finder runs one full search chain for the given terms.
type Finder interface {
	FindNearby(ctx context.Context, terms *string) (domain.SearchResults, error)
}

// Policy decides what happens to a chain whose Loading state was replaced by
// a fetch with different terms.
type Policy int

const (
	// SupersededReport lets the superseded chain finish and reports its
	// completion as an invariant violation.
	SupersededReport Policy = iota
	// SupersededDiscard cancels the superseded chain and drops its completion.
	SupersededDiscard
)

// ParsePolicy maps "report" or "discard" onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "report":
		return SupersededReport, nil
	case "discard":
		return SupersededDiscard, nil
	default:
		return 0, fmt.Errorf("unknown superseded search policy %q", s)
	}
}

func (p Policy) String() string {
	if p == SupersededDiscard {
		return "discard"
	}
	return "report"
}

var (
	// errSuperseded rejects a late completion without surfacing it.
	errSuperseded = errors.New("search superseded")
	// errUnchanged ends a transition sequence, keeping the current state.
	errUnchanged = errors.New("state unchanged")
)

// transition computes the next state from the current one. A non-nil error
// rejects it: the sequence stops and the error becomes the new Error state,
// unless it is errSuperseded or errUnchanged, which leave the state untouched.
type transition func(cur State) (State, error)

// Controller owns the search state. apply is the only path that mutates it.
type Controller struct {
	mu     sync.Mutex
	state  *stream.Stream[State]
	closed bool

	finder  Finder
	policy  Policy
	logger  *slog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a controller in the Uninitialized state.
func NewController(finder Finder, policy Policy, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		state:   stream.New(domain.Uninitialized[domain.SearchResults](), State.Same),
		finder:  finder,
		policy:  policy,
		logger:  logger,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// State exposes the current state and every applied change.
func (c *Controller) State() stream.Observable[State] {
	return c.state
}

// Fetch starts a search for terms, or joins the one in flight when it is
// loading the same terms. The returned task is closed once its chain has
// reported back. After Close, Fetch starts nothing and returns nil unless it
// can join.
func (c *Controller) Fetch(terms *string) *domain.Task {
	var (
		task     *domain.Task
		taskCtx  context.Context
		joined   bool
		previous *domain.Task
	)

	c.apply(func(cur State) (State, error) {
		if cur.IsLoading(terms) {
			task, joined = cur.Task, true
			return cur, errUnchanged
		}
		if c.closed {
			return cur, errUnchanged
		}
		if cur.Phase == domain.PhaseLoading {
			previous = cur.Task
		}

		ctx, cancel := context.WithCancel(c.ctx)
		task, taskCtx = domain.NewTask(terms, cancel), ctx
		c.wg.Add(1)
		return domain.Loading[domain.SearchResults](terms, task), nil
	})

	switch {
	case joined:
		c.metrics.FetchRequests.WithLabelValues("joined").Inc()
		c.logger.Debug("joining in-flight search", "terms", domain.FormatTerms(terms), "task", task)
		return task
	case task == nil:
		c.logger.Warn("fetch after close ignored", "terms", domain.FormatTerms(terms))
		return nil
	}

	c.metrics.FetchRequests.WithLabelValues("started").Inc()
	if previous != nil {
		c.logger.Info("search superseded",
			"task", previous, "terms", domain.FormatTerms(previous.Terms), "policy", c.policy)
		if c.policy == SupersededDiscard {
			previous.Cancel()
		}
	}

	c.logger.Info("search started", "terms", domain.FormatTerms(terms), "task", task)
	go c.run(taskCtx, task)
	return task
}

// Wait blocks until every started chain has reported back.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight chains, waits for them and ends the state stream.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.state.Close()
}

func (c *Controller) run(ctx context.Context, task *domain.Task) {
	defer c.wg.Done()
	defer task.Finish()

	start := time.Now()
	results, err := c.finder.FindNearby(ctx, task.Terms)
	c.metrics.SearchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.fail(task, err)
		return
	}
	c.succeed(task, results)
}

func (c *Controller) succeed(task *domain.Task, results domain.SearchResults) {
	outcome := "success"
	c.apply(
		func(cur State) (State, error) {
			next := domain.Succeeded(results)
			if !cur.IsLoadingTask(task) {
				err := c.stale(cur, next)
				outcome = outcomeOf(err)
				return cur, err
			}
			return next, nil
		},
		func(cur State) (State, error) {
			next := domain.Done[domain.SearchResults]()
			if cur.Phase != domain.PhaseSuccess {
				outcome = "invariant_violation"
				return cur, domain.NewInvariantViolation(cur, next)
			}
			return next, nil
		},
	)

	c.metrics.SearchOutcomes.WithLabelValues(outcome).Inc()
	switch outcome {
	case "success":
		c.logger.Info("search succeeded", "task", task, "results", len(results.Restaurants))
	case "discarded":
		c.logger.Debug("superseded search result dropped", "task", task)
	default:
		c.logger.Error("search result rejected", "task", task)
	}
}

func (c *Controller) fail(task *domain.Task, cause error) {
	outcome := "error"
	c.apply(func(cur State) (State, error) {
		if !cur.IsLoadingTask(task) {
			err := c.stale(cur, domain.Failed[domain.SearchResults](cause))
			outcome = outcomeOf(err)
			return cur, err
		}
		return domain.Failed[domain.SearchResults](cause), nil
	})

	c.metrics.SearchOutcomes.WithLabelValues(outcome).Inc()
	switch outcome {
	case "error":
		c.logger.Warn("search failed", "task", task, "error", cause, "retryable", domain.IsRetryable(cause))
	case "discarded":
		c.logger.Debug("superseded search failure dropped", "task", task, "error", cause)
	default:
		c.logger.Error("search failure rejected", "task", task, "error", cause)
	}
}

// stale rejects a completion arriving for a task that no longer owns the
// Loading state.
func (c *Controller) stale(cur, next State) error {
	if c.policy == SupersededDiscard {
		return errSuperseded
	}
	return domain.NewInvariantViolation(cur, next)
}

func outcomeOf(err error) string {
	if errors.Is(err, errSuperseded) {
		return "discarded"
	}
	return "invariant_violation"
}

// apply runs steps in order against the current state while holding the
// lock, emitting each accepted state.
func (c *Controller) apply(steps ...transition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, step := range steps {
		next, err := step(c.state.Value())
		if errors.Is(err, errSuperseded) || errors.Is(err, errUnchanged) {
			return
		}
		if err != nil {
			c.state.Send(domain.Failed[domain.SearchResults](err))
			return
		}
		c.state.Send(next)
	}
}
