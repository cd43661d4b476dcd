package request

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Maximum number of requests in flight, per group.
const (
	WaitGroupConcurrencyLimit = 8
	RunGroupConcurrencyLimit  = 32
)

// WaitGroup sends each request as soon as Send is called, and Wait blocks until all of them complete.
// A failed request does not stop the others. Wait returns all failures, each labeled with its request.
// Use RunGroup to postpone sending or to stop at the first failure.
type WaitGroup struct {
	ctx context.Context
	wg  sync.WaitGroup
	sem *semaphore.Weighted

	lock sync.Mutex
	errs *multierror.Error
}

// NewWaitGroup creates a WaitGroup limited to WaitGroupConcurrencyLimit requests in flight.
func NewWaitGroup(ctx context.Context) *WaitGroup {
	return NewWaitGroupWithLimit(ctx, WaitGroupConcurrencyLimit)
}

// NewWaitGroupWithLimit creates a WaitGroup with a custom limit of requests in flight.
func NewWaitGroupWithLimit(ctx context.Context, limit int64) *WaitGroup {
	return &WaitGroup{ctx: ctx, sem: semaphore.NewWeighted(limit)}
}

// Send starts the request in the background.
// It can be called from a request listener, while Wait is in progress.
func (g *WaitGroup) Send(request Sendable) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.sem.Acquire(g.ctx, 1); err != nil {
			return
		}
		defer g.sem.Release(1)

		if err := request.SendOrErr(g.ctx); err != nil {
			g.lock.Lock()
			g.errs = multierror.Append(g.errs, labelError(request, err))
			g.lock.Unlock()
		}
	}()
}

// Wait blocks until all requests, including those sent meanwhile, complete.
// A single failure is returned as is, more failures are combined.
func (g *WaitGroup) Wait() error {
	g.wg.Wait()
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.errs == nil {
		return nil
	}
	if len(g.errs.Errors) == 1 {
		return g.errs.Errors[0]
	}
	g.errs.ErrorFormat = formatErrors
	return g.errs
}

// RunGroup collects requests by Add and sends them concurrently on RunAndWait.
// The first failure cancels the group context, the requests not yet started are skipped.
type RunGroup struct {
	ctx   context.Context
	start chan struct{}
	group *errgroup.Group
	sem   *semaphore.Weighted
}

// NewRunGroup creates a RunGroup limited to RunGroupConcurrencyLimit requests in flight.
func NewRunGroup(ctx context.Context) *RunGroup {
	return RunGroupWithLimit(ctx, RunGroupConcurrencyLimit)
}

// RunGroupWithLimit creates a RunGroup with a custom limit of requests in flight.
func RunGroupWithLimit(ctx context.Context, limit int64) *RunGroup {
	group, ctx := errgroup.WithContext(ctx)
	return &RunGroup{ctx: ctx, start: make(chan struct{}), group: group, sem: semaphore.NewWeighted(limit)}
}

// Add schedules the request.
// It can be called from a request listener, while RunAndWait is in progress.
func (g *RunGroup) Add(request Sendable) {
	g.group.Go(func() error {
		<-g.start
		if err := g.sem.Acquire(g.ctx, 1); err != nil {
			return err
		}
		defer g.sem.Release(1)

		if err := request.SendOrErr(g.ctx); err != nil {
			return labelError(request, err)
		}
		return nil
	})
}

// RunAndWait sends the scheduled requests and returns the first failure, if any.
func (g *RunGroup) RunAndWait() error {
	close(g.start)
	return g.group.Wait()
}

// ParallelRequests are independent requests sent as one Sendable.
type ParallelRequests []Sendable

// Parallel combines the requests, they are sent concurrently by a WaitGroup.
func Parallel(requests ...Sendable) ParallelRequests {
	return requests
}

func (v ParallelRequests) SendOrErr(ctx context.Context) error {
	wg := NewWaitGroup(ctx)
	for _, r := range v {
		wg.Send(r)
	}
	return wg.Wait()
}

// labelError prefixes the error of an HTTP request with its method and URL.
// The sentinel remains reachable by errors.Is.
func labelError(request Sendable, err error) error {
	if r, ok := request.(httpRequestReadOnly); ok {
		return fmt.Errorf(`%s "%s": %w`, r.Method(), r.URL(), err)
	}
	return err
}

func formatErrors(errs []error) string {
	var out strings.Builder
	fmt.Fprintf(&out, "%d requests failed:", len(errs))
	for _, err := range errs {
		out.WriteString("\n- ")
		out.WriteString(err.Error())
	}
	return out.String()
}
