package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/logger"
)

var tracer = otel.Tracer("midgard.jobs")

// Graph is one DAG of jobs. Create every job before starting any of them:
// Done is closed as soon as the number of unfinished jobs drops to zero.
type Graph struct {
	ctx   context.Context
	span  trace.Span
	name  string
	sched Scheduler
	log   *zap.Logger

	remaining atomic.Int64
	created   atomic.Int64
	done      chan struct{}
	doneOnce  sync.Once
	begun     time.Time
}

// NewGraph creates an empty graph whose jobs run on sched.
// The graph span is a child of any span carried by ctx.
func NewGraph(ctx context.Context, name string, sched Scheduler) *Graph {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("jobs.graph", name),
	))
	instrumentGraphStart(name)
	return &Graph{
		ctx:   ctx,
		span:  span,
		name:  name,
		sched: sched,
		log:   logger.Named("jobs"),
		done:  make(chan struct{}),
		begun: time.Now(),
	}
}

// Name returns the graph name.
func (g *Graph) Name() string {
	return g.name
}

// NewJob adds a job to the graph. fn receives a context carrying the job span.
func (g *Graph) NewJob(name string, fn func(ctx context.Context)) *Job {
	g.remaining.Add(1)
	g.created.Add(1)
	j := &Job{graph: g, name: name, fn: fn}
	j.pending.Store(1) // start token
	return j
}

// Done is closed once every job of the graph has finished.
func (g *Graph) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until the graph drains or ctx is done.
func (g *Graph) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Graph) jobFinished() {
	if g.remaining.Add(-1) != 0 {
		return
	}
	g.doneOnce.Do(func() {
		g.span.SetAttributes(attribute.Int64("jobs.count", g.created.Load()))
		g.span.End()
		instrumentGraphDone(g.name)
		g.log.Debug("graph drained",
			zap.String("graph", g.name),
			zap.Int64("jobs", g.created.Load()),
			zap.Duration("elapsed", time.Since(g.begun)))
		close(g.done)
	})
}

// Job is a node of a Graph.
type Job struct {
	graph *Graph
	name  string
	fn    func(ctx context.Context)

	// pending counts the start token plus every unfinished dependency.
	pending atomic.Int32
	started atomic.Bool

	mu         sync.Mutex
	successors []*Job
	finished   bool
}

// Name returns the job name.
func (j *Job) Name() string {
	return j.name
}

// DependsOn makes j wait for every job in deps. Dependencies that already
// finished are ignored. It returns j for chaining.
func (j *Job) DependsOn(deps ...*Job) *Job {
	for _, d := range deps {
		d.mu.Lock()
		if !d.finished {
			j.pending.Add(1)
			d.successors = append(d.successors, j)
		}
		d.mu.Unlock()
	}
	return j
}

// Start releases the job's start token. Only the first call has an effect;
// the job runs once all dependencies have also finished.
func (j *Job) Start() {
	if j.started.CompareAndSwap(false, true) {
		j.release()
	}
}

// Started reports whether Start has been called.
func (j *Job) Started() bool {
	return j.started.Load()
}

func (j *Job) release() {
	if j.pending.Add(-1) == 0 {
		j.graph.sched.Submit(j.run)
	}
}

func (j *Job) run() {
	ctx, span := tracer.Start(j.graph.ctx, j.name)
	begin := time.Now()
	if j.fn != nil {
		j.fn(ctx)
	}
	span.End()
	instrumentJob(j.graph.name, begin)

	j.mu.Lock()
	j.finished = true
	successors := j.successors
	j.successors = nil
	j.mu.Unlock()

	for _, s := range successors {
		s.release()
	}
	j.graph.jobFinished()
}
