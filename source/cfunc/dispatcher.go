package cfunc

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tim-hardcastle/cfunc/source/report"
	"github.com/tim-hardcastle/cfunc/source/settings"
)

// A BuildEvent describes one compilation, successful or not.
type BuildEvent struct {
	Header   []byte
	Impl     []byte
	Locals   []string
	Captures []string
	Outcome  string // "ok", or the identifier of the error that made the routine unusable.
	Err      error
	Duration time.Duration
	At       time.Time
}

// A Recorder is told about every compilation.
type Recorder interface {
	Record(ev BuildEvent) error
}

// The Dispatcher hands out callables, compiling each distinct routine once. Requests are served one
// at a time: a request that has to compile holds up every other request until it is done.
type Dispatcher struct {
	mu          sync.Mutex
	cache       *Cache
	backend     Backend
	retryFailed bool
	logger      *zap.Logger
	recorder    Recorder
	clock       clock.Clock
	metrics     *metrics

	indexed bool
	policy  EvictionPolicy
}

type Option func(*Dispatcher)

func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithBackend(b Backend) Option {
	return func(d *Dispatcher) { d.backend = b }
}

// WithRetryFailed makes a request for a routine whose compilation failed try again instead of
// returning the same unusable routine.
func WithRetryFailed(retry bool) Option {
	return func(d *Dispatcher) { d.retryFailed = retry }
}

func WithEviction(policy EvictionPolicy) Option {
	return func(d *Dispatcher) { d.policy = policy }
}

// WithIndex turns the cache's hash index on or off. Without it every lookup scans the cache from
// the most recently used entry.
func WithIndex(indexed bool) Option {
	return func(d *Dispatcher) { d.indexed = indexed }
}

func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// New makes a dispatcher configured from the environment, then from the options.
func New(opts ...Option) *Dispatcher {
	return NewFromConfig(settings.Default(), opts...)
}

func NewFromConfig(cfg settings.Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		retryFailed: cfg.RetryFailed,
		indexed:     cfg.Indexed,
		logger:      zap.NewNop(),
		clock:       clock.New(),
		metrics:     newMetrics(),
	}
	if cfg.MaxEntries > 0 {
		d.policy = MaxEntries(cfg.MaxEntries)
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.policy == nil {
		d.policy = Unbounded{}
	}
	if d.backend == nil {
		d.backend = NewNativeBackend(cfg, d.logger)
	}
	d.cache = NewCache(d.indexed, d.policy)
	return d
}

var (
	std     *Dispatcher
	stdOnce sync.Once
)

// Obtain returns a callable for the routine the producer describes, using the process-wide
// dispatcher.
func Obtain(p Producer) (Callable, error) {
	stdOnce.Do(func() { std = New() })
	return std.Obtain(p)
}

// Obtain returns a callable for the routine the producer describes. The producer is called once.
// If an identical routine has been asked for before, its compiled form is reused; otherwise the
// routine is compiled now.
//
// A routine that fails to compile is still returned, and cached: calling it returns the error. Only
// a producer that breaks its contract makes Obtain itself fail.
func (d *Dispatcher) Obtain(p Producer) (Callable, error) {
	header, impl, err := produce(p)
	if err != nil {
		return nil, err
	}
	cand := newCandidate(p, header, impl)
	var store CaptureStore
	if len(cand.captures) > 0 {
		s, ok := p.(CaptureStore)
		if !ok {
			return nil, report.CreateErr("cfunc/producer/capture", cand.captures)
		}
		store = s
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.cache.find(cand)
	switch {
	case e == nil:
		d.metrics.lookups.WithLabelValues("miss").Inc()
		d.logger.Debug("Routine not cached", zap.Int("locals", len(cand.locals)),
			zap.Int("captures", len(cand.captures)), zap.Int("impl_bytes", len(cand.impl)))
		e = d.cache.create(cand)
		d.metrics.entries.Set(float64(d.cache.Len()))
		d.compile(e)
	case !e.Usable() && d.retryFailed:
		d.metrics.lookups.WithLabelValues("retry").Inc()
		d.logger.Debug("Retrying failed routine")
		d.compile(e)
	default:
		d.metrics.lookups.WithLabelValues("hit").Inc()
	}
	return e.callable(store), nil
}

// compile generates, builds and loads the entry, and stores whatever came of it.
func (d *Dispatcher) compile(e *Entry) {
	start := d.clock.Now()
	unit := Generate(e)
	if settings.SHOW_SOURCE {
		d.logger.Debug("Compiling", zap.ByteString("source", unit))
	}
	native, err := d.backend.Compile(unit)
	if native == nil && err == nil {
		err = errors.New("backend returned no routine")
	}
	e.built = true
	e.compiled, e.failure = native, err
	elapsed := d.clock.Since(start)
	d.metrics.compileDuration.Observe(elapsed.Seconds())

	outcome := "ok"
	if err != nil {
		outcome = errorId(err)
		d.logger.Warn("Routine failed to compile; it will stay unusable",
			zap.String("outcome", outcome), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		d.logger.Info("Compiled routine", zap.Duration("elapsed", elapsed),
			zap.Strings("locals", e.locals), zap.Strings("captures", e.captures))
	}
	d.metrics.compiles.WithLabelValues(outcome).Inc()
	if d.recorder == nil {
		return
	}
	ev := BuildEvent{
		Header:   e.header,
		Impl:     e.impl,
		Locals:   e.locals,
		Captures: e.captures,
		Outcome:  outcome,
		Err:      err,
		Duration: elapsed,
		At:       start,
	}
	if rErr := d.recorder.Record(ev); rErr != nil {
		d.logger.Warn("Failed to record build", zap.Error(rErr))
	}
}

func errorId(err error) string {
	var e *report.Error
	if errors.As(err, &e) {
		return e.ErrorId
	}
	return "error"
}

// Source returns the translation unit the producer's routine compiles to, without compiling it or
// touching the cache.
func (d *Dispatcher) Source(p Producer) ([]byte, error) {
	header, impl, err := produce(p)
	if err != nil {
		return nil, err
	}
	cand := newCandidate(p, header, impl)
	e := &Entry{header: cand.header, impl: cand.impl, locals: cand.locals, captures: cand.captures}
	return Generate(e), nil
}

// Entries returns the cached routines, most recently used first.
func (d *Dispatcher) Entries() []*Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Entries()
}

func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Stats()
}
