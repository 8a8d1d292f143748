package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pd-docgen/internal/logging"
	"pd-docgen/internal/model"
)

var (
	ErrNothingToExport = errors.New("no successful documentation to download")
	ErrNotExportable   = errors.New("only successful documentation can be downloaded")
)

const DefaultInterval = 200 * time.Millisecond

// DelayPolicy returns how long to wait before the export at position pos (0-based).
type DelayPolicy func(pos int) time.Duration

// Stagger spaces exports interval apart, the first one immediately.
func Stagger(interval time.Duration) DelayPolicy {
	if interval < 0 {
		interval = 0
	}
	return func(pos int) time.Duration {
		return time.Duration(pos) * interval
	}
}

// AfterFunc runs f once d has elapsed, on its own goroutine.
type AfterFunc func(d time.Duration, f func())

func timerAfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// Exported is the settled result of one scheduled export.
type Exported struct {
	Position int
	Job      model.GenerationJob
	File     string
	Location string
	Bytes    int
	Delay    time.Duration
	Err      error
}

type Scheduler struct {
	sink  Sink
	delay DelayPolicy
	after AfterFunc
	log   logrus.FieldLogger
}

type Option func(*Scheduler)

func WithDelayPolicy(p DelayPolicy) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.delay = p
		}
	}
}

func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.after = fn
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

func NewScheduler(sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:  sink,
		delay: Stagger(DefaultInterval),
		after: timerAfterFunc,
		log:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportOne writes a single successful job immediately.
func (s *Scheduler) ExportOne(ctx context.Context, job model.GenerationJob) (Exported, error) {
	if !job.Succeeded() {
		return Exported{Job: job}, fmt.Errorf("%w: %s", ErrNotExportable, job.ProjectName)
	}
	bs, batched := s.sink.(BatchSink)
	if batched {
		if err := bs.Begin(1); err != nil {
			return Exported{Job: job}, err
		}
	}
	res := s.write(ctx, 0, 0, job)
	if batched {
		if err := bs.Commit([]Exported{res}); err != nil {
			return res, errors.Join(res.Err, err)
		}
	}
	return res, res.Err
}

// ExportAll schedules one export per successful job, in outcome order, spaced by
// the delay policy. It returns as soon as the timers are armed.
func (s *Scheduler) ExportAll(ctx context.Context, outcomes []model.GenerationJob) (*Pending, error) {
	jobs := make([]model.GenerationJob, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Succeeded() {
			jobs = append(jobs, o)
		}
	}
	if len(jobs) == 0 {
		return nil, ErrNothingToExport
	}

	bs, batched := s.sink.(BatchSink)
	if batched {
		if err := bs.Begin(len(jobs)); err != nil {
			return nil, err
		}
	}

	p := &Pending{
		results: make([]Exported, len(jobs)),
		done:    make(chan struct{}),
	}
	p.wg.Add(len(jobs))
	for i, job := range jobs {
		d := s.delay(i)
		s.after(d, func() {
			defer p.wg.Done()
			p.results[i] = s.write(ctx, i, d, job)
		})
	}
	s.log.WithField("count", len(jobs)).Info("exports scheduled")

	go func() {
		p.wg.Wait()
		var errs []error
		for _, r := range p.results {
			if r.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", r.File, r.Err))
			}
		}
		if batched {
			if err := bs.Commit(p.results); err != nil {
				errs = append(errs, err)
			}
		}
		p.err = errors.Join(errs...)
		close(p.done)
	}()
	return p, nil
}

func (s *Scheduler) write(ctx context.Context, pos int, delay time.Duration, job model.GenerationJob) Exported {
	res := Exported{
		Position: pos,
		Job:      job,
		File:     FileName(job),
		Bytes:    len(job.Content),
		Delay:    delay,
	}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	loc, err := s.sink.Write(ctx, res.File, []byte(job.Content))
	res.Location = loc
	res.Err = err

	log := s.log.WithFields(logrus.Fields{"project_id": job.ProjectID, "file": res.File})
	if err != nil {
		log.WithError(err).Warn("export failed")
	} else {
		log.Debug("exported")
	}
	return res
}

// Pending tracks exports whose timers have been armed.
type Pending struct {
	wg      sync.WaitGroup
	results []Exported
	err     error
	done    chan struct{}
}

func (p *Pending) Len() int {
	return len(p.results)
}

// Done is closed once every export has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until every export settles and returns them by position
// together with the joined per-file errors.
func (p *Pending) Wait() ([]Exported, error) {
	<-p.done
	out := make([]Exported, len(p.results))
	copy(out, p.results)
	return out, p.err
}
