package batch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pd-docgen/internal/logging"
	"pd-docgen/internal/model"
)

// Generator issues one remote documentation call.
type Generator interface {
	Generate(ctx context.Context, p model.Project, mode model.GenerationMode, description string) (string, error)
}

// Resolver maps a project id to its catalog record.
type Resolver interface {
	Lookup(id string) (model.Project, bool)
}

type Request struct {
	IDs         []string             `validate:"required,min=1,dive,required"`
	Mode        model.GenerationMode `validate:"oneof=raw enhanced"`
	Description string               `validate:"required_if=Mode enhanced"`
}

// ItemStart is reported right before the remote call for one item is issued.
type ItemStart struct {
	RunID   string
	Index   int
	Total   int
	Project model.Project
}

// Progress is emitted after each processed item. Outcomes is a copy owned by the receiver.
type Progress struct {
	RunID     string
	Completed int
	Total     int
	Current   model.GenerationJob
	Outcomes  []model.GenerationJob
	Elapsed   time.Duration
}

func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

type Runner struct {
	gen      Generator
	projects Resolver
	log      logrus.FieldLogger
	validate *validator.Validate
	now      func() time.Time
}

func NewRunner(gen Generator, projects Resolver, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logging.Discard()
	}
	return &Runner{
		gen:      gen,
		projects: projects,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// Batch is a validated, lazily executed run over a selection snapshot.
type Batch struct {
	r       *Runner
	req     Request
	run     model.BatchRun
	started time.Time
	pos     int
	err     error
	onStart func(ItemStart)
}

// Start validates req and returns a batch. No remote call is issued until Steps is iterated.
func (r *Runner) Start(req Request) (*Batch, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Mode == "" {
		req.Mode = model.ModeRaw
	}
	if err := r.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if !req.Mode.NeedsDescription() {
		req.Description = ""
	}
	ids := make([]string, len(req.IDs))
	copy(ids, req.IDs)
	req.IDs = ids

	now := r.now()
	return &Batch{
		r:       r,
		req:     req,
		started: now,
		run: model.BatchRun{
			RunID:     uuid.NewString(),
			Mode:      req.Mode,
			Total:     len(ids),
			Outcomes:  make([]model.GenerationJob, 0, len(ids)),
			StartedAt: now.UTC().Format(time.RFC3339),
		},
	}, nil
}

// OnStart registers a hook invoked before each remote call.
func (b *Batch) OnStart(fn func(ItemStart)) {
	b.onStart = fn
}

func (b *Batch) RunID() string {
	return b.run.RunID
}

// Steps yields one Progress per processed item, in request order.
// Breaking out of the loop pauses the batch; a later Steps call resumes it.
func (b *Batch) Steps(ctx context.Context) iter.Seq[Progress] {
	return func(yield func(Progress) bool) {
		for {
			p, ok := b.step(ctx)
			if !ok {
				return
			}
			if !yield(p) {
				return
			}
		}
	}
}

// Result returns a snapshot of the run so far.
func (b *Batch) Result() model.BatchRun {
	run := b.run
	run.Outcomes = append([]model.GenerationJob(nil), b.run.Outcomes...)
	return run
}

// Err reports why the batch stopped early, if it did.
func (b *Batch) Err() error {
	return b.err
}

func (b *Batch) step(ctx context.Context) (Progress, bool) {
	if b.err != nil || b.pos >= len(b.req.IDs) {
		return Progress{}, false
	}
	if err := ctx.Err(); err != nil {
		b.stop(err)
		return Progress{}, false
	}

	id := b.req.IDs[b.pos]
	index := b.pos + 1
	total := len(b.req.IDs)
	log := b.r.log.WithFields(logrus.Fields{
		"run_id":     b.run.RunID,
		"project_id": id,
		"index":      index,
		"total":      total,
	})

	var job model.GenerationJob
	project, found := b.r.projects.Lookup(id)
	if !found {
		job = model.FailedJob(model.Project{ID: id, Name: id}, "project not found in catalog")
		log.Warn("skipping unknown project")
	} else {
		if b.onStart != nil {
			b.onStart(ItemStart{RunID: b.run.RunID, Index: index, Total: total, Project: project})
		}
		callStart := b.r.now()
		content, err := b.r.gen.Generate(ctx, project, b.req.Mode, b.req.Description)
		elapsed := b.r.now().Sub(callStart)
		if err != nil {
			job = model.FailedJob(project, describeFailure(err))
			log.WithError(err).WithField("elapsed", elapsed).Warn("documentation generation failed")
			if ctxErr := ctx.Err(); ctxErr != nil {
				job.Error = "cancelled: " + job.Error
				b.stop(ctxErr)
			}
		} else {
			job = model.SucceededJob(project, content)
			log.WithField("elapsed", elapsed).WithField("bytes", len(content)).Info("documentation generated")
		}
	}

	b.pos++
	b.run.Outcomes = append(b.run.Outcomes, job)
	b.run.Completed = len(b.run.Outcomes)
	if b.run.Completed == b.run.Total {
		b.run.FinishedAt = b.r.now().UTC().Format(time.RFC3339)
	}

	return Progress{
		RunID:     b.run.RunID,
		Completed: b.run.Completed,
		Total:     b.run.Total,
		Current:   job,
		Outcomes:  append([]model.GenerationJob(nil), b.run.Outcomes...),
		Elapsed:   b.r.now().Sub(b.started),
	}, true
}

func (b *Batch) stop(err error) {
	b.err = err
	if b.run.FinishedAt == "" {
		b.run.FinishedAt = b.r.now().UTC().Format(time.RFC3339)
	}
	b.r.log.WithField("run_id", b.run.RunID).WithField("completed", b.run.Completed).WithError(err).Warn("batch stopped before completion")
}

// Run executes req to completion, calling onProgress after each item.
// A cancelled ctx stops the run early; the partial run is returned with ctx's error.
func (r *Runner) Run(ctx context.Context, req Request, onStart func(ItemStart), onProgress func(Progress)) (model.BatchRun, error) {
	b, err := r.Start(req)
	if err != nil {
		return model.BatchRun{}, err
	}
	b.OnStart(onStart)
	r.log.WithFields(logrus.Fields{
		"run_id": b.RunID(),
		"mode":   b.req.Mode,
		"total":  len(b.req.IDs),
	}).Info("batch started")

	for p := range b.Steps(ctx) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	run := b.Result()
	r.log.WithFields(logrus.Fields{
		"run_id":    run.RunID,
		"succeeded": run.Succeeded(),
		"failed":    run.Failed(),
	}).Info("batch finished")
	if b.Err() != nil {
		return run, b.Err()
	}
	return run, nil
}

// transportFailure is implemented by errors that never reached the server.
type transportFailure interface {
	TransportFailure() bool
}

func describeFailure(err error) string {
	var tf transportFailure
	if errors.As(err, &tf) && tf.TransportFailure() {
		return "network error - the API must be reachable and allow cross-origin requests: " + err.Error()
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "unknown error"
	}
	return msg
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	fe := verrs[0]
	switch {
	case strings.HasPrefix(fe.Field(), "IDs"):
		return fmt.Errorf("%w: select at least one project", model.ErrValidation)
	case fe.Field() == "Mode":
		return fmt.Errorf("%w: unknown generation mode %q", model.ErrValidation, fe.Value())
	case fe.Field() == "Description":
		return fmt.Errorf("%w: please provide a project description for AI-enhanced documentation", model.ErrValidation)
	default:
		return fmt.Errorf("%w: %s failed %q", model.ErrValidation, fe.Namespace(), fe.Tag())
	}
}
