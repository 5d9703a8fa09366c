package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/coerce"
	"github.com/iota-uz/unicorn-warehouse/pkg/composables"
	"github.com/iota-uz/unicorn-warehouse/pkg/logging"
)

type State string

const (
	StateIdle         State = "idle"
	StateExtracting   State = "extracting"
	StateTransforming State = "transforming"
	StateLoading      State = "loading"
	StateSleeping     State = "sleeping"
)

var states = []State{StateIdle, StateExtracting, StateTransforming, StateLoading, StateSleeping}

// Clock abstracts time so the loop can run without real sleeping.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() then.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type SchedulerOptions struct {
	MinInterval time.Duration
	MaxInterval time.Duration

	// Location decides which calendar day a cycle's load date falls on.
	Location *time.Location

	Clock Clock
	Rand  *rand.Rand

	Logger *logrus.Entry

	// OnTransition is called synchronously on every state change.
	OnTransition func(from, to State)
}

func (o *SchedulerOptions) setDefaults() {
	if o.MinInterval == 0 {
		o.MinInterval = 24 * time.Hour
	}
	if o.MaxInterval == 0 {
		o.MaxInterval = 48 * time.Hour
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Clock == nil {
		o.Clock = systemClock{}
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
}

// StageError reports the state a cycle failed in.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// CycleReport summarizes one cycle for logs and the once command.
type CycleReport struct {
	RunID        string  `json:"run_id"`
	LoadDate     string  `json:"load_date"`
	DurationSecs float64 `json:"duration_seconds"`
	RowsRead     int     `json:"rows_read"`
	RowsRejected int     `json:"rows_rejected"`
	LoadReport
	Error string `json:"error,omitempty"`
}

// Scheduler drives ETL cycles separated by a randomized sleep. A failed
// cycle is logged and followed by the same sleep; only cancellation ends Run.
type Scheduler struct {
	etl   ETL
	opts  SchedulerOptions
	state State
	m     *metrics
}

func NewScheduler(etl ETL, opts SchedulerOptions) (*Scheduler, error) {
	if etl == nil {
		return nil, errors.New("scheduler: etl is required")
	}
	opts.setDefaults()
	if opts.MinInterval < 0 || opts.MaxInterval < opts.MinInterval {
		return nil, fmt.Errorf("scheduler: invalid interval range [%s, %s]", opts.MinInterval, opts.MaxInterval)
	}
	s := &Scheduler{etl: etl, opts: opts, state: StateIdle, m: getMetrics()}
	s.publishState()
	return s, nil
}

func (s *Scheduler) State() State {
	return s.state
}

func (s *Scheduler) transition(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.publishState()
	if s.opts.OnTransition != nil {
		s.opts.OnTransition(from, to)
	}
}

func (s *Scheduler) publishState() {
	for _, st := range states {
		v := 0.0
		if st == s.state {
			v = 1
		}
		s.m.state.WithLabelValues(string(st)).Set(v)
	}
}

// Run loops until ctx is cancelled. Cancellation is a clean shutdown and
// returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			s.transition(StateIdle)
			return nil
		}

		// The error is already logged and counted by the cycle.
		_, _ = s.runCycle(ctx)

		s.transition(StateSleeping)
		delay := s.nextDelay()
		s.m.nextCycleDelay.Set(delay.Seconds())
		s.opts.Logger.WithField("sleep", delay.String()).Info("scheduler: sleeping until next cycle")

		if err := s.opts.Clock.Sleep(ctx, delay); err != nil {
			s.transition(StateIdle)
			return nil
		}
	}
}

// RunCycle runs a single cycle and returns to IDLE.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleReport, error) {
	report, err := s.runCycle(ctx)
	s.transition(StateIdle)
	return report, err
}

// nextDelay draws uniformly from [MinInterval, MaxInterval].
func (s *Scheduler) nextDelay() time.Duration {
	span := int64(s.opts.MaxInterval - s.opts.MinInterval)
	if span <= 0 {
		return s.opts.MinInterval
	}
	return s.opts.MinInterval + time.Duration(s.opts.Rand.Int63n(span+1)) //nolint:gosec
}

func (s *Scheduler) runCycle(ctx context.Context) (report CycleReport, err error) {
	start := s.opts.Clock.Now()
	loadDate := coerce.DateOnly(start.In(s.opts.Location))
	report = CycleReport{
		RunID:    uuid.NewString(),
		LoadDate: loadDate.Format(time.DateOnly),
	}

	logger := s.opts.Logger.WithFields(logrus.Fields{
		"run_id":    report.RunID,
		"load_date": report.LoadDate,
	})
	ctx = composables.WithLogger(ctx, logger)

	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: s.state, Err: fmt.Errorf("cycle panicked: %v", r)}
		}
		report.DurationSecs = s.opts.Clock.Now().Sub(start).Seconds()
		s.finishCycle(ctx, logger, &report, err)
	}()

	logger.Info("scheduler: cycle started")

	s.transition(StateExtracting)
	rows, err := s.etl.Extract(ctx)
	if err != nil {
		return report, &StageError{Stage: StateExtracting, Err: err}
	}
	report.RowsRead = len(rows)

	s.transition(StateTransforming)
	records, rejected := s.etl.Transform(ctx, rows, loadDate)
	report.RowsRejected = rejected

	s.transition(StateLoading)
	loaded, err := s.etl.Load(ctx, loadDate, records)
	report.LoadReport = loaded
	if err != nil {
		return report, &StageError{Stage: StateLoading, Err: err}
	}
	return report, nil
}

func (s *Scheduler) finishCycle(ctx context.Context, logger *logrus.Entry, report *CycleReport, err error) {
	s.m.rowsTotal.WithLabelValues("read").Add(float64(report.RowsRead))
	s.m.rowsTotal.WithLabelValues("rejected").Add(float64(report.RowsRejected))

	fields := logrus.Fields{
		"rows_read":          report.RowsRead,
		"rows_rejected":      report.RowsRejected,
		"dates_upserted":     report.DatesUpserted,
		"companies_inserted": report.CompaniesInserted,
		"companies_updated":  report.CompaniesUpdated,
		"companies_failed":   report.CompaniesFailed,
		"facts_upserted":     report.FactsUpserted,
		"facts_skipped":      report.FactsSkipped,
		"facts_failed":       report.FactsFailed,
		"duration":           report.DurationSecs,
	}

	var result string
	switch {
	case err != nil && ctx.Err() != nil:
		result = "cancelled"
		report.Error = err.Error()
		logger.WithFields(fields).WithError(err).Info("scheduler: cycle interrupted")
	case err != nil:
		result = "error"
		report.Error = logging.TruncateError(err, 2048)
		logger.WithFields(fields).WithError(err).Error("scheduler: cycle failed")
	case report.SkippedByLock:
		result = "skipped"
		logger.WithFields(fields).Info("scheduler: cycle skipped")
	default:
		result = "success"
		s.m.observeLoad(report.LoadReport)
		s.m.lastSuccess.Set(float64(s.opts.Clock.Now().Unix()))
		logger.WithFields(fields).Info("scheduler: cycle committed")
	}
	s.m.cyclesTotal.WithLabelValues(result).Inc()
	s.m.cycleDuration.WithLabelValues(result).Observe(report.DurationSecs)
}
