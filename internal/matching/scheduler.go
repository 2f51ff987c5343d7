package matching

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	apperrors "github.com/Aidin1998/codemeet/pkg/errors"
	"github.com/Aidin1998/codemeet/pkg/metrics"
)

var tracer = otel.Tracer("matching")

const DefaultInterval = 5 * time.Second

// SchedulerOptions wires the scheduler's collaborators. Events is optional.
type SchedulerOptions struct {
	Store    *QueueStore
	Engine   *Engine
	Gate     OpportunityGate
	Scopes   ScopeFactory
	Factory  *MatchFactory
	Notifier Notifier
	Events   EventPublisher
	Interval time.Duration
	Logger   *zap.Logger
}

// Scheduler periodically pairs queued users and turns each pair into a
// persisted match. Pairs are handled one at a time on the Run goroutine.
type Scheduler struct {
	store    *QueueStore
	engine   *Engine
	gate     OpportunityGate
	scopes   ScopeFactory
	factory  *MatchFactory
	notifier Notifier
	events   EventPublisher
	interval time.Duration
	logger   *zap.Logger
}

// TickResult summarizes one pass over the selected pairs.
type TickResult struct {
	Pairs        int
	Matched      int
	Insufficient int
	Failed       int
	Skipped      int
}

type pairOutcome uint8

const (
	pairMatched pairOutcome = iota
	pairInsufficient
	pairFailed
)

func NewScheduler(opts SchedulerOptions) (*Scheduler, error) {
	switch {
	case opts.Store == nil:
		return nil, apperrors.ErrInvalidArgument.Explain("scheduler: queue store is required")
	case opts.Engine == nil:
		return nil, apperrors.ErrInvalidArgument.Explain("scheduler: pairing engine is required")
	case opts.Gate == nil:
		return nil, apperrors.ErrInvalidArgument.Explain("scheduler: opportunity gate is required")
	case opts.Scopes == nil:
		return nil, apperrors.ErrInvalidArgument.Explain("scheduler: scope factory is required")
	case opts.Factory == nil:
		return nil, apperrors.ErrInvalidArgument.Explain("scheduler: match factory is required")
	case opts.Notifier == nil:
		return nil, apperrors.ErrInvalidArgument.Explain("scheduler: notifier is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Scheduler{
		store:    opts.Store,
		engine:   opts.Engine,
		gate:     opts.Gate,
		scopes:   opts.Scopes,
		factory:  opts.Factory,
		notifier: opts.Notifier,
		events:   opts.Events,
		interval: opts.Interval,
		logger:   opts.Logger,
	}, nil
}

// Run ticks until ctx is canceled. A tick always finishes before the next
// sleep starts, so ticks never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Matching scheduler started", zap.Duration("interval", s.interval))
	defer s.logger.Info("Matching scheduler stopped")

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		s.safeTick(ctx)

		timer.Reset(s.interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Matching tick panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	s.Tick(ctx)
}

// Tick runs a single matching pass. Once ctx is canceled no further
// opportunity is consumed; a pair already past consumption runs to the end.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	ctx, span := tracer.Start(ctx, "matching.Tick")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
		metrics.QueueSize.Set(float64(s.store.Count()))
	}()

	var res TickResult
	pairs := s.engine.FindPairs(s.store)
	res.Pairs = len(pairs)
	if len(pairs) == 0 {
		return res
	}
	metrics.PairsFound.Add(float64(len(pairs)))

	for i, pair := range pairs {
		if ctx.Err() != nil {
			res.Skipped = len(pairs) - i
			s.logger.Info("Matching tick canceled", zap.Int("skipped_pairs", res.Skipped))
			break
		}
		switch s.processPair(context.WithoutCancel(ctx), pair) {
		case pairMatched:
			res.Matched++
		case pairInsufficient:
			res.Insufficient++
		case pairFailed:
			res.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("pairs", res.Pairs),
		attribute.Int("matched", res.Matched),
		attribute.Int("insufficient", res.Insufficient),
		attribute.Int("failed", res.Failed),
	)
	s.logger.Info("Matching tick complete",
		zap.Int("pairs", res.Pairs),
		zap.Int("matched", res.Matched),
		zap.Int("insufficient", res.Insufficient),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Duration("elapsed", time.Since(start)))
	return res
}

func (s *Scheduler) processPair(ctx context.Context, pair MatchPair) (outcome pairOutcome) {
	ctx, span := tracer.Start(ctx, "matching.processPair")
	defer span.End()

	intervieweeID := pair.Interviewee.UserID
	interviewerID := pair.Interviewer.UserID
	span.SetAttributes(
		attribute.String("interviewee_id", intervieweeID),
		attribute.String("interviewer_id", interviewerID),
		attribute.String("difficulty", pair.CommonDifficulty.String()),
	)

	var consumed, committed bool
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Pair processing panicked",
				zap.Any("panic", r),
				zap.String("interviewee_id", intervieweeID),
				zap.String("interviewer_id", interviewerID),
				zap.Stack("stack"))
			span.SetStatus(codes.Error, "panic")
			metrics.PairFailures.WithLabelValues("panic").Inc()
			if consumed && !committed {
				s.refund(ctx, intervieweeID)
			}
			outcome = pairFailed
		}
	}()

	ok, err := s.gate.TryConsume(ctx, intervieweeID)
	if err != nil {
		s.logger.Error("Failed to consume opportunity",
			zap.String("interviewee_id", intervieweeID),
			zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "consume failed")
		metrics.PairFailures.WithLabelValues("consume").Inc()
		return pairFailed
	}
	if !ok {
		// The interviewer keeps their entry and may pair on a later tick.
		s.store.Dequeue(intervieweeID)
		metrics.InsufficientOpportunities.Inc()
		s.logger.Info("Interviewee has no opportunity left",
			zap.String("interviewee_id", intervieweeID),
			zap.String("interviewer_id", interviewerID))
		if err := s.notifier.InsufficientOpportunities(ctx, intervieweeID); err != nil {
			s.notifyFailed("insufficient_opportunities", intervieweeID, err)
		}
		return pairInsufficient
	}
	consumed = true

	m, stage, err := s.persist(ctx, pair)
	if err != nil {
		s.logger.Error("Failed to create match",
			zap.String("stage", stage),
			zap.String("interviewee_id", intervieweeID),
			zap.String("interviewer_id", interviewerID),
			zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, stage+" failed")
		metrics.PairFailures.WithLabelValues(stage).Inc()
		s.refund(ctx, intervieweeID)
		return pairFailed
	}
	committed = true

	s.store.RemovePair(intervieweeID, interviewerID)
	metrics.MatchesCreated.Inc()
	span.SetAttributes(attribute.String("match_id", m.ID.String()))
	s.logger.Info("Match created",
		zap.String("match_id", m.ID.String()),
		zap.String("interviewee_id", intervieweeID),
		zap.String("interviewer_id", interviewerID),
		zap.Stringer("difficulty", m.Difficulty),
		zap.Bool("video", m.EnableVideo))

	s.announce(ctx, m)
	return pairMatched
}

// persist creates the match inside its own scope. The returned stage names
// the step that failed.
func (s *Scheduler) persist(ctx context.Context, pair MatchPair) (*Match, string, error) {
	scope, err := s.scopes.Begin(ctx)
	if err != nil {
		return nil, "begin", apperrors.ErrPersistenceFailure.Wrap(err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := scope.Rollback(ctx); err != nil {
			s.logger.Warn("Failed to roll back match scope", zap.Error(err))
		}
	}()

	m, err := s.factory.Create(pair)
	if err != nil {
		return nil, "create", err
	}
	if err := s.factory.AssignResources(m); err != nil {
		return nil, "resources", err
	}
	if err := scope.Matches().Insert(ctx, m); err != nil {
		return nil, "insert", apperrors.ErrPersistenceFailure.Wrap(err)
	}
	if err := scope.Commit(ctx); err != nil {
		return nil, "commit", apperrors.ErrPersistenceFailure.Wrap(err)
	}
	committed = true
	return m, "", nil
}

// refund returns the consumed opportunity once. A failure is logged and
// left for reconciliation.
func (s *Scheduler) refund(ctx context.Context, userID string) {
	if err := s.gate.Award(ctx, userID, 1); err != nil {
		metrics.RefundFailures.Inc()
		s.logger.Error("Failed to refund opportunity",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	metrics.Refunds.Inc()
	s.logger.Info("Opportunity refunded", zap.String("user_id", userID))
}

func (s *Scheduler) announce(ctx context.Context, m *Match) {
	if err := s.notifier.MatchFound(ctx, m.ID, m.IntervieweeID, m.InterviewerID); err != nil {
		s.notifyFailed("match_found", m.IntervieweeID, err)
	}
	if err := s.notifier.MatchReady(ctx, m.IntervieweeID, m.ID, m.DocumentURL, m.VideoRoomURL); err != nil {
		s.notifyFailed("match_ready", m.IntervieweeID, err)
	}
	if err := s.notifier.MatchReady(ctx, m.InterviewerID, m.ID, m.DocumentURL, m.VideoRoomURL); err != nil {
		s.notifyFailed("match_ready", m.InterviewerID, err)
	}

	events := m.PullEvents()
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events); err != nil {
		s.logger.Warn("Failed to publish match events",
			zap.String("match_id", m.ID.String()),
			zap.Error(err))
	}
}

func (s *Scheduler) notifyFailed(kind, userID string, err error) {
	metrics.NotificationErrors.WithLabelValues(kind).Inc()
	s.logger.Warn("Failed to send notification",
		zap.String("kind", kind),
		zap.String("user_id", userID),
		zap.Error(err))
}
