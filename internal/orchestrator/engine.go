// Package orchestrator runs the per-turn policy pipeline: classify, gate,
// route, detect stalls, bound pressure, optionally generate, assemble,
// arbitrate and persist.
package orchestrator

// #region imports
import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/anchor"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/arbitration"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/codec"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/eval"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/lane"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/ledger"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/metrics"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/pressure"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/projection"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/recall"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/reply"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/session"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/signals"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/stall"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/state"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/turn"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/update"
)

// #endregion

const tracerName = "github.com/danielpatrickdp/adaptive-state/policy-engine/orchestrator"

// #region engine-struct

// Engine is stateless between turns; all cross-turn state lives in the
// Persistence collaborator.
type Engine struct {
	config     Config
	store      state.Persistence
	classifier *coordinate.Classifier
	producer   *signals.Producer
	router     *lane.Router
	recall     *recall.Gate
	evaluator  *eval.EvalHarness

	generator  codec.Generator
	embedder   recall.Embedder
	trigger    lane.NaturalTrigger
	provenance *sql.DB
	sessions   *session.Manager
	metrics    *metrics.Collector
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithGenerator sets the text-generation collaborator. Without one the
// engine composes replies from its own voice table.
func WithGenerator(g codec.Generator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithEmbedder enables embedding rerank in the recall gate.
func WithEmbedder(emb recall.Embedder) Option {
	return func(e *Engine) { e.embedder = emb }
}

// WithNaturalTrigger installs a natural-trigger hook. Its output is
// recorded only.
func WithNaturalTrigger(t lane.NaturalTrigger) Option {
	return func(e *Engine) { e.trigger = t }
}

// WithProvenance writes an audit row per turn to db's provenance_log.
func WithProvenance(db *sql.DB) Option {
	return func(e *Engine) { e.provenance = db }
}

// WithSessions serializes Process per conversation through m.
func WithSessions(m *session.Manager) Option {
	return func(e *Engine) { e.sessions = m }
}

// WithMetrics records per-turn metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithTracerProvider sets the span source. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source used when a turn carries no time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// #endregion

// #region constructor

// NewEngine wires the pipeline. store is required.
func NewEngine(store state.Persistence, config Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("orchestrator: nil persistence")
	}
	strategy, err := lane.StrategyByName(config.Strategy)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if config.DigestSize <= 0 {
		config.DigestSize = ledger.DefaultDigestSize
	}
	if config.UpsertAttempts <= 0 {
		config.UpsertAttempts = defaultUpsertAttempts
	}

	e := &Engine{
		config:     config,
		store:      store,
		classifier: coordinate.NewClassifier(),
		producer:   signals.NewProducer(config.Signals),
		evaluator:  eval.NewEvalHarness(config.Eval),
		tracer:     otel.GetTracerProvider().Tracer(tracerName),
		logger:     zap.NewNop(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.router = lane.NewRouter(strategy, e.trigger, config.Router)
	e.recall = recall.NewGate(e.embedder, config.Recall)
	return e, nil
}

// #endregion

// #region process

// Process normalizes a loose turn map and runs the pipeline.
func (e *Engine) Process(ctx context.Context, raw map[string]any) (Result, error) {
	tc, err := turn.Normalize(raw)
	if err != nil {
		return Result{}, fmt.Errorf("normalize turn: %w", err)
	}
	return e.ProcessTurn(ctx, tc)
}

// ProcessTurn runs one turn. The returned error is non-nil only for invalid
// input or cancellation; every other failure is folded into the decision.
// A cancelled turn persists nothing.
func (e *Engine) ProcessTurn(ctx context.Context, tc turn.Context) (Result, error) {
	if strings.TrimSpace(tc.ConversationID) == "" {
		return Result{}, errors.New("turn has no conversation id")
	}
	if tc.Now.IsZero() {
		tc.Now = e.now()
	}
	if e.sessions == nil {
		return e.run(ctx, tc)
	}
	var res Result
	err := e.sessions.WithLock(ctx, tc.ConversationID, func(ctx context.Context) error {
		var err error
		res, err = e.run(ctx, tc)
		return err
	})
	return res, err
}

func (e *Engine) run(ctx context.Context, tc turn.Context) (Result, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "turn", trace.WithAttributes(
		attribute.String("conversation.id", tc.ConversationID),
		attribute.String("turn.id", tc.TurnID),
	))
	defer span.End()

	log := e.logger.With(
		zap.String("component", "orch"),
		zap.String("conversation_id", tc.ConversationID),
		zap.String("turn_id", tc.TurnID),
	)
	res := Result{ConversationID: tc.ConversationID, TurnID: tc.TurnID}

	// 1. Read cross-turn state once.
	prev, stateOK := e.loadState(ctx, tc.ConversationID, log)
	tail := e.loadTail(ctx, tc.ConversationID, log)
	res.Digest = ledger.Digest(tail, e.config.DigestSize)

	// 2. Classify and gate.
	_, s := e.tracer.Start(ctx, "classify")
	res.Classified = e.classifier.Classify(tc.Text)
	s.SetAttributes(attribute.String("coordinate", res.Classified.String()))
	s.End()

	_, s = e.tracer.Start(ctx, "anchor")
	res.Anchor = anchor.Evaluate(anchor.Evidence{ChoiceID: tc.ChoiceID, ActionID: tc.ActionID}, tc.Now, prev.Anchor)
	nextAnchor := res.Anchor.Next(prev.Anchor)
	s.SetAttributes(
		attribute.String("anchor.reason", string(res.Anchor.Reason)),
		attribute.Bool("anchor.t_entry_ok", res.Anchor.TEntryOK),
	)
	s.End()

	merged := update.MergeCoordinate(prev.Coordinate, res.Classified,
		update.UpdateContext{TurnID: tc.TurnID, TEntryOK: res.Anchor.TEntryOK}, e.config.Update)
	res.Coordinate, res.Merge, res.FlowDelta = merged.Coordinate, merged.Decision, merged.FlowDelta

	// 3. Upstream signals, routing, stall, pressure.
	res.Meta = e.producer.Produce(signals.ProduceInput{
		Text:               tc.Text,
		LastUserText:       tc.LastUserText(),
		FlowDelta:          merged.FlowDelta,
		AnchorReason:       string(res.Anchor.Reason),
		Digest:             res.Digest,
		OverrideRepeat:     tc.RepeatSignal,
		OverrideFlowDelta:  tc.FlowDelta,
		OverrideAnchor:     tc.AnchorReason,
		OverrideConvReason: tc.ConvReason,
	})

	_, s = e.tracer.Start(ctx, "route")
	res.Route = e.router.Route(lane.Input{
		Depth:          res.Coordinate.Depth,
		Phase:          res.Coordinate.Phase,
		HasCore:        nextAnchor.HasCore(),
		DeclarationOK:  tc.DeclarationOK,
		DeepenOK:       tc.DeepenOK,
		FixedAnchorKey: nextAnchor.FixedKey,
		Text:           tc.Text,
	})
	res.Placeholder = lane.EvaluatePlaceholder(lane.PlaceholderInput{
		Band:          res.Coordinate.Depth.Band,
		DeclarationOK: tc.DeclarationOK,
		ReconfirmT:    res.Route.ReconfirmT,
		GoalKind:      tc.GoalKind,
	})
	s.SetAttributes(attribute.String("lane", string(res.Route.Lane)))
	s.End()

	res.Stall = stall.Detect(stall.Input{
		Text:    tc.Text,
		TurnID:  tc.TurnID,
		History: tc.History,
		Meta:    res.Meta,
	}, e.config.Stall)

	res.Allow = pressure.Build(pressure.Input{
		Depth:           res.Coordinate.Depth,
		Lane:            res.Route.Lane,
		QCode:           res.Coordinate.QCode,
		Stalled:         res.Stall.Stalled(),
		RepeatSignal:    res.Meta.SamePhrase(),
		IntentConfirmed: tc.IntentConfirmed,
	}, e.config.Pressure)

	log.Debug("policy envelope",
		zap.String("coordinate", res.Coordinate.String()),
		zap.String("merge", res.Merge.Action),
		zap.String("anchor_reason", string(res.Anchor.Reason)),
		zap.String("lane", string(res.Route.Lane)),
		zap.String("stall", string(res.Stall.Severity)),
		zap.Int("strength", res.Allow.Strength),
	)

	// 4. Recall and the single optional generation call.
	if tc.HardStop == turn.StopNone {
		_, s = e.tracer.Start(ctx, "recall")
		res.Recall = e.recall.Recall(ctx, tc.Text, tc.TurnID, tc.History)
		s.SetAttributes(attribute.Bool("recall.found", res.Recall.Found))
		s.End()
	}

	generated, genErr, emptyGen := e.generate(ctx, tc, res)
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return Result{}, err
	}

	// 5. Assemble and arbitrate exactly once.
	candidate := ""
	if !emptyGen {
		candidate = reply.Assemble(reply.Input{
			Generated: generated,
			QCode:     res.Coordinate.QCode,
			Allow:     res.Allow,
			Stall:     res.Stall,
			Recall:    res.Recall,
		})
	}

	var once arbitration.Once
	reasons := []string{string(res.Anchor.Reason)}
	if res.Stall.Stalled() {
		reasons = append(reasons, res.Stall.Reason)
	}
	decision, err := once.Decide(arbitration.Input{
		HardStop:    tc.HardStop,
		AllowLLM:    tc.AllowLLM,
		AllowRender: tc.AllowRender,
		Text:        candidate,
		Reasons:     reasons,
		Err:         genErr,
	})
	if err != nil {
		return Result{}, err
	}
	res.Decision = decision
	span.SetAttributes(attribute.String("decision.act", string(decision.Act())))
	if genErr != nil {
		span.RecordError(genErr)
	}

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return Result{}, err
	}

	// 6. Persist, only when the decision says so.
	if decision.ShouldPersist() && stateOK {
		e.persist(ctx, tc, prev, tail, nextAnchor, &res, log)
	}
	e.audit(ctx, tc, &res, log)

	e.metrics.ObserveTurn(metrics.Turn{
		Act:      string(decision.Act()),
		Lane:     string(res.Route.Lane),
		Stall:    string(res.Stall.Severity),
		Strength: res.Allow.Strength,
		Duration: time.Since(start),
	})
	log.Info("turn decided",
		zap.String("act", string(decision.Act())),
		zap.Strings("reasons", decision.Reasons()),
		zap.Int("text_len", len(decision.Text())),
		zap.Bool("persisted", res.Persisted()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// #endregion

// #region stages

func (e *Engine) loadState(ctx context.Context, conversationID string, log *zap.Logger) (state.Snapshot, bool) {
	prev, err := e.store.GetState(ctx, conversationID)
	switch {
	case err == nil:
		return prev, true
	case errors.Is(err, state.ErrNotFound):
		return state.Snapshot{ConversationID: conversationID}, true
	default:
		// Unknown prior state: run on a blank slate but never overwrite.
		log.Warn("read state failed", zap.Error(err))
		e.metrics.PersistFailed("read")
		return state.Snapshot{ConversationID: conversationID}, false
	}
}

func (e *Engine) loadTail(ctx context.Context, conversationID string, log *zap.Logger) []ledger.Event {
	tail, err := e.store.Events(ctx, conversationID, e.config.DigestSize*2)
	if err != nil {
		log.Warn("read ledger failed", zap.Error(err))
		return nil
	}
	return tail
}

// generate calls the generator at most once. emptyGen reports a backend
// that answered with no text; that candidate must stay empty.
func (e *Engine) generate(ctx context.Context, tc turn.Context, res Result) (text string, genErr error, emptyGen bool) {
	if e.generator == nil || tc.HardStop != turn.StopNone || !tc.LLMAllowed() {
		return "", nil, false
	}
	ctx, s := e.tracer.Start(ctx, "generate")
	defer s.End()

	env := projection.Envelope{
		Coordinate:  res.Coordinate,
		Lane:        res.Route.Lane,
		Allow:       res.Allow,
		Stall:       res.Stall,
		Placeholder: res.Placeholder,
		IntentCue:   res.Route.EnterIntentBand,
		Digest:      res.Digest,
	}
	out, err := e.generator.Generate(ctx, codec.Request{
		SystemPrompt: projection.SystemPrompt(env),
		UserPrompt:   projection.WrapPrompt(res.Recall, tc.Text),
		Temperature:  e.config.Temperature,
		MaxTokens:    e.config.MaxTokens,
	})
	switch {
	case err == nil:
		s.SetAttributes(attribute.Int("generate.len", len(out)))
		return out, nil, false
	case errors.Is(err, codec.ErrEmptyGeneration):
		return "", nil, true
	default:
		s.RecordError(err)
		s.SetStatus(codes.Error, "generation failed")
		return "", err, false
	}
}

// turnEvents builds this turn's ledger events in submission order.
func turnEvents(tc turn.Context, prev state.Snapshot, res Result) []ledger.Event {
	at := ledger.Stamp(tc.Now)
	events := []ledger.Event{ledger.New(ledger.KindMeta, "turn", tc.TurnID, at)}
	if res.Anchor.Event != anchor.EventNone {
		events = append(events, ledger.New(ledger.KindObs, "anchor", string(res.Anchor.Event), at))
	}
	from, to := prev.Coordinate.Depth, res.Coordinate.Depth
	if !to.IsZero() && from != to {
		label := from.String()
		if label == "" {
			label = "-"
		}
		events = append(events, ledger.New(ledger.KindShift, "depth", label+"->"+to.String(), at))
	}
	if res.Route.EnterIntentBand {
		events = append(events, ledger.New(ledger.KindObs, "intent", "enter", at))
	}
	if res.Placeholder.Released && res.Placeholder.Direction != "" {
		events = append(events, ledger.New(ledger.KindNext, "", res.Placeholder.Direction, at))
	}
	if res.Stall.Stalled() {
		events = append(events, ledger.New(ledger.KindHold, "stall", string(res.Stall.Severity), at))
	}
	return events
}

// persist validates the next snapshot, then appends this turn's ledger
// events and upserts. A snapshot that fails validation leaves both the
// ledger and the state as they were.
func (e *Engine) persist(ctx context.Context, tc turn.Context, prev state.Snapshot, tail []ledger.Event, nextAnchor anchor.State, res *Result, log *zap.Logger) {
	ctx, s := e.tracer.Start(ctx, "persist")
	defer s.End()

	coord := res.Coordinate
	patch := state.Patch{Coordinate: &coord, Anchor: &nextAnchor, At: tc.Now}
	if d := res.Coordinate.Depth; !d.IsZero() && d != prev.Coordinate.Depth {
		patch.FlowAppend = []string{d.String()}
	}

	result := e.evaluator.Run(prev, prev.Apply(patch), res.Anchor.TEntryOK)
	res.Eval = &result
	if !result.Passed {
		log.Warn("pre-upsert check failed, keeping previous snapshot", zap.String("reason", result.Reason))
		s.SetAttributes(attribute.String("eval.reason", result.Reason))
		return
	}

	// Ledger appends are best-effort and keep wall-clock order.
	l := ledger.NewLedger(tail)
	for _, ev := range l.Append(turnEvents(tc, prev, *res)...) {
		if err := e.store.AppendEvent(ctx, tc.ConversationID, ev); err != nil {
			log.Warn("ledger append failed", zap.String("kind", string(ev.T)), zap.Error(err))
			e.metrics.PersistFailed("ledger")
			continue
		}
		res.Events = append(res.Events, ev)
	}

	snap, err := upsertWithRetry(ctx, e.store, tc.ConversationID, patch, e.config.UpsertAttempts, log)
	if err != nil {
		s.RecordError(err)
		s.SetStatus(codes.Error, "upsert failed")
		e.metrics.PersistFailed("upsert")
		return
	}
	res.Snapshot = &snap
}

func (e *Engine) audit(ctx context.Context, tc turn.Context, res *Result, log *zap.Logger) {
	if e.provenance == nil {
		return
	}
	rec := logging.TurnRecord{
		TurnID:        tc.TurnID,
		Coordinate:    res.Coordinate.String(),
		TextLen:       len(tc.Text),
		ReplyText:     res.Decision.Text(),
		AnchorEvent:   string(res.Anchor.Event),
		AnchorReason:  string(res.Anchor.Reason),
		TEntryOK:      res.Anchor.TEntryOK,
		Lane:          string(res.Route.Lane),
		Strategy:      res.Route.Strategy,
		Placeholder:   res.Placeholder.Candidates,
		Strength:      res.Allow.Strength,
		CommitHint:    res.Allow.CommitHint,
		StallSeverity: string(res.Stall.Severity),
		StallReason:   res.Stall.Reason,
		RepeatSignal:  res.Meta.RepeatSignal,
		FlowDelta:     res.Meta.FlowDelta,
		ConvReason:    res.Meta.ConvReason,
		RecallVia:     string(res.Recall.Via),
		Act:           string(res.Decision.Act()),
		ShouldDisplay: res.Decision.ShouldDisplay(),
		ShouldPersist: res.Decision.ShouldPersist(),
	}
	versionID := ""
	if res.Snapshot != nil {
		versionID = res.Snapshot.VersionID
	}
	entry, err := logging.EntryFromRecord(tc.ConversationID, versionID, rec, res.Decision.Reasons(), res.Decision.ErrorDetail(), tc.Now)
	if err == nil {
		err = logging.LogDecision(ctx, e.provenance, entry)
	}
	if err != nil {
		log.Warn("provenance write failed", zap.Error(err))
		e.metrics.PersistFailed("provenance")
	}
}

// #endregion

// #region commit-anchor

// CommitAnchor fixes the conversation's anchor under key. It is the only
// path that sets fixed; no heuristic calls it.
func (e *Engine) CommitAnchor(ctx context.Context, conversationID, key string) (state.Snapshot, error) {
	var snap state.Snapshot
	commit := func(ctx context.Context) error {
		prev, err := e.store.GetState(ctx, conversationID)
		if err != nil && !errors.Is(err, state.ErrNotFound) {
			return fmt.Errorf("read state: %w", err)
		}
		now := e.now()
		st, err := anchor.Commit(prev.Anchor, key, now)
		if err != nil {
			return err
		}
		ev := ledger.New(ledger.KindNote, "anchor", "fixed", ledger.Stamp(now))
		if err := e.store.AppendEvent(ctx, conversationID, ev); err != nil {
			e.logger.Warn("ledger append failed", zap.String("component", "orch"), zap.Error(err))
		}
		snap, err = upsertWithRetry(ctx, e.store, conversationID, state.Patch{Anchor: &st, At: now}, e.config.UpsertAttempts, e.logger)
		return err
	}
	var err error
	if e.sessions == nil {
		err = commit(ctx)
	} else {
		err = e.sessions.WithLock(ctx, conversationID, commit)
	}
	return snap, err
}

// #endregion
