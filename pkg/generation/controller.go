// Package generation runs one user submission at a time per conversation
// context: classify, dispatch to the matching remote action, retry, fall back
// and post-process, while publishing every state transition.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-assistant-be/pkg/actions"
	"ai-assistant-be/pkg/continuity"
	"ai-assistant-be/pkg/enrich"
	"ai-assistant-be/pkg/fallback"
	"ai-assistant-be/pkg/intent"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/resilient"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "ai-assistant-be/pkg/generation"

// Actions are the remote operations a session dispatches to.
type Actions interface {
	SendChat(ctx context.Context, req actions.ChatRequest) (actions.ChatReply, error)
	GenerateImage(ctx context.Context, prompt string) (actions.Image, error)
	GenerateDocumentContent(ctx context.Context, format intent.DocumentFormat, topic string) (actions.Document, error)
	GenerateScript(ctx context.Context, topic string) (string, error)
	TextToSpeech(ctx context.Context, text, voice string) (actions.Audio, error)
}

type Config struct {
	ContextID       string
	Policy          resilient.Policy
	EmojiLevel      enrich.EmojiLevel
	ResponseStyle   string
	Voice           string
	FallbackEnabled bool
	// HistoryWindow bounds how many local messages accompany an ephemeral
	// chat turn; zero sends all of them.
	HistoryWindow int
}

func DefaultConfig() Config {
	return Config{
		Policy:          resilient.DefaultPolicy(),
		EmojiLevel:      enrich.EmojiDefault,
		ResponseStyle:   actions.StyleBalanced,
		Voice:           "alloy",
		FallbackEnabled: true,
		HistoryWindow:   20,
	}
}

// Controller owns the single active session of one conversation context.
type Controller struct {
	cfg        Config
	actions    Actions
	auth       continuity.AuthChecker
	classifier *intent.Classifier
	tracker    *continuity.Tracker
	invoker    *resilient.Invoker
	processor  *enrich.Processor
	fallback   *fallback.Responder
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() string

	mu     sync.Mutex
	state  State
	active *Session
	closed bool
	wg     sync.WaitGroup

	subMu   sync.RWMutex
	subs    map[uint64]func(Event)
	nextSub uint64
}

type Option func(*Controller)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithInvoker(inv *resilient.Invoker) Option {
	return func(c *Controller) {
		if inv != nil {
			c.invoker = inv
		}
	}
}

func WithProcessor(p *enrich.Processor) Option {
	return func(c *Controller) {
		if p != nil {
			c.processor = p
		}
	}
}

// WithFallback replaces the offline reply set.
func WithFallback(r *fallback.Responder) Option {
	return func(c *Controller) {
		if r != nil {
			c.fallback = r
		}
	}
}

func WithTracker(t *continuity.Tracker) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracker = t
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// NewController wires a controller. auth and creator may be nil, in which case
// every conversation stays ephemeral and media requests are rejected.
func NewController(cfg Config, acts Actions, auth continuity.AuthChecker, creator continuity.ConversationCreator, opts ...Option) *Controller {
	c := &Controller{
		cfg:        cfg,
		actions:    acts,
		auth:       auth,
		classifier: intent.NewClassifier(),
		processor:  enrich.NewProcessor(),
		fallback:   fallback.New(),
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
		newID:      uuid.NewString,
		state:      StateIdle,
		subs:       make(map[uint64]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.invoker == nil {
		c.invoker = resilient.New(resilient.WithLogger(c.logger))
	}
	if c.tracker == nil {
		c.tracker = continuity.NewTracker(auth, creator, continuity.WithTrackerLogger(c.logger))
	}
	c.logger = c.logger.With(zap.String("context_id", cfg.ContextID))
	return c
}

// Submit starts a session for text and returns its handle immediately. Any
// session still running is cancelled first; the new one starts dispatching
// only after the old one has reached a terminal state. The session keeps the
// values of ctx but not its deadline or cancellation.
func (c *Controller) Submit(ctx context.Context, text string) (*Session, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}

	prev := c.active
	if prev != nil {
		prev.cancel(ErrSuperseded)
	}

	sessCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	s := &Session{
		ID:        c.newID(),
		ContextID: c.cfg.ContextID,
		Input:     text,
		StartedAt: c.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateIdle,
	}
	c.active = s
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(sessCtx, s, prev)
	return s, nil
}

// Cancel stops the active session if it has the given id. Cancelling a
// session that already finished is a no-op.
func (c *Controller) Cancel(sessionID string) error {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()

	if s == nil || s.ID != sessionID {
		return ErrSessionNotFound
	}
	s.cancel(ErrStopped)
	return nil
}

// Stop cancels whatever session is active.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s != nil {
		s.cancel(ErrStopped)
	}
}

// Close cancels the active session, rejects further submissions and waits
// for running sessions to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.active != nil {
		c.active.cancel(ErrClosed)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// State is the state of the active session, or Idle once it is terminal.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active returns the most recent session, which may already be terminal.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) ContextID() string {
	return c.cfg.ContextID
}

func (c *Controller) Conversation() continuity.Ref {
	return c.tracker.Ref()
}

func (c *Controller) LocalHistory() []continuity.Message {
	return c.tracker.LocalHistory()
}

// Subscribe registers fn for every event of this controller. Events are
// delivered synchronously, in order, from the session goroutine.
func (c *Controller) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) emit(e Event) {
	c.subMu.RLock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

func (c *Controller) transition(s *Session, to State, reason string) {
	t := s.record(to, reason, c.now())

	c.mu.Lock()
	if c.active == s {
		c.state = to
	}
	c.mu.Unlock()

	c.logger.Debug("session transition",
		zap.String("session_id", s.ID),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
		zap.String("reason", reason))

	c.emit(Event{
		Type:       EventTransition,
		ContextID:  s.ContextID,
		SessionID:  s.ID,
		Transition: &t,
		At:         t.At,
	})
}

// step reports progress inside Awaiting without a state change.
func (c *Controller) step(s *Session, name string) {
	c.emit(Event{
		Type:      EventStep,
		ContextID: s.ContextID,
		SessionID: s.ID,
		Step:      name,
		At:        c.now(),
	})
}

func (c *Controller) run(ctx context.Context, s *Session, prev *Session) {
	defer c.wg.Done()
	defer close(s.done)

	if prev != nil {
		<-prev.done
	}

	ctx, span := c.tracer.Start(ctx, "generation.session", trace.WithAttributes(
		attribute.String("session.id", s.ID),
		attribute.String("context.id", s.ContextID),
	))
	defer span.End()

	res := c.execute(ctx, s)
	res.SessionID = s.ID
	res.FinishedAt = c.now()
	if res.Err != nil {
		res.Error = res.Err.Error()
	}

	span.SetAttributes(
		attribute.String("session.kind", string(res.Kind)),
		attribute.String("session.state", string(res.State)),
		attribute.Bool("session.fallback", res.Fallback),
	)
	if res.State == StateFailed {
		span.SetStatus(codes.Error, res.Error)
	}

	reason := ""
	switch {
	case res.Fallback:
		reason = "offline fallback"
	case res.State == StateCancelled:
		reason = cancelReason(ctx)
	case res.State == StateFailed:
		reason = res.Error
	}

	s.mu.Lock()
	s.result = res
	s.mu.Unlock()

	c.transition(s, res.State, reason)

	c.mu.Lock()
	if c.active == s {
		c.state = StateIdle
	}
	c.mu.Unlock()

	c.logger.Info("session finished",
		zap.String("session_id", s.ID),
		zap.String("kind", string(res.Kind)),
		zap.String("state", string(res.State)),
		zap.Bool("fallback", res.Fallback),
		zap.Duration("elapsed", res.FinishedAt.Sub(s.StartedAt)))

	c.emit(Event{
		Type:      EventCompleted,
		ContextID: s.ContextID,
		SessionID: s.ID,
		Result:    &res,
		At:        res.FinishedAt,
	})
}

func (c *Controller) execute(ctx context.Context, s *Session) Result {
	if ctx.Err() != nil {
		return c.cancelled(ctx, Result{})
	}

	c.transition(s, StateClassifying, "")
	req := c.classifier.Classify(s.Input)
	res := Result{Kind: req.Kind(), Payload: intent.Payload(req), Conversation: c.tracker.Ref()}

	if req.Kind() != intent.KindChat && !c.authenticated(ctx) {
		res.State = StateFailed
		res.Err = ErrUnauthenticated
		return res
	}

	c.transition(s, StateDispatching, string(req.Kind()))

	switch r := req.(type) {
	case intent.Chat:
		return c.chat(ctx, s, r, res)
	case intent.ImageGeneration:
		c.transition(s, StateAwaiting, "")
		img, err := resilient.Invoke(ctx, c.invoker, c.cfg.Policy, func(ctx context.Context) (actions.Image, error) {
			return c.actions.GenerateImage(ctx, r.Prompt)
		})
		return c.media(ctx, res, err, func() *Media { return &Media{Kind: intent.KindImage, Image: &img} })
	case intent.DocumentGeneration:
		c.transition(s, StateAwaiting, "")
		doc, err := resilient.Invoke(ctx, c.invoker, c.cfg.Policy, func(ctx context.Context) (actions.Document, error) {
			return c.actions.GenerateDocumentContent(ctx, r.Format, r.Topic)
		})
		return c.media(ctx, res, err, func() *Media { return &Media{Kind: intent.KindDocument, Document: &doc} })
	case intent.PodcastGeneration:
		return c.podcast(ctx, s, r, res)
	default:
		res.State = StateFailed
		res.Err = fmt.Errorf("unsupported request kind %q", req.Kind())
		return res
	}
}

func (c *Controller) chat(ctx context.Context, s *Session, r intent.Chat, res Result) Result {
	ref, err := c.tracker.EnsureConversation(ctx, r.Text)
	if err != nil {
		// The tracker logs and retries creation on the next turn
		c.logger.Debug("continuing ephemeral", zap.Error(err))
	}
	res.Conversation = ref

	var history []llm.Message
	if !ref.HasID() {
		for _, m := range c.tracker.RecentHistory(c.cfg.HistoryWindow) {
			history = append(history, llm.Message{Role: m.Role, Content: m.Content})
		}
	}

	c.transition(s, StateAwaiting, "")
	reply, err := resilient.Invoke(ctx, c.invoker, c.cfg.Policy, func(ctx context.Context) (actions.ChatReply, error) {
		return c.actions.SendChat(ctx, actions.ChatRequest{
			ConversationID: ref.ID,
			Text:           r.Text,
			Style:          c.cfg.ResponseStyle,
			History:        history,
		})
	})

	switch {
	case isCancelled(ctx, err):
		return c.cancelled(ctx, res)
	case err == nil:
		if !ref.HasID() {
			c.tracker.AppendLocalHistory(continuity.RoleUser, r.Text)
			c.tracker.AppendLocalHistory(continuity.RoleAssistant, reply.Content)
		}
		enriched := c.processor.Enrich(reply.Content, c.cfg.EmojiLevel)
		res.State = StateCompleted
		res.Response = &enriched
		res.Metadata = reply.Metadata
		return res
	case resilient.IsExhausted(err) && c.cfg.FallbackEnabled:
		c.logger.Warn("chat provider exhausted, answering offline", zap.String("session_id", s.ID), zap.Error(err))
		enriched := c.processor.Enrich(c.fallback.Reply(r.Text), c.cfg.EmojiLevel)
		res.State = StateCompleted
		res.Response = &enriched
		res.Fallback = true
		return res
	default:
		res.State = StateFailed
		res.Err = err
		return res
	}
}

// podcast runs the script and the speech steps as separate invocations so
// a cancellation between them skips the second call.
func (c *Controller) podcast(ctx context.Context, s *Session, r intent.PodcastGeneration, res Result) Result {
	c.transition(s, StateAwaiting, "")
	c.step(s, StepScript)
	script, err := resilient.Invoke(ctx, c.invoker, c.cfg.Policy, func(ctx context.Context) (string, error) {
		return c.actions.GenerateScript(ctx, r.Topic)
	})
	if err != nil || ctx.Err() != nil {
		return c.media(ctx, res, err, nil)
	}

	c.step(s, StepAudio)
	audio, err := resilient.Invoke(ctx, c.invoker, c.cfg.Policy, func(ctx context.Context) (actions.Audio, error) {
		return c.actions.TextToSpeech(ctx, script, c.cfg.Voice)
	})
	return c.media(ctx, res, err, func() *Media {
		return &Media{Kind: intent.KindPodcast, Audio: &audio, Script: script}
	})
}

func (c *Controller) media(ctx context.Context, res Result, err error, build func() *Media) Result {
	switch {
	case isCancelled(ctx, err):
		return c.cancelled(ctx, res)
	case err != nil:
		res.State = StateFailed
		res.Err = err
	default:
		res.State = StateCompleted
		res.Media = build()
	}
	return res
}

func (c *Controller) cancelled(ctx context.Context, res Result) Result {
	res.State = StateCancelled
	res.Err = fmt.Errorf("%w: %w", resilient.ErrCancelled, context.Cause(ctx))
	return res
}

func (c *Controller) authenticated(ctx context.Context) bool {
	return c.auth != nil && c.auth.IsAuthenticated(ctx)
}

// isCancelled treats a result that arrives after cancellation as cancelled.
func isCancelled(ctx context.Context, err error) bool {
	return errors.Is(err, resilient.ErrCancelled) || ctx.Err() != nil
}

func cancelReason(ctx context.Context) string {
	if cause := context.Cause(ctx); cause != nil {
		return cause.Error()
	}
	return "cancelled"
}
