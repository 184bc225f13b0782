package generation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-assistant-be/pkg/actions"
	"ai-assistant-be/pkg/continuity"
	"ai-assistant-be/pkg/enrich"
	"ai-assistant-be/pkg/intent"
	"ai-assistant-be/pkg/resilient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errProvider = errors.New("provider unavailable")

type staticAuth bool

func (a staticAuth) IsAuthenticated(context.Context) bool { return bool(a) }

type fakeCreator struct{ calls atomic.Int32 }

func (f *fakeCreator) CreateConversation(context.Context, string) (string, error) {
	f.calls.Add(1)
	return "conv-42", nil
}

// fakeActions answers immediately unless block is set, in which case chat
// waits for ctx cancellation or release.
type fakeActions struct {
	mu       sync.Mutex
	chatReqs []actions.ChatRequest
	calls    []string

	chatReply string
	chatErr   error
	mediaErr  error
	block     chan struct{}
	started   chan struct{}
}

func (f *fakeActions) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeActions) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeActions) SendChat(ctx context.Context, req actions.ChatRequest) (actions.ChatReply, error) {
	f.mu.Lock()
	f.chatReqs = append(f.chatReqs, req)
	f.calls = append(f.calls, "chat:"+req.Text)
	block, started := f.block, f.started
	f.mu.Unlock()

	if block != nil {
		if started != nil {
			select {
			case started <- struct{}{}:
			default:
			}
		}
		select {
		case <-ctx.Done():
			return actions.ChatReply{}, ctx.Err()
		case <-block:
		}
	}
	if f.chatErr != nil {
		return actions.ChatReply{}, f.chatErr
	}
	reply := f.chatReply
	if reply == "" {
		reply = "Here is the answer."
	}
	return actions.ChatReply{Content: reply, Metadata: map[string]any{"style": req.Style}}, nil
}

func (f *fakeActions) GenerateImage(_ context.Context, prompt string) (actions.Image, error) {
	f.record("image:" + prompt)
	if f.mediaErr != nil {
		return actions.Image{}, f.mediaErr
	}
	return actions.Image{URL: "https://img/1.png", Filename: actions.Slug(prompt) + ".png"}, nil
}

func (f *fakeActions) GenerateDocumentContent(_ context.Context, format intent.DocumentFormat, topic string) (actions.Document, error) {
	f.record("document:" + string(format) + ":" + topic)
	if f.mediaErr != nil {
		return actions.Document{}, f.mediaErr
	}
	return actions.Document{Format: format, Text: "# " + topic, Filename: actions.Slug(topic) + "." + string(format)}, nil
}

func (f *fakeActions) GenerateScript(_ context.Context, topic string) (string, error) {
	f.record("script:" + topic)
	if f.mediaErr != nil {
		return "", f.mediaErr
	}
	return "Welcome to a show about " + topic + ".", nil
}

func (f *fakeActions) TextToSpeech(_ context.Context, text, voice string) (actions.Audio, error) {
	f.record("tts:" + voice)
	return actions.Audio{Data: []byte(text), ContentType: "audio/mpeg", Filename: "episode.mp3", Voice: voice}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ContextID = "ctx-1"
	cfg.Policy = resilient.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, BackoffMultiplier: 2}
	cfg.EmojiLevel = enrich.EmojiLess
	cfg.Voice = "nova"
	return cfg
}

func wait(t *testing.T, s *Session) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	require.NoError(t, err)
	return res
}

func states(ts []Transition) []State {
	out := make([]State, len(ts))
	for i, tr := range ts {
		out[i] = tr.To
	}
	return out
}

func TestSubmitChatCompletes(t *testing.T) {
	acts := &fakeActions{chatReply: "Great question! Here is the **answer**."}
	c := NewController(testConfig(), acts, nil, nil)
	defer c.Close()

	s, err := c.Submit(context.Background(), "  hi  ")
	require.NoError(t, err)
	res := wait(t, s)

	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, intent.KindChat, res.Kind)
	require.NotNil(t, res.Response)
	assert.Equal(t, "Great question! Here is the **answer**.", res.Response.Undecorated())
	assert.False(t, res.Fallback)
	assert.True(t, res.Conversation.Ephemeral)
	assert.Equal(t, []State{StateClassifying, StateDispatching, StateAwaiting, StateCompleted}, states(s.Transitions()))
	assert.Equal(t, StateIdle, c.State())

	history := c.LocalHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, continuity.RoleAssistant, history[1].Role)
}

func TestSubmitChatSendsLocalHistoryWhenEphemeral(t *testing.T) {
	acts := &fakeActions{}
	c := NewController(testConfig(), acts, nil, nil)
	defer c.Close()

	first, err := c.Submit(context.Background(), "hello")
	require.NoError(t, err)
	wait(t, first)

	second, err := c.Submit(context.Background(), "and again")
	require.NoError(t, err)
	wait(t, second)

	acts.mu.Lock()
	defer acts.mu.Unlock()
	require.Len(t, acts.chatReqs, 2)
	assert.Empty(t, acts.chatReqs[0].History)
	assert.Len(t, acts.chatReqs[1].History, 2)
	assert.Empty(t, acts.chatReqs[1].ConversationID)
	assert.Equal(t, "balanced", acts.chatReqs[1].Style)
}

func TestSubmitChatDurableConversation(t *testing.T) {
	acts := &fakeActions{}
	creator := &fakeCreator{}
	c := NewController(testConfig(), acts, staticAuth(true), creator)
	defer c.Close()

	s, err := c.Submit(context.Background(), "How do I bake sourdough bread?")
	require.NoError(t, err)
	res := wait(t, s)

	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, "conv-42", res.Conversation.ID)
	assert.Equal(t, "Bake Sourdough Bread", res.Conversation.Title)
	assert.Empty(t, c.LocalHistory())
	assert.Equal(t, "conv-42", acts.chatReqs[0].ConversationID)
	assert.EqualValues(t, 1, creator.calls.Load())
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	c := NewController(testConfig(), &fakeActions{}, nil, nil)
	defer c.Close()

	s, err := c.Submit(context.Background(), "   \n\t")

	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrPreconditionFailed)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Nil(t, c.Active())
	assert.Equal(t, StateIdle, c.State())
}

func TestMediaRequiresAuthentication(t *testing.T) {
	acts := &fakeActions{}
	c := NewController(testConfig(), acts, staticAuth(false), nil)
	defer c.Close()

	s, err := c.Submit(context.Background(), "draw a red fox in snow")
	require.NoError(t, err)
	res := wait(t, s)

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrPreconditionFailed)
	assert.Equal(t, []State{StateClassifying, StateFailed}, states(s.Transitions()))
	assert.Empty(t, acts.Calls())
}

func TestMediaRequests(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  intent.Kind
		calls []string
		check func(t *testing.T, m *Media)
	}{
		{
			name:  "image",
			input: "draw a red fox in snow",
			kind:  intent.KindImage,
			calls: []string{"image:a red fox in snow"},
			check: func(t *testing.T, m *Media) {
				require.NotNil(t, m.Image)
				assert.Equal(t, "a-red-fox-in-snow.png", m.Image.Filename)
			},
		},
		{
			name:  "pdf",
			input: "create a pdf about ocean pollution",
			kind:  intent.KindDocument,
			calls: []string{"document:pdf:ocean pollution"},
			check: func(t *testing.T, m *Media) {
				require.NotNil(t, m.Document)
				assert.Equal(t, "ocean-pollution.pdf", m.Document.Filename)
			},
		},
		{
			name:  "podcast",
			input: "create a podcast about dogs",
			kind:  intent.KindPodcast,
			calls: []string{"script:dogs", "tts:nova"},
			check: func(t *testing.T, m *Media) {
				require.NotNil(t, m.Audio)
				assert.Equal(t, "Welcome to a show about dogs.", m.Script)
				assert.Equal(t, "nova", m.Audio.Voice)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			acts := &fakeActions{}
			c := NewController(testConfig(), acts, staticAuth(true), nil)
			defer c.Close()

			s, err := c.Submit(context.Background(), tc.input)
			require.NoError(t, err)
			res := wait(t, s)

			assert.Equal(t, StateCompleted, res.State)
			assert.Equal(t, tc.kind, res.Kind)
			assert.Equal(t, tc.calls, acts.Calls())
			require.NotNil(t, res.Media)
			assert.Equal(t, tc.kind, res.Media.Kind)
			tc.check(t, res.Media)
		})
	}
}

func TestMediaExhaustedFails(t *testing.T) {
	acts := &fakeActions{mediaErr: errProvider}
	c := NewController(testConfig(), acts, staticAuth(true), nil)
	defer c.Close()

	s, err := c.Submit(context.Background(), "create a podcast about dogs")
	require.NoError(t, err)
	res := wait(t, s)

	assert.Equal(t, StateFailed, res.State)
	assert.True(t, resilient.IsExhausted(res.Err))
	assert.ErrorIs(t, res.Err, errProvider)
	// Two attempts of the script step, no speech call
	assert.Equal(t, []string{"script:dogs", "script:dogs"}, acts.Calls())
}

func TestChatExhaustedUsesFallback(t *testing.T) {
	acts := &fakeActions{chatErr: errProvider}
	c := NewController(testConfig(), acts, nil, nil)
	defer c.Close()

	s, err := c.Submit(context.Background(), "hi")
	require.NoError(t, err)
	res := wait(t, s)

	assert.Equal(t, StateCompleted, res.State)
	assert.True(t, res.Fallback)
	require.NotNil(t, res.Response)
	assert.NotEmpty(t, res.Response.RawText)
	assert.Len(t, acts.Calls(), 2)

	// Same input, same offline reply
	again, err := c.Submit(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, res.Response.RawText, wait(t, again).Response.RawText)
}

func TestChatExhaustedWithoutFallbackFails(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackEnabled = false
	c := NewController(cfg, &fakeActions{chatErr: errProvider}, nil, nil)
	defer c.Close()

	s, err := c.Submit(context.Background(), "hi")
	require.NoError(t, err)
	res := wait(t, s)

	assert.Equal(t, StateFailed, res.State)
	assert.True(t, resilient.IsExhausted(res.Err))
	assert.NotEmpty(t, res.Error)
}

func TestSecondSubmitCancelsFirst(t *testing.T) {
	acts := &fakeActions{block: make(chan struct{}), started: make(chan struct{}, 1)}
	c := NewController(testConfig(), acts, nil, nil)
	defer c.Close()

	first, err := c.Submit(context.Background(), "tell me a long story")
	require.NoError(t, err)
	<-acts.started

	acts.mu.Lock()
	acts.block = nil
	acts.mu.Unlock()

	second, err := c.Submit(context.Background(), "never mind, hi")
	require.NoError(t, err)

	r1, r2 := wait(t, first), wait(t, second)

	assert.Equal(t, StateCancelled, r1.State)
	assert.ErrorIs(t, r1.Err, resilient.ErrCancelled)
	assert.ErrorIs(t, r1.Err, ErrSuperseded)
	assert.Equal(t, StateCompleted, r2.State)
	assert.Same(t, second, c.Active())

	// The first session finished before the second started dispatching
	firstEnd := first.Transitions()[len(first.Transitions())-1].At
	secondStart := second.Transitions()[0].At
	assert.False(t, secondStart.Before(firstEnd))

	// Only the completed exchange reached the local history
	history := c.LocalHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "never mind, hi", history[0].Content)
}

func TestManyQuickSubmitsLeaveOneNonCancelled(t *testing.T) {
	c := NewController(testConfig(), &fakeActions{}, nil, nil)
	defer c.Close()

	var sessions []*Session
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		s, err := c.Submit(context.Background(), text)
		require.NoError(t, err)
		sessions = append(sessions, s)
	}

	last := wait(t, sessions[len(sessions)-1])
	assert.Equal(t, StateCompleted, last.State)
	for _, s := range sessions[:len(sessions)-1] {
		res := wait(t, s)
		assert.Contains(t, []State{StateCancelled, StateCompleted}, res.State)
	}
}

func TestCancelBySessionID(t *testing.T) {
	acts := &fakeActions{block: make(chan struct{}), started: make(chan struct{}, 1)}
	c := NewController(testConfig(), acts, nil, nil)
	defer c.Close()

	s, err := c.Submit(context.Background(), "tell me a long story")
	require.NoError(t, err)
	<-acts.started

	assert.ErrorIs(t, c.Cancel("unknown"), ErrSessionNotFound)
	require.NoError(t, c.Cancel(s.ID))

	res := wait(t, s)
	assert.Equal(t, StateCancelled, res.State)
	assert.ErrorIs(t, res.Err, ErrStopped)
	assert.Equal(t, ErrStopped.Error(), s.Transitions()[len(s.Transitions())-1].Reason)

	// Cancelling a finished session is a no-op
	assert.NoError(t, c.Cancel(s.ID))
	assert.Equal(t, StateIdle, c.State())
}

func TestSubscribeReceivesOrderedEvents(t *testing.T) {
	c := NewController(testConfig(), &fakeActions{}, nil, nil)
	defer c.Close()

	var (
		mu  sync.Mutex
		got []Event
	)
	unsubscribe := c.Subscribe(func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	s, err := c.Submit(context.Background(), "hi")
	require.NoError(t, err)
	wait(t, s)

	mu.Lock()
	require.Len(t, got, 5)
	for i, want := range []State{StateClassifying, StateDispatching, StateAwaiting, StateCompleted} {
		assert.Equal(t, EventTransition, got[i].Type)
		assert.Equal(t, want, got[i].Transition.To)
		assert.Equal(t, "ctx-1", got[i].ContextID)
	}
	assert.Equal(t, EventCompleted, got[4].Type)
	require.NotNil(t, got[4].Result)
	assert.Equal(t, s.ID, got[4].Result.SessionID)
	assert.Equal(t, "session.completed", got[4].EventType())
	assert.Equal(t, "completed", got[4].Payload()["result"].(map[string]interface{})["state"])
	mu.Unlock()

	unsubscribe()
	s, err = c.Submit(context.Background(), "hi again")
	require.NoError(t, err)
	wait(t, s)

	mu.Lock()
	assert.Len(t, got, 5)
	mu.Unlock()
}

func TestCloseCancelsAndRejects(t *testing.T) {
	acts := &fakeActions{block: make(chan struct{}), started: make(chan struct{}, 1)}
	c := NewController(testConfig(), acts, nil, nil)

	s, err := c.Submit(context.Background(), "tell me a long story")
	require.NoError(t, err)
	<-acts.started

	c.Close()

	res, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, StateCancelled, res.State)

	_, err = c.Submit(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubmitIgnoresCallerCancellation(t *testing.T) {
	c := NewController(testConfig(), &fakeActions{}, nil, nil)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s, err := c.Submit(ctx, "hi")
	cancel()
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, wait(t, s).State)
}

func TestPodcastReportsStepsWithoutSelfTransitions(t *testing.T) {
	c := NewController(testConfig(), &fakeActions{}, staticAuth(true), nil)
	defer c.Close()

	var (
		mu    sync.Mutex
		steps []string
	)
	c.Subscribe(func(e Event) {
		if e.Type == EventStep {
			mu.Lock()
			steps = append(steps, e.Step)
			mu.Unlock()
		}
	})

	s, err := c.Submit(context.Background(), "create a podcast about dogs")
	require.NoError(t, err)
	res := wait(t, s)

	require.Equal(t, StateCompleted, res.State)
	assert.Equal(t, []State{StateClassifying, StateDispatching, StateAwaiting, StateCompleted}, states(s.Transitions()))
	for _, tr := range s.Transitions() {
		assert.NotEqual(t, tr.From, tr.To)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{StepScript, StepAudio}, steps)
}
