package fusion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"syncai-fusion/internal/local"
	"syncai-fusion/internal/remote"
)

var errDown = errors.New("backend down")

// stubRemote answers questions with answer and merge prompts with merge.
type stubRemote struct {
	mu       sync.Mutex
	answer   func(ctx context.Context, question string) (string, error)
	merge    func(ctx context.Context, prompt string) (string, error)
	asks     int
	merges   int
	messages []string
}

func (s *stubRemote) Chat(ctx context.Context, req *remote.ChatRequest) (*remote.ChatResponse, error) {
	isMerge := strings.Contains(req.Message, "Answer A:") ||
		strings.Contains(req.Message, "Summary A:") ||
		strings.Contains(req.Message, "Suggestion A:") ||
		strings.Contains(req.Message, "Suggestions A:")

	s.mu.Lock()
	s.messages = append(s.messages, req.Message)
	fn := s.answer
	if isMerge {
		s.merges++
		fn = s.merge
	} else {
		s.asks++
	}
	s.mu.Unlock()

	if fn == nil {
		return nil, errDown
	}
	text, err := fn(ctx, req.Message)
	if err != nil {
		return nil, err
	}
	return &remote.ChatResponse{Workspace: req.Workspace, Text: text}, nil
}

func (s *stubRemote) counts() (asks, merges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asks, s.merges
}

type stubLocal struct {
	calls   atomic.Int32
	answer  func(ctx context.Context, prompt string) (string, error)
	prompts chan string
}

func (s *stubLocal) Generate(ctx context.Context, prompt string, _ local.Params) (string, error) {
	s.calls.Add(1)
	if s.prompts != nil {
		s.prompts <- prompt
	}
	if s.answer == nil {
		return "", errDown
	}
	return s.answer(ctx, prompt)
}

func (s *stubLocal) IsLoaded() bool { return true }

func fixed(text string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return text, nil }
}

func failing() func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return "", errDown }
}

func newTestEngine(t *testing.T, r *stubRemote, l *stubLocal, mutate ...func(*Config)) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.BackendTimeout = time.Second
	cfg.FusionTimeout = time.Second
	for _, m := range mutate {
		m(&cfg)
	}

	e, err := New(Options{Remote: r, Local: l, Config: cfg, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func noCache(c *Config) { c.CachingEnabled = false }

func TestNewRequiresBackends(t *testing.T) {
	_, err := New(Options{Local: &stubLocal{}})
	require.Error(t, err)

	_, err = New(Options{Remote: &stubRemote{}})
	require.Error(t, err)
}

func TestProcessFusesDualAnswers(t *testing.T) {
	r := &stubRemote{answer: fixed("Answer A text..."), merge: fixed("Fused answer")}
	l := &stubLocal{answer: fixed("Answer B text...")}
	e := newTestEngine(t, r, l)

	got := e.Process(context.Background(), Request{Text: "what is X?", TaskType: TaskGeneral})

	assert.Equal(t, "Fused answer", got)
	s := e.Stats(context.Background())
	assert.EqualValues(t, 1, s.TotalRequests)
	assert.EqualValues(t, 1, s.DualSuccess)
	assert.EqualValues(t, 1, s.FusionSuccess)
	assert.EqualValues(t, 0, s.MergeFallbacks)

	asks, merges := r.counts()
	assert.Equal(t, 1, asks)
	assert.Equal(t, 1, merges)
	assert.Contains(t, r.messages[len(r.messages)-1], "Answer A text...")
	assert.Contains(t, r.messages[len(r.messages)-1], "Answer B text...")
}

func TestProcessSendsConcisePromptToLocal(t *testing.T) {
	l := &stubLocal{answer: fixed("b"), prompts: make(chan string, 1)}
	e := newTestEngine(t, &stubRemote{answer: failing()}, l)

	e.Process(context.Background(), Request{Text: "why?"})
	assert.Equal(t, "Answer concisely: why?", <-l.prompts)
}

func TestProcessRemoteOnly(t *testing.T) {
	r := &stubRemote{answer: fixed("  remote answer \n")}
	e := newTestEngine(t, r, &stubLocal{answer: failing()})

	got := e.Process(context.Background(), Request{Text: "q"})

	assert.Equal(t, "remote answer", got)
	s := e.Stats(context.Background())
	assert.EqualValues(t, 1, s.RemoteOnly)
	_, merges := r.counts()
	assert.Zero(t, merges, "no merge pass for a single answer")
}

func TestProcessLocalOnly(t *testing.T) {
	e := newTestEngine(t, &stubRemote{answer: failing()}, &stubLocal{answer: fixed("local answer")})

	got := e.Process(context.Background(), Request{Text: "q"})

	assert.Equal(t, "local answer", got)
	assert.EqualValues(t, 1, e.Stats(context.Background()).LocalOnly)
}

func TestProcessBothFail(t *testing.T) {
	e := newTestEngine(t, &stubRemote{answer: failing()}, &stubLocal{answer: failing()})

	got := e.Process(context.Background(), Request{Text: "q"})

	assert.Equal(t, Apology, got)
	s := e.Stats(context.Background())
	assert.EqualValues(t, 1, s.FallbackUsed)
	assert.EqualValues(t, 1, s.TotalRequests)
}

func TestProcessBlankAnswerCountsAsFailure(t *testing.T) {
	e := newTestEngine(t, &stubRemote{answer: fixed(" \n\t ")}, &stubLocal{answer: fixed("local answer")})

	assert.Equal(t, "local answer", e.Process(context.Background(), Request{Text: "q"}))
	assert.EqualValues(t, 1, e.Stats(context.Background()).LocalOnly)
}

func TestProcessMergeFailureUsesHeuristic(t *testing.T) {
	long := strings.Repeat("This is a sentence. ", 15)

	tests := []struct {
		name  string
		merge func(context.Context, string) (string, error)
	}{
		{"error", failing()},
		{"empty", fixed("   ")},
		{"timeout", func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRemote{answer: fixed("ok"), merge: tt.merge}
			e := newTestEngine(t, r, &stubLocal{answer: fixed(long)}, func(c *Config) {
				c.FusionTimeout = 50 * time.Millisecond
			})

			got := e.Process(context.Background(), Request{Text: "q"})

			assert.Equal(t, strings.TrimSpace(long), got)
			s := e.Stats(context.Background())
			assert.EqualValues(t, 1, s.DualSuccess)
			assert.EqualValues(t, 0, s.FusionSuccess)
			assert.EqualValues(t, 1, s.MergeFallbacks)
		})
	}
}

func TestProcessSlowRemoteDoesNotBlockLocal(t *testing.T) {
	// ignores ctx on purpose: the engine must still give up on time
	slow := func(context.Context, string) (string, error) {
		time.Sleep(2 * time.Second)
		return "late", nil
	}
	e := newTestEngine(t, &stubRemote{answer: slow}, &stubLocal{answer: fixed("quick answer")}, func(c *Config) {
		c.BackendTimeout = 100 * time.Millisecond
	})

	start := time.Now()
	got := e.Process(context.Background(), Request{Text: "q"})

	assert.Equal(t, "quick answer", got)
	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 1, e.Stats(context.Background()).LocalOnly)
}

func TestProcessContainsBackendPanics(t *testing.T) {
	l := &stubLocal{answer: func(context.Context, string) (string, error) {
		panic("model crashed")
	}}
	e := newTestEngine(t, &stubRemote{answer: fixed("remote answer")}, l)

	var got string
	require.NotPanics(t, func() {
		got = e.Process(context.Background(), Request{Text: "q"})
	})
	assert.Equal(t, "remote answer", got)
}

func TestProcessCacheHitBypassesBackends(t *testing.T) {
	r := &stubRemote{answer: fixed("first answer")}
	l := &stubLocal{answer: failing()}
	e := newTestEngine(t, r, l)

	req := Request{Text: "same question", Target: "room-1"}
	require.Equal(t, "first answer", e.Process(context.Background(), req))

	r.mu.Lock()
	r.answer = failing()
	r.mu.Unlock()

	assert.Equal(t, "first answer", e.Process(context.Background(), req))

	asks, _ := r.counts()
	assert.Equal(t, 1, asks)
	assert.EqualValues(t, 1, l.calls.Load())

	s := e.Stats(context.Background())
	assert.EqualValues(t, 1, s.CacheHits)
	assert.EqualValues(t, 1, s.TotalRequests)
	assert.Equal(t, 1, s.CacheSize)

	// another workspace is another key
	assert.Equal(t, Apology, e.Process(context.Background(), Request{Text: "same question", Target: "room-2"}))
}

func TestProcessDoesNotCacheApology(t *testing.T) {
	r := &stubRemote{answer: failing()}
	e := newTestEngine(t, r, &stubLocal{answer: failing()})

	require.Equal(t, Apology, e.Process(context.Background(), Request{Text: "q"}))

	r.mu.Lock()
	r.answer = fixed("recovered")
	r.mu.Unlock()

	assert.Equal(t, "recovered", e.Process(context.Background(), Request{Text: "q"}))
}

func TestCachingToggleAndClear(t *testing.T) {
	r := &stubRemote{answer: fixed("a")}
	e := newTestEngine(t, r, &stubLocal{answer: failing()})

	e.DisableCaching()
	e.Process(context.Background(), Request{Text: "q"})
	e.Process(context.Background(), Request{Text: "q"})
	asks, _ := r.counts()
	assert.Equal(t, 2, asks)
	assert.Zero(t, e.Stats(context.Background()).CacheSize)

	e.EnableCaching()
	e.Process(context.Background(), Request{Text: "q"})
	assert.Equal(t, 1, e.Stats(context.Background()).CacheSize)

	require.NoError(t, e.ClearCache(context.Background()))
	assert.Zero(t, e.Stats(context.Background()).CacheSize)
}

func TestDisableFusionCallsOnlyRemote(t *testing.T) {
	r := &stubRemote{answer: fixed("remote"), merge: fixed("fused")}
	l := &stubLocal{answer: fixed("local")}
	e := newTestEngine(t, r, l, noCache)

	e.DisableFusion()
	assert.False(t, e.FusionEnabled())
	assert.Equal(t, "remote", e.Process(context.Background(), Request{Text: "q"}))
	assert.Zero(t, l.calls.Load())
	asks, merges := r.counts()
	assert.Equal(t, 1, asks)
	assert.Zero(t, merges)

	e.EnableFusion()
	assert.Equal(t, "fused", e.Process(context.Background(), Request{Text: "q"}))
	assert.EqualValues(t, 1, l.calls.Load())
	_, merges = r.counts()
	assert.Equal(t, 1, merges)

	s := e.Stats(context.Background())
	assert.EqualValues(t, 1, s.RemoteOnly)
	assert.EqualValues(t, 1, s.DualSuccess)
}

func TestDisabledFusionRemoteFailure(t *testing.T) {
	e := newTestEngine(t, &stubRemote{answer: failing()}, &stubLocal{answer: fixed("local")}, func(c *Config) {
		c.FusionEnabled = false
	})

	assert.Equal(t, Apology, e.Process(context.Background(), Request{Text: "q"}))
	assert.EqualValues(t, 1, e.Stats(context.Background()).FallbackUsed)
}

func TestProcessBlankQuestion(t *testing.T) {
	r := &stubRemote{answer: fixed("a")}
	e := newTestEngine(t, r, &stubLocal{answer: fixed("b")})

	assert.Equal(t, Apology, e.Process(context.Background(), Request{Text: "   "}))
	asks, _ := r.counts()
	assert.Zero(t, asks)
}

func TestStatsCountersSumToTotal(t *testing.T) {
	var mode atomic.Int32 // 0 both, 1 remote only, 2 local only, 3 none

	r := &stubRemote{
		answer: func(context.Context, string) (string, error) {
			if m := mode.Load(); m == 0 || m == 1 {
				return "remote", nil
			}
			return "", errDown
		},
		merge: fixed("fused"),
	}
	l := &stubLocal{answer: func(context.Context, string) (string, error) {
		if m := mode.Load(); m == 0 || m == 2 {
			return "local", nil
		}
		return "", errDown
	}}
	e := newTestEngine(t, r, l, noCache)

	sequence := []int32{0, 1, 2, 3, 3, 0, 2, 1, 1, 0}
	for _, m := range sequence {
		mode.Store(m)
		got := e.Process(context.Background(), Request{Text: "q"})
		require.NotEmpty(t, got)
	}

	s := e.Stats(context.Background())
	assert.EqualValues(t, len(sequence), s.TotalRequests)
	assert.EqualValues(t, 3, s.DualSuccess)
	assert.EqualValues(t, 3, s.RemoteOnly)
	assert.EqualValues(t, 2, s.LocalOnly)
	assert.EqualValues(t, 2, s.FallbackUsed)
	assert.Equal(t, s.TotalRequests, s.DualSuccess+s.RemoteOnly+s.LocalOnly+s.FallbackUsed)
	assert.Equal(t, 30.0, s.Rates.Dual)

	e.ResetStats()
	assert.Zero(t, e.Stats(context.Background()).TotalRequests)
}

func TestConcurrentProcessKeepsStatsConsistent(t *testing.T) {
	var n atomic.Int32
	r := &stubRemote{
		answer: func(context.Context, string) (string, error) {
			if n.Add(1)%3 == 0 {
				return "", errDown
			}
			return "remote", nil
		},
		merge: fixed("fused"),
	}
	e := newTestEngine(t, r, &stubLocal{answer: fixed("local")}, noCache)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotEmpty(t, e.Process(context.Background(), Request{Text: "q"}))
		}()
	}
	wg.Wait()

	s := e.Stats(context.Background())
	assert.EqualValues(t, 50, s.TotalRequests)
	assert.Equal(t, s.TotalRequests, s.DualSuccess+s.RemoteOnly+s.LocalOnly+s.FallbackUsed)
}

func TestTogglesApplyToLaterRequests(t *testing.T) {
	release := make(chan struct{})
	r := &stubRemote{
		answer: func(context.Context, string) (string, error) {
			<-release
			return "remote", nil
		},
		merge: fixed("fused"),
	}
	e := newTestEngine(t, r, &stubLocal{answer: fixed("local")}, noCache)

	done := make(chan string, 1)
	go func() { done <- e.Process(context.Background(), Request{Text: "q"}) }()

	// wait until the in-flight request has dispatched
	require.Eventually(t, func() bool {
		asks, _ := r.counts()
		return asks == 1
	}, time.Second, time.Millisecond)

	e.DisableFusion()
	close(release)

	assert.Equal(t, "fused", <-done)
}

func TestHealthMakesNoBackendCalls(t *testing.T) {
	r := &stubRemote{answer: fixed("a")}
	l := &stubLocal{answer: fixed("b")}
	e := newTestEngine(t, r, l)

	h := e.Health(context.Background())
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "loaded", h.Local.Status)
	assert.True(t, h.Cache.Enabled)
	assert.Equal(t, 1000, h.Cache.Capacity)

	e.DisableFusion()
	assert.Equal(t, "disabled", e.Health(context.Background()).Status)

	asks, merges := r.counts()
	assert.Zero(t, asks+merges)
	assert.Zero(t, l.calls.Load())
}

func TestProcessRecoversFromMergePanic(t *testing.T) {
	r := &stubRemote{answer: fixed("remote answer"), merge: fixed("never used")}
	l := &stubLocal{answer: fixed("local answer")}
	e := newTestEngine(t, r, l, noCache)
	e.mergePrompt = func(TaskType, string, string, string) string {
		panic("prompt template broke")
	}

	got := e.Process(context.Background(), Request{Text: "what is X?", TaskType: TaskGeneral})

	assert.Equal(t, "remote answer", got)
	asks, merges := r.counts()
	assert.Equal(t, 2, asks, "dual dispatch plus one direct remote retry")
	assert.Zero(t, merges)

	s := e.Stats(context.Background())
	assert.EqualValues(t, 1, s.TotalRequests)
	assert.EqualValues(t, 1, s.FallbackUsed)
	assert.Zero(t, s.DualSuccess)
}

func TestProcessMergePanicWithRemoteDown(t *testing.T) {
	calls := atomic.Int32{}
	r := &stubRemote{answer: func(context.Context, string) (string, error) {
		if calls.Add(1) == 1 {
			return "first remote answer", nil
		}
		return "", errDown
	}}
	e := newTestEngine(t, r, &stubLocal{answer: fixed("local answer")}, noCache)
	e.mergePrompt = func(TaskType, string, string, string) string { panic("boom") }

	got := e.Process(context.Background(), Request{Text: "q", TaskType: TaskGeneral})

	assert.Equal(t, Apology, got)
	assert.EqualValues(t, 1, e.Stats(context.Background()).FallbackUsed)
}
