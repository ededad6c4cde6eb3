package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"story-assistant/internal/domain"
	"story-assistant/internal/llm"
)

type mockIssueSearcher struct {
	issues    []domain.Issue
	err       error
	calls     int
	lastLimit int
}

func (m *mockIssueSearcher) SearchRecent(_ context.Context, limit int) ([]domain.Issue, error) {
	m.calls++
	m.lastLimit = limit
	return m.issues, m.err
}

func collectChunks(seq iter.Seq[Chunk]) []Chunk {
	var out []Chunk
	for c := range seq {
		out = append(out, c)
	}
	return out
}

func newTestRouter(llmClient llm.Client, issues IssueSearcher) *IntentRouter {
	return NewIntentRouter(llmClient, issues, zap.NewNop())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		want Intent
	}{
		{"Please SUMMARIZE the meeting", IntentSummarize},
		{"list stories", IntentList},
		{"can you list the latest stories?", IntentList},
		{"generate user stories", IntentGenerate},
		{"Generate Stories now", IntentGenerate},
		{"please summarize and list stories", IntentSummarize},
		{"list and generate stories", IntentList},
		{"generate a list", IntentFallback},
		{"stories", IntentFallback},
		{"hello", IntentFallback},
		{"", IntentFallback},
	}
	for _, tc := range cases {
		if got := Classify(tc.msg); got != tc.want {
			t.Fatalf("Classify(%q): expected %s, got %s", tc.msg, tc.want, got)
		}
	}
}

func TestRouteSummarizeForwardsFragmentsUnchanged(t *testing.T) {
	mock := &llm.MockClient{Chunks: []string{"The team ", "agreed ", " on scope.\n"}}
	searcher := &mockIssueSearcher{}
	r := newTestRouter(mock, searcher)

	chunks := collectChunks(r.Route(context.Background(), "summarize", "Alice: hi\nBob: hello"))

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, want := range mock.Chunks {
		if chunks[i].Text != want || chunks[i].Failed {
			t.Fatalf("chunk %d: expected %q, got %+v", i, want, chunks[i])
		}
	}
	if len(mock.Requests) != 1 {
		t.Fatalf("expected exactly one completion call, got %d", len(mock.Requests))
	}
	req := mock.Requests[0]
	if req.SystemPrompt != summarizeSystemPrompt {
		t.Fatalf("unexpected system prompt %q", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "Alice: hi\nBob: hello" {
		t.Fatalf("expected transcript as user input, got %+v", req.Messages)
	}
	if searcher.calls != 0 {
		t.Fatalf("expected no issue tracker call")
	}
}

func TestRouteTranscriptRequiredIntentsWithoutTranscript(t *testing.T) {
	for _, msg := range []string{"summarize", "generate stories"} {
		t.Run(msg, func(t *testing.T) {
			mock := &llm.MockClient{Response: "should not be used"}
			r := newTestRouter(mock, &mockIssueSearcher{})

			chunks := collectChunks(r.Route(context.Background(), msg, "   "))
			if len(chunks) != 1 {
				t.Fatalf("expected exactly one chunk, got %d", len(chunks))
			}
			if chunks[0].Text != missingTranscriptMessage || chunks[0].Failed {
				t.Fatalf("unexpected chunk %+v", chunks[0])
			}
			if len(mock.Requests) != 0 {
				t.Fatalf("expected no provider call, got %d", len(mock.Requests))
			}
		})
	}
}

func TestRouteGenerateStreamMatchesBufferedText(t *testing.T) {
	mock := &llm.MockClient{Chunks: []string{
		"```json\n[",
		`{"story":"As a PM, I want reports so that I can plan","tags":["reporting"],"acceptance_criteria":["Weekly export"]},`,
		`{"story":"As a dev, I want CI","tags":["ci","infra"]}`,
		"]\n```",
	}}
	r := newTestRouter(mock, &mockIssueSearcher{})

	var observed []domain.UserStory
	r.OnGenerated(func(_ context.Context, stories []domain.UserStory) {
		observed = stories
	})

	streamed, err := Collect(r.Route(context.Background(), "generate stories", "transcript text"))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	buffered, err := mock.Complete(context.Background(), llm.Prompt(r.generatePrompt, "transcript text"))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if streamed != buffered {
		t.Fatalf("expected streamed text to equal buffered text\nstreamed: %q\nbuffered: %q", streamed, buffered)
	}
	if len(observed) != 2 {
		t.Fatalf("expected 2 parsed stories, got %d", len(observed))
	}
	if observed[0].Summary() != "As a PM, I want reports" {
		t.Fatalf("unexpected summary %q", observed[0].Summary())
	}
	if mock.Requests[0].SystemPrompt != r.generatePrompt {
		t.Fatalf("expected generate prompt")
	}
}

func TestGeneratePromptIncludesStorySchema(t *testing.T) {
	r := newTestRouter(&llm.MockClient{}, &mockIssueSearcher{})
	for _, want := range []string{generateSystemPrompt, "so that <benefit>", `"acceptance_criteria"`, `"maxItems":3`} {
		if !strings.Contains(r.generatePrompt, want) {
			t.Fatalf("expected generate prompt to contain %q:\n%s", want, r.generatePrompt)
		}
	}
}

func TestRouteGenerateUnparseableOutputStillStreams(t *testing.T) {
	mock := &llm.MockClient{Chunks: []string{"Sorry, ", "no stories today."}}
	r := newTestRouter(mock, &mockIssueSearcher{})
	called := false
	r.OnGenerated(func(context.Context, []domain.UserStory) { called = true })

	out, err := Collect(r.Route(context.Background(), "generate stories", "t"))
	if err != nil || out != "Sorry, no stories today." {
		t.Fatalf("unexpected result %q, %v", out, err)
	}
	if called {
		t.Fatalf("observer must not run without parseable stories")
	}
}

func TestRouteListNoIssues(t *testing.T) {
	searcher := &mockIssueSearcher{}
	mock := &llm.MockClient{}
	r := newTestRouter(mock, searcher)

	chunks := collectChunks(r.Route(context.Background(), "list stories", ""))
	if len(chunks) != 1 || chunks[0].Text != noStoriesMessage {
		t.Fatalf("expected no-stories chunk, got %+v", chunks)
	}
	if searcher.calls != 1 || searcher.lastLimit != 10 {
		t.Fatalf("expected one search with limit 10, got calls=%d limit=%d", searcher.calls, searcher.lastLimit)
	}
	if len(mock.Requests) != 0 {
		t.Fatalf("expected no completion call")
	}
}

func TestRouteListNewestFirstCappedAtTen(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var issues []domain.Issue
	for _, day := range []int{3, 11, 1, 7, 12, 5, 2, 9, 4, 8, 6, 10} {
		issues = append(issues, domain.Issue{
			Key:     fmt.Sprintf("ST-%d", day),
			Summary: fmt.Sprintf("story %d", day),
			Created: base.AddDate(0, 0, day),
		})
	}
	r := newTestRouter(&llm.MockClient{}, &mockIssueSearcher{issues: issues})

	chunks := collectChunks(r.Route(context.Background(), "list stories", ""))
	if len(chunks) != 10 {
		t.Fatalf("expected 10 lines, got %d", len(chunks))
	}
	if chunks[0].Text != "- ST-12: story 12 (2024-01-13)\n" {
		t.Fatalf("unexpected first line %q", chunks[0].Text)
	}
	if !strings.HasPrefix(chunks[9].Text, "- ST-3:") {
		t.Fatalf("unexpected last line %q", chunks[9].Text)
	}
	if issues[0].Key != "ST-3" {
		t.Fatalf("expected input slice untouched")
	}
}

func TestRouteFailureYieldsSingleMarkerChunk(t *testing.T) {
	t.Run("stream error after fragments", func(t *testing.T) {
		mock := &llm.MockClient{
			Chunks: []string{"partial "},
			Err:    &domain.ProviderError{Provider: "openai", StatusCode: 500, Message: "boom"},
		}
		r := newTestRouter(mock, &mockIssueSearcher{})

		chunks := collectChunks(r.Route(context.Background(), "summarize", "t"))
		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d", len(chunks))
		}
		last := chunks[1]
		if !last.Failed || last.Text != "❌ Error: openai: status 500: boom" {
			t.Fatalf("unexpected failure chunk %+v", last)
		}
	})

	t.Run("issue tracker error", func(t *testing.T) {
		searcher := &mockIssueSearcher{err: &domain.ConfigurationError{Setting: "JIRA_BASE_URL"}}
		r := newTestRouter(&llm.MockClient{}, searcher)

		chunks := collectChunks(r.Route(context.Background(), "list stories", ""))
		if len(chunks) != 1 || !chunks[0].Failed {
			t.Fatalf("expected single failure chunk, got %+v", chunks)
		}
		if !strings.HasPrefix(chunks[0].Text, FailureMarker) {
			t.Fatalf("expected failure marker, got %q", chunks[0].Text)
		}
	})
}

func TestRouteCancelledContextEndsSilently(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock := &llm.MockClient{Chunks: []string{"a", "b"}, Err: errors.New("context canceled")}
	r := newTestRouter(mock, &mockIssueSearcher{})

	chunks := collectChunks(r.Route(ctx, "summarize", "t"))
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks after cancellation, got %+v", chunks)
	}
}

func TestRouteConsumerStopsEarly(t *testing.T) {
	mock := &llm.MockClient{Chunks: []string{"a", "b", "c"}}
	r := newTestRouter(mock, &mockIssueSearcher{})

	var got []string
	for c := range r.Route(context.Background(), "summarize", "t") {
		got = append(got, c.Text)
		if len(got) == 2 {
			break
		}
	}
	if strings.Join(got, "") != "ab" {
		t.Fatalf("unexpected chunks %v", got)
	}
}

func TestRouteFallback(t *testing.T) {
	mock := &llm.MockClient{}
	searcher := &mockIssueSearcher{}
	r := newTestRouter(mock, searcher)

	chunks := collectChunks(r.Route(context.Background(), "what can you do?", "transcript"))
	if len(chunks) != 1 || chunks[0].Text != fallbackMessage {
		t.Fatalf("expected help message, got %+v", chunks)
	}
	if len(mock.Requests) != 0 || searcher.calls != 0 {
		t.Fatalf("expected no downstream calls")
	}
}

func TestDispatchRoutesOnLatestUserMessage(t *testing.T) {
	mock := &llm.MockClient{Response: "summary"}
	r := newTestRouter(mock, &mockIssueSearcher{})

	req := domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: "generate stories"},
			{Role: domain.RoleAssistant, Content: "[]"},
			{Role: domain.RoleUser, Content: "  Now SUMMARIZE it "},
		},
		Transcript: "list stories",
	}
	out, err := Collect(r.Dispatch(context.Background(), req))
	if err != nil || out != "summary" {
		t.Fatalf("unexpected result %q, %v", out, err)
	}
	if mock.Requests[0].SystemPrompt != summarizeSystemPrompt {
		t.Fatalf("expected summarize intent")
	}
}

func TestCollectReturnsFailure(t *testing.T) {
	seq := func(yield func(Chunk) bool) {
		if !yield(Chunk{Text: "part"}) {
			return
		}
		yield(Chunk{Text: FailureMarker + "jira: down", Failed: true})
	}
	out, err := Collect(seq)
	if err == nil || err.Error() != "jira: down" {
		t.Fatalf("expected failure error, got %v", err)
	}
	if out != "part" {
		t.Fatalf("expected partial text, got %q", out)
	}
}
