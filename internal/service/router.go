package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"go.uber.org/zap"

	"story-assistant/internal/domain"
	"story-assistant/internal/llm"
)

// FailureMarker encabeza el chunk que reporta un error dentro del stream.
const FailureMarker = "❌ Error: "

const (
	summarizeSystemPrompt = "You are a product assistant that summarizes transcripts clearly and concisely."
	generateSystemPrompt  = "You are a product assistant that converts user feedback into a list of user stories in JSON format with 1–3 tags."
	storyTemplateRule     = `Write every story as "As a <role>, I want <goal> so that <benefit>" and give each one ordered acceptance criteria.`

	fallbackMessage          = `I can help with meeting transcripts. Try "summarize" to summarize the loaded transcript, "generate user stories" to turn it into user stories, or "list stories" to see the latest stories in Jira.`
	missingTranscriptMessage = "No transcript loaded. Upload a transcript or load one from Fireflies first."
	noStoriesMessage         = "No user stories found in Jira."

	recentStoriesLimit = 10
)

// Chunk es una unidad de la respuesta. Failed marca el chunk de error final.
type Chunk struct {
	Text   string
	Failed bool
}

// IssueSearcher lee los issues más recientes del tracker.
type IssueSearcher interface {
	SearchRecent(ctx context.Context, limit int) ([]domain.Issue, error)
}

// StoriesObserver recibe las historias parseadas al terminar un Generate.
type StoriesObserver func(ctx context.Context, stories []domain.UserStory)

// IntentRouter clasifica el último mensaje del usuario y despacha al handler.
type IntentRouter struct {
	llmClient      llm.Client
	issues         IssueSearcher
	logger         *zap.Logger
	generatePrompt string
	onGenerated    StoriesObserver
}

func NewIntentRouter(llmClient llm.Client, issues IssueSearcher, logger *zap.Logger) *IntentRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentRouter{
		llmClient:      llmClient,
		issues:         issues,
		logger:         logger,
		generatePrompt: buildGeneratePrompt(logger),
	}
}

// OnGenerated registra un observador para las historias generadas.
func (r *IntentRouter) OnGenerated(fn StoriesObserver) {
	r.onGenerated = fn
}

// Dispatch enruta una ChatRequest completa.
func (r *IntentRouter) Dispatch(ctx context.Context, req domain.ChatRequest) iter.Seq[Chunk] {
	return r.Route(ctx, req.LatestUserMessage(), req.Transcript)
}

// Route produce una secuencia perezosa, finita y no reiniciable de chunks.
// Los errores de los handlers nunca salen de aquí: se convierten en un chunk
// con FailureMarker que termina la secuencia.
func (r *IntentRouter) Route(ctx context.Context, message, transcript string) iter.Seq[Chunk] {
	intent := Classify(message)
	r.logger.Info("chat dispatch",
		zap.Stringer("intent", intent),
		zap.Bool("has_transcript", strings.TrimSpace(transcript) != ""),
	)

	switch intent {
	case IntentSummarize:
		return r.summarize(ctx, transcript)
	case IntentList:
		return r.listStories(ctx)
	case IntentGenerate:
		return r.generateStories(ctx, transcript)
	default:
		return single(Chunk{Text: fallbackMessage})
	}
}

func (r *IntentRouter) summarize(ctx context.Context, transcript string) iter.Seq[Chunk] {
	if strings.TrimSpace(transcript) == "" {
		return single(Chunk{Text: missingTranscriptMessage})
	}
	return func(yield func(Chunk) bool) {
		r.relay(ctx, llm.Prompt(summarizeSystemPrompt, transcript), nil, yield)
	}
}

func (r *IntentRouter) generateStories(ctx context.Context, transcript string) iter.Seq[Chunk] {
	if strings.TrimSpace(transcript) == "" {
		return single(Chunk{Text: missingTranscriptMessage})
	}
	return func(yield func(Chunk) bool) {
		var full strings.Builder
		if !r.relay(ctx, llm.Prompt(r.generatePrompt, transcript), &full, yield) {
			return
		}

		stories, err := ParseStories(full.String())
		if err != nil {
			r.logger.Warn("generated stories not parseable", zap.Error(err))
			return
		}
		r.logger.Info("stories generated", zap.Int("count", len(stories)))
		if r.onGenerated != nil {
			r.onGenerated(ctx, stories)
		}
	}
}

func (r *IntentRouter) listStories(ctx context.Context) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		issues, err := r.issues.SearchRecent(ctx, recentStoriesLimit)
		if err != nil {
			r.fail(ctx, err, yield)
			return
		}
		if len(issues) == 0 {
			yield(Chunk{Text: noStoriesMessage})
			return
		}

		sorted := make([]domain.Issue, len(issues))
		copy(sorted, issues)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Created.After(sorted[j].Created)
		})
		if len(sorted) > recentStoriesLimit {
			sorted = sorted[:recentStoriesLimit]
		}

		for _, issue := range sorted {
			if !yield(Chunk{Text: formatIssueLine(issue)}) {
				return
			}
		}
	}
}

// relay reenvía cada fragmento sin modificarlo. Devuelve true si el stream
// terminó completo.
func (r *IntentRouter) relay(ctx context.Context, req llm.Request, acc *strings.Builder, yield func(Chunk) bool) bool {
	for fragment, err := range r.llmClient.Stream(ctx, req) {
		if err != nil {
			r.fail(ctx, err, yield)
			return false
		}
		if acc != nil {
			acc.WriteString(fragment)
		}
		if !yield(Chunk{Text: fragment}) {
			return false
		}
	}
	return ctx.Err() == nil
}

func (r *IntentRouter) fail(ctx context.Context, err error, yield func(Chunk) bool) {
	if ctx.Err() != nil {
		r.logger.Debug("chat dispatch cancelled", zap.Error(ctx.Err()))
		return
	}
	r.logger.Warn("chat handler failed", zap.Error(err))
	yield(Chunk{Text: FailureMarker + err.Error(), Failed: true})
}

func formatIssueLine(issue domain.Issue) string {
	if issue.Created.IsZero() {
		return fmt.Sprintf("- %s: %s\n", issue.Key, issue.Summary)
	}
	return fmt.Sprintf("- %s: %s (%s)\n", issue.Key, issue.Summary, issue.Created.UTC().Format("2006-01-02"))
}

func single(c Chunk) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		yield(c)
	}
}

// Collect concatena los chunks; si alguno es de error devuelve ese mensaje.
func Collect(chunks iter.Seq[Chunk]) (string, error) {
	var b strings.Builder
	for c := range chunks {
		if c.Failed {
			return b.String(), errors.New(strings.TrimPrefix(c.Text, FailureMarker))
		}
		b.WriteString(c.Text)
	}
	return b.String(), nil
}

func buildGeneratePrompt(logger *zap.Logger) string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema, err := json.Marshal(reflector.Reflect(&domain.UserStory{}))
	if err != nil {
		logger.Warn("user story schema unavailable", zap.Error(err))
		return generateSystemPrompt + "\n" + storyTemplateRule
	}
	return generateSystemPrompt + "\n" + storyTemplateRule +
		"\nRespond only with a JSON array whose items match this JSON schema:\n" + string(schema)
}
