package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"story-assistant/internal/config"
	"story-assistant/internal/domain"
	"story-assistant/internal/fireflies"
	"story-assistant/internal/jira"
	"story-assistant/internal/llm"
	"story-assistant/internal/service"
)

type bulkCreator interface {
	CreateIssuesBulk(ctx context.Context, stories []domain.UserStory) ([]string, error)
}

type session struct {
	router      *service.IntentRouter
	transcripts fireflies.Source
	issues      bulkCreator
	messages    []domain.ChatMessage
	transcript  string
	lastStories []domain.UserStory
}

func newSession(router *service.IntentRouter, transcripts fireflies.Source, issues bulkCreator) *session {
	s := &session{router: router, transcripts: transcripts, issues: issues}
	s.router.OnGenerated(func(_ context.Context, stories []domain.UserStory) {
		s.lastStories = stories
	})
	return s
}

func main() {
	transcriptFile := flag.String("transcript", "", "archivo de texto con la transcripción inicial")
	firefliesID := flag.String("fireflies", "", "id de transcripción de Fireflies a cargar al inicio")
	flag.Parse()

	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	llmClient := llm.NewOpenAIClient(llm.Options{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	}, logger)
	jiraClient := jira.NewClient(jira.Config{
		BaseURL:    cfg.JiraBaseURL,
		Email:      cfg.JiraEmail,
		APIToken:   cfg.JiraAPIToken,
		ProjectKey: cfg.JiraProjectKey,
		IssueType:  cfg.JiraIssueType,
	}, nil, logger)

	s := newSession(
		service.NewIntentRouter(llmClient, jiraClient, logger),
		fireflies.NewClient(cfg.FirefliesBaseURL, cfg.FirefliesAPIKey, nil, logger),
		jiraClient,
	)

	if *transcriptFile != "" {
		if err := s.loadFile(*transcriptFile); err != nil {
			log.Fatalf("cargar transcripción: %v", err)
		}
	}
	if *firefliesID != "" {
		if err := s.loadFireflies(ctx, *firefliesID); err != nil {
			log.Fatalf("cargar transcripción de Fireflies: %v", err)
		}
	}

	fmt.Println("---- Story assistant (escribe 'salir' para terminar) ----")
	fmt.Println("Comandos: :load <archivo>, :fireflies [id], :push, :csv <archivo>")
	for {
		fmt.Print("Tu > ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "salir") || strings.EqualFold(text, "exit") {
			fmt.Println("Saliendo...")
			return
		}
		if strings.HasPrefix(text, ":") {
			if err := s.command(ctx, text); err != nil {
				fmt.Printf("error: %v\n", err)
			}
			continue
		}
		s.chat(ctx, text)
	}
}

func (s *session) chat(ctx context.Context, text string) {
	s.messages = append(s.messages, domain.ChatMessage{Role: domain.RoleUser, Content: text})
	req := domain.ChatRequest{Messages: s.messages, Transcript: s.transcript}

	var reply strings.Builder
	fmt.Print("Bot > ")
	for chunk := range s.router.Dispatch(ctx, req) {
		fmt.Print(chunk.Text)
		reply.WriteString(chunk.Text)
	}
	fmt.Println()
	s.messages = append(s.messages, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply.String()})
}

func (s *session) command(ctx context.Context, line string) error {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ":load":
		return s.loadFile(arg)
	case ":fireflies":
		if arg == "" {
			return s.listFireflies(ctx)
		}
		return s.loadFireflies(ctx, arg)
	case ":push":
		return s.pushStories(ctx)
	case ":csv":
		return s.exportCSV(arg)
	default:
		return fmt.Errorf("comando desconocido %q", name)
	}
}

func (s *session) loadFile(path string) error {
	if path == "" {
		return fmt.Errorf("falta la ruta del archivo")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.transcript = string(data)
	fmt.Printf("📄 Transcripción cargada (%d bytes).\n", len(data))
	return nil
}

func (s *session) listFireflies(ctx context.Context) error {
	items, err := s.transcripts.ListTranscripts(ctx, 10)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No hay transcripciones en Fireflies.")
	}
	for _, t := range items {
		fmt.Printf("  %s  %s\n", t.ID, t.Title)
	}
	return nil
}

func (s *session) loadFireflies(ctx context.Context, id string) error {
	text, err := s.transcripts.GetTranscript(ctx, id)
	if err != nil {
		return err
	}
	s.transcript = text
	fmt.Printf("📄 Transcripción %s cargada desde Fireflies.\n", id)
	return nil
}

func (s *session) pushStories(ctx context.Context) error {
	if len(s.lastStories) == 0 {
		return fmt.Errorf("no hay historias generadas; pide \"generate user stories\" primero")
	}
	keys, err := s.issues.CreateIssuesBulk(ctx, s.lastStories)
	if len(keys) > 0 {
		fmt.Printf("✅ Creadas en Jira: %s\n", strings.Join(keys, ", "))
	}
	return err
}

func (s *session) exportCSV(path string) error {
	if len(s.lastStories) == 0 {
		return fmt.Errorf("no hay historias generadas")
	}
	if path == "" {
		path = "user_stories.csv"
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := service.WriteStoriesCSV(f, s.lastStories); err != nil {
		return err
	}
	fmt.Printf("Historias exportadas a %s\n", path)
	return nil
}
