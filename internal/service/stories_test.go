package service

import (
	"bytes"
	"errors"
	"testing"

	"story-assistant/internal/domain"
)

func TestParseStories(t *testing.T) {
	raw := "Here you go:\n```json\n[{\"story\":\"As a user, I want [brackets] so that it works\",\"tags\":[\"a\",\" \",\"b\",\"c\",\"d\"],\"acceptance_criteria\":[\"one\"]},{\"story\":\"  \",\"tags\":[\"x\"]}]\n```"
	stories, err := ParseStories(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(stories) != 1 {
		t.Fatalf("expected 1 story, got %d", len(stories))
	}
	s := stories[0]
	if s.Story != "As a user, I want [brackets] so that it works" {
		t.Fatalf("unexpected story %q", s.Story)
	}
	if len(s.Tags) != 3 || s.Tags[2] != "c" {
		t.Fatalf("expected 3 trimmed tags, got %v", s.Tags)
	}
	if len(s.AcceptanceCriteria) != 1 {
		t.Fatalf("expected acceptance criteria, got %v", s.AcceptanceCriteria)
	}
}

func TestParseStoriesNoArray(t *testing.T) {
	if _, err := ParseStories("no json here"); !errors.Is(err, ErrNoStoriesFound) {
		t.Fatalf("expected ErrNoStoriesFound, got %v", err)
	}
}

func TestParseStoriesInvalidJSON(t *testing.T) {
	if _, err := ParseStories(`[{"story": 12}]`); err == nil {
		t.Fatalf("expected error for invalid story types")
	}
}

func TestParseStoriesSkipsBracketedProse(t *testing.T) {
	raw := "Here are the stories [JSON]:\n[{\"story\":\"As a PM, I want exports\",\"tags\":[\"reporting\"]}]"
	stories, err := ParseStories(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(stories) != 1 || stories[0].Tags[0] != "reporting" {
		t.Fatalf("unexpected stories %+v", stories)
	}
}

func TestParseStoriesPrefersFencedBlock(t *testing.T) {
	raw := "Notes [draft] [1, 2]\n```json\n[{\"story\":\"As a dev, I want CI\",\"tags\":[\"ci\"]}]\n```\n"
	stories, err := ParseStories(raw)
	if err != nil || len(stories) != 1 || stories[0].Story != "As a dev, I want CI" {
		t.Fatalf("unexpected result %+v, %v", stories, err)
	}
}

func TestParseStoriesBOMAndUnclosedPrefix(t *testing.T) {
	raw := "\uFEFFsee [note\n[{\"story\":\"s\",\"tags\":[\"t\"]}]"
	stories, err := ParseStories(raw)
	if err != nil || len(stories) != 1 {
		t.Fatalf("unexpected result %+v, %v", stories, err)
	}
}

func TestClosingBracket(t *testing.T) {
	s := `x [1, "]", [2]] tail ]`
	if got := closingBracket(s, 2); got != 14 {
		t.Fatalf("expected 14, got %d", got)
	}
	if got := closingBracket(`[{"a": "]"}`, 0); got != -1 {
		t.Fatalf("expected -1 for unbalanced input, got %d", got)
	}
}

func TestValidateStory(t *testing.T) {
	if err := ValidateStory(domain.UserStory{Story: "x", Tags: []string{"t"}}); err != nil {
		t.Fatalf("expected valid story, got %v", err)
	}
	for _, s := range []domain.UserStory{{Tags: []string{"t"}}, {Story: "x"}} {
		if err := ValidateStory(s); !domain.IsValidation(err) {
			t.Fatalf("expected validation error for %+v, got %v", s, err)
		}
	}
}

func TestWriteStoriesCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteStoriesCSV(&buf, []domain.UserStory{
		{Story: `As a user, I want "quotes" so that it works`, Tags: []string{"a", "b"}},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := "story,tags\n\"As a user, I want \"\"quotes\"\" so that it works\",\"a, b\"\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv:\n%s", buf.String())
	}
}
