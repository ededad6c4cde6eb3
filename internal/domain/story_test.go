package domain

import "testing"

func TestStorySummary(t *testing.T) {
	cases := []struct {
		name  string
		story string
		want  string
	}{
		{"with so that", "As a developer, I want X so that Y", "As a developer, I want X"},
		{"without so that", "  As a PM, I want dashboards  ", "As a PM, I want dashboards"},
		{"first occurrence wins", "As a user, I want A so that B so that C", "As a user, I want A"},
		{"case sensitive phrase", "As a user, I want A So That B", "As a user, I want A So That B"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StorySummary(tc.story); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestUserStoryDescription(t *testing.T) {
	s := UserStory{
		Story:              "As a user, I want export so that I can share",
		Tags:               []string{"export"},
		AcceptanceCriteria: []string{"CSV download works", " ", "Includes tags"},
	}
	want := "As a user, I want export so that I can share\n\nAcceptance Criteria:\n- CSV download works\n- Includes tags"
	if got := s.Description(); got != want {
		t.Fatalf("unexpected description:\n%s", got)
	}
	if s.Summary() != "As a user, I want export" {
		t.Fatalf("unexpected summary %q", s.Summary())
	}

	plain := UserStory{Story: " As a user, I want X "}
	if plain.Description() != "As a user, I want X" {
		t.Fatalf("expected trimmed story as description, got %q", plain.Description())
	}
}
