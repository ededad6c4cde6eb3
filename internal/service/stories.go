package service

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"story-assistant/internal/domain"
)

const maxStoryTags = 3

var ErrNoStoriesFound = errors.New("no JSON array of stories in response")

// fencedBlock captura el contenido de un bloque ```json ... ```.
var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseStories extrae las historias del texto generado por el LLM.
// Descarta historias vacías y recorta los tags a tres.
func ParseStories(raw string) ([]domain.UserStory, error) {
	parsed, err := decodeStoryArray(raw)
	if err != nil {
		return nil, err
	}

	stories := make([]domain.UserStory, 0, len(parsed))
	for _, s := range parsed {
		s.Story = strings.TrimSpace(s.Story)
		if s.Story == "" {
			continue
		}
		tags := make([]string, 0, len(s.Tags))
		for _, tag := range s.Tags {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		if len(tags) > maxStoryTags {
			tags = tags[:maxStoryTags]
		}
		s.Tags = tags
		stories = append(stories, s)
	}
	return stories, nil
}

// decodeStoryArray prueba primero el bloque con fence y luego el texto
// completo. En cada uno avanza de '[' en '[' hasta que un arreglo balanceado
// decodifica como []UserStory, así el texto previo con corchetes no corta
// la búsqueda.
func decodeStoryArray(raw string) ([]domain.UserStory, error) {
	text := strings.TrimPrefix(strings.TrimSpace(raw), "\uFEFF")

	sources := make([]string, 0, 2)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		sources = append(sources, m[1])
	}
	sources = append(sources, text)

	var lastErr error
	for _, src := range sources {
		for from := 0; from < len(src); {
			idx := strings.IndexByte(src[from:], '[')
			if idx < 0 {
				break
			}
			start := from + idx
			from = start + 1

			end := closingBracket(src, start)
			if end < 0 {
				continue
			}
			var stories []domain.UserStory
			if err := json.Unmarshal([]byte(src[start:end+1]), &stories); err != nil {
				lastErr = err
				continue
			}
			return stories, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("parse stories: %w", lastErr)
	}
	return nil, ErrNoStoriesFound
}

// closingBracket devuelve el índice del ']' que cierra el '[' en start,
// ignorando corchetes dentro de strings JSON; -1 si no cierra.
func closingBracket(s string, start int) int {
	inString, escape := false, false
	depth := 0
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ValidateStory exige historia y al menos un tag.
func ValidateStory(s domain.UserStory) error {
	if strings.TrimSpace(s.Story) == "" || len(s.Tags) == 0 {
		return domain.NewValidationError("story and tags are required")
	}
	return nil
}

// WriteStoriesCSV escribe las historias con columnas story,tags.
func WriteStoriesCSV(w io.Writer, stories []domain.UserStory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"story", "tags"}); err != nil {
		return err
	}
	for _, s := range stories {
		if err := cw.Write([]string{s.Story, strings.Join(s.Tags, ", ")}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
