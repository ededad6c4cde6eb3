package llm

import (
	"context"
	"iter"
	"strings"
)

// MockClient permite tests sin llamar a un LLM real.
// Stream entrega Chunks y luego Err; si Chunks está vacío, entrega Response entero.
type MockClient struct {
	Response string
	Chunks   []string
	Err      error
	Requests []Request
}

func (m *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Chunks) > 0 {
		return strings.Join(m.Chunks, ""), nil
	}
	return m.Response, nil
}

func (m *MockClient) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	m.Requests = append(m.Requests, req)
	return func(yield func(string, error) bool) {
		chunks := m.Chunks
		if len(chunks) == 0 && m.Response != "" {
			chunks = []string{m.Response}
		}
		for _, chunk := range chunks {
			if ctx.Err() != nil {
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if m.Err != nil {
			yield("", m.Err)
		}
	}
}
