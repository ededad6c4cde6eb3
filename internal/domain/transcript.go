package domain

// TranscriptSummary es la referencia de una reunión en el proveedor de transcripciones.
type TranscriptSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
