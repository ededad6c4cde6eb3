package domain

import "time"

type Issue struct {
	Key         string    `json:"key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
}
