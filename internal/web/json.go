package web

import (
	"encoding/json"

	"github.com/sweeney/encoder-button/internal/status"
)

// EventsJSON is the JSON representation of the recent event list.
type EventsJSON struct {
	Total  int                `json:"total"`
	Events []status.EventJSON `json:"events"`
}

// formatEvents lists recent events newest first.
func formatEvents(snap status.Snapshot) []byte {
	ej := EventsJSON{
		Total:  snap.Total(),
		Events: make([]status.EventJSON, 0, len(snap.Recent)),
	}
	for i := len(snap.Recent) - 1; i >= 0; i-- {
		ej.Events = append(ej.Events, status.NewEventJSON(snap.Recent[i]))
	}

	data, _ := json.MarshalIndent(ej, "", "  ")
	return data
}
