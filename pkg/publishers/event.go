package publishers

import (
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/postcodes-geocoder/internal/domain"
)

// Event represents the payload published downstream.
type Event struct {
	ID          string        `json:"id"`
	Result      domain.Result `json:"result"`
	CollectedAt time.Time     `json:"collected_at"`
}

// NewEvent constructs an Event for a job result.
func NewEvent(result domain.Result) Event {
	return Event{
		ID:          uuid.NewString(),
		Result:      result,
		CollectedAt: time.Now().UTC(),
	}
}

// Attributes are the routing attributes attached to queue messages.
func (e Event) Attributes() map[string]string {
	return map[string]string{
		"event_id":  e.ID,
		"job_id":    e.Result.JobID,
		"operation": e.Result.Operation,
	}
}
