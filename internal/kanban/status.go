package kanban

import (
	"encoding/json"
	"strings"
	"time"
)

var statusAliases = map[string]Status{
	"hot":     StatusHot,
	"quente":  StatusHot,
	"warm":    StatusWarm,
	"morno":   StatusWarm,
	"cold":    StatusCold,
	"frio":    StatusCold,
	"lost":    StatusLost,
	"perdido": StatusLost,
}

var statusLabels = map[Status]string{
	StatusHot:  "quente",
	StatusWarm: "morno",
	StatusCold: "frio",
	StatusLost: "perdido",
}

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusHot, StatusWarm, StatusCold, StatusLost}
}

// ParseStatus accepts the canonical values and the labels the stored data
// has historically used.
func ParseStatus(raw string) (Status, error) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", validationError("unknown status %q", raw)
	}
	return status, nil
}

// UnmarshalJSON maps the stored labels onto the canonical values. Unknown
// values are kept as they are.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if status, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		*s = status
		return nil
	}
	*s = Status(raw)
	return nil
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// SetStatus moves the card to another status. Every state reaches every
// other state; setting the current status again records nothing.
func (c *Card) SetStatus(ids IDSource, status Status, now time.Time) error {
	if !status.Valid() {
		return validationError("unknown status %q", status)
	}
	if c.Status == status {
		return nil
	}
	c.Status = status
	c.UpdatedAt = now
	c.appendActivity(ids, "alterou o status para "+status.Label(), "Activity", now)
	return nil
}
