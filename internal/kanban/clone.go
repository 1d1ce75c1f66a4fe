package kanban

import "time"

func (b Board) Clone() Board {
	out := b
	out.Stages = make([]Stage, len(b.Stages))
	for i, stage := range b.Stages {
		out.Stages[i] = stage.Clone()
	}
	return out
}

func (s Stage) Clone() Stage {
	out := s
	out.Cards = make([]Card, len(s.Cards))
	for i, card := range s.Cards {
		out.Cards[i] = card.Clone()
	}
	return out
}

// Clone copies the card together with everything it owns, so that a draft or
// snapshot never aliases the authoritative graph.
func (c Card) Clone() Card {
	out := c
	out.ClientID = cloneID(c.ClientID)
	out.ActionID = cloneID(c.ActionID)
	out.LineItems = append([]LineItem{}, c.LineItems...)
	out.Comments = make([]Comment, len(c.Comments))
	for i, entry := range c.Comments {
		entry.ReplyTo = cloneID(entry.ReplyTo)
		out.Comments[i] = entry
	}
	out.Labels = append([]string{}, c.Labels...)
	out.Members = append([]string{}, c.Members...)
	out.DueDate = cloneTime(c.DueDate)
	return out
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
