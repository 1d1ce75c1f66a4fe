package kanban

import "time"

// Draft is a dialog-scoped edit of one card. Edits accumulate in Patch and
// only reach the board when the draft is saved.
type Draft struct {
	ID        string    `json:"id"`
	BoardID   int64     `json:"boardId"`
	CardID    int64     `json:"cardId"`
	Base      Card      `json:"base"`
	Patch     CardPatch `json:"patch"`
	OpenedAt  time.Time `json:"openedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewDraft(id string, boardID int64, card Card, now time.Time, ttl time.Duration) Draft {
	return Draft{
		ID:        id,
		BoardID:   boardID,
		CardID:    card.ID,
		Base:      card.Clone(),
		OpenedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func (d Draft) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && !now.Before(d.ExpiresAt)
}

// Preview applies the pending patch to a copy of the base card. Activity
// entries it would produce get throwaway ids.
func (d Draft) Preview(catalogs Catalogs, now time.Time) (Card, error) {
	card := d.Base.Clone()
	scratch := &Sequence{}
	if err := card.ApplyPatch(scratch, catalogs, d.Patch, now); err != nil {
		return Card{}, err
	}
	return card, nil
}
