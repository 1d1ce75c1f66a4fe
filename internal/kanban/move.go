package kanban

import (
	"fmt"
	"time"
)

// MoveCard relocates a card of the active board to the end of the target stage.
func (s *State) MoveCard(cardID, targetStageID int64, now time.Time) (*Card, error) {
	board, err := s.ActiveBoard()
	if err != nil {
		return nil, err
	}
	return board.MoveCard(s, cardID, targetStageID, now)
}

// MoveCard removes the card from whichever stage holds it and appends it to
// the target stage. Unknown cards or stages leave the board untouched, and a
// move onto the current stage is a no-op.
func (b *Board) MoveCard(ids IDSource, cardID, targetStageID int64, now time.Time) (*Card, error) {
	target := -1
	for i := range b.Stages {
		if b.Stages[i].ID == targetStageID {
			target = i
			break
		}
	}
	if target < 0 {
		return nil, notFound("stage %d not found", targetStageID)
	}

	source, pos := -1, -1
	for i := range b.Stages {
		for j := range b.Stages[i].Cards {
			if b.Stages[i].Cards[j].ID == cardID {
				source, pos = i, j
				break
			}
		}
		if source >= 0 {
			break
		}
	}
	if source < 0 {
		return nil, notFound("card %d not found", cardID)
	}
	if source == target {
		return &b.Stages[source].Cards[pos], nil
	}

	from := &b.Stages[source]
	to := &b.Stages[target]
	card := from.Cards[pos]
	from.Cards = append(from.Cards[:pos:pos], from.Cards[pos+1:]...)

	card.StageID = to.ID
	card.UpdatedAt = now
	card.appendActivity(ids, fmt.Sprintf("moveu o card de %s para %s", from.Name, to.Name), "ArrowRight", now)
	to.Cards = append(to.Cards, card)
	b.UpdatedAt = now
	return &to.Cards[len(to.Cards)-1], nil
}
