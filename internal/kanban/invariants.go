package kanban

import (
	"errors"
	"fmt"
	"math"
)

const valueTolerance = 0.005

// Violation describes one broken structural guarantee.
type Violation struct {
	BoardID int64  `json:"boardId"`
	Rule    string `json:"rule"`
	Detail  string `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("board %d: %s: %s", v.BoardID, v.Rule, v.Detail)
}

const (
	RuleSinglePlacement = "single-placement"
	RuleLedgerValue     = "ledger-value"
	RuleDenseOrder      = "dense-order"
)

// CheckBoard verifies that every card sits in exactly one stage and tracks it,
// that ledger-backed values match their items, and that stage orders are 1..N.
func CheckBoard(board Board) []Violation {
	var out []Violation
	add := func(rule, format string, args ...any) {
		out = append(out, Violation{BoardID: board.ID, Rule: rule, Detail: fmt.Sprintf(format, args...)})
	}

	seenOrder := make(map[int]bool, len(board.Stages))
	for _, stage := range board.Stages {
		if stage.Order < 1 || stage.Order > len(board.Stages) || seenOrder[stage.Order] {
			add(RuleDenseOrder, "stage %d has order %d", stage.ID, stage.Order)
		}
		seenOrder[stage.Order] = true
	}

	placement := make(map[int64]int64)
	for _, stage := range board.Stages {
		for _, card := range stage.Cards {
			if other, dup := placement[card.ID]; dup {
				add(RuleSinglePlacement, "card %d appears in stages %d and %d", card.ID, other, stage.ID)
				continue
			}
			placement[card.ID] = stage.ID
			if card.StageID != stage.ID {
				add(RuleSinglePlacement, "card %d is held by stage %d but references stage %d", card.ID, stage.ID, card.StageID)
			}
			if len(card.LineItems) > 0 {
				want := LedgerTotal(card.LineItems)
				if math.Abs(card.Value-want) > valueTolerance {
					add(RuleLedgerValue, "card %d value %.2f differs from line items %.2f", card.ID, card.Value, want)
				}
			}
		}
	}
	return out
}

// Check verifies every board of the state.
func (s *State) Check() []Violation {
	var out []Violation
	for _, board := range s.Boards {
		out = append(out, CheckBoard(board)...)
	}
	return out
}

// ViolationError folds violations into a single InvariantViolation error.
func ViolationError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	msgs := make([]error, 0, len(violations))
	for _, v := range violations {
		msgs = append(msgs, errors.New(v.String()))
	}
	return invariantViolation("%v", errors.Join(msgs...))
}
