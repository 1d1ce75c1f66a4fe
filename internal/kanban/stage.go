package kanban

import (
	"strings"
	"time"
)

const defaultStageColor = "#6B7280"

func (b *Board) Stage(stageID int64) (*Stage, error) {
	for i := range b.Stages {
		if b.Stages[i].ID == stageID {
			return &b.Stages[i], nil
		}
	}
	return nil, notFound("stage %d not found", stageID)
}

func (b *Board) AddStage(ids IDSource, name, color string, now time.Time) (*Stage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("stage name is required")
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = defaultStageColor
	}
	b.Stages = append(b.Stages, Stage{
		ID:    ids.NextID(),
		Name:  name,
		Order: len(b.Stages) + 1,
		Color: color,
		Cards: []Card{},
	})
	b.UpdatedAt = now
	return &b.Stages[len(b.Stages)-1], nil
}

// UpdateStage renames and recolors a stage. An empty color keeps the current one.
func (b *Board) UpdateStage(stageID int64, name, color string, now time.Time) (*Stage, error) {
	stage, err := b.Stage(stageID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("stage name is required")
	}
	stage.Name = name
	if color = strings.TrimSpace(color); color != "" {
		stage.Color = color
	}
	b.UpdatedAt = now
	return stage, nil
}

// ReorderStage moves the stage at fromIndex to toIndex (both 0-based) and
// reassigns dense 1-based orders to every stage of the board.
func (b *Board) ReorderStage(fromIndex, toIndex int, now time.Time) error {
	n := len(b.Stages)
	if fromIndex < 0 || fromIndex >= n || toIndex < 0 || toIndex >= n {
		return validationError("stage index out of range: from=%d to=%d (stages=%d)", fromIndex, toIndex, n)
	}
	if fromIndex != toIndex {
		moved := b.Stages[fromIndex]
		rest := make([]Stage, 0, n)
		rest = append(rest, b.Stages[:fromIndex]...)
		rest = append(rest, b.Stages[fromIndex+1:]...)
		reordered := make([]Stage, 0, n)
		reordered = append(reordered, rest[:toIndex]...)
		reordered = append(reordered, moved)
		reordered = append(reordered, rest[toIndex:]...)
		b.Stages = reordered
	}
	b.renumber()
	b.UpdatedAt = now
	return nil
}

// DeleteStage removes an empty stage and closes the gap in the ordering.
func (b *Board) DeleteStage(stageID int64, now time.Time) error {
	idx := -1
	for i := range b.Stages {
		if b.Stages[i].ID == stageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return notFound("stage %d not found", stageID)
	}
	if count := len(b.Stages[idx].Cards); count > 0 {
		return invariantViolation("stage %q still holds %d card(s)", b.Stages[idx].Name, count)
	}
	b.Stages = append(b.Stages[:idx:idx], b.Stages[idx+1:]...)
	b.renumber()
	b.UpdatedAt = now
	return nil
}

func (b *Board) renumber() {
	for i := range b.Stages {
		b.Stages[i].Order = i + 1
	}
}
