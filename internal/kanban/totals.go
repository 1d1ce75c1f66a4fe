package kanban

func StageTotal(stage Stage) float64 {
	var total float64
	for _, card := range stage.Cards {
		total += card.Value
	}
	return total
}

func BoardTotal(board Board) float64 {
	var total float64
	for _, stage := range board.Stages {
		total += StageTotal(stage)
	}
	return total
}

func CardCount(board Board) int {
	count := 0
	for _, stage := range board.Stages {
		count += len(stage.Cards)
	}
	return count
}

type StageSummary struct {
	StageID int64   `json:"stageId"`
	Name    string  `json:"nome"`
	Order   int     `json:"ordem"`
	Color   string  `json:"cor"`
	Cards   int     `json:"cards"`
	Total   float64 `json:"total"`
}

type StatusSummary struct {
	Status Status  `json:"status"`
	Cards  int     `json:"cards"`
	Total  float64 `json:"total"`
}

type BoardSummary struct {
	BoardID  int64           `json:"boardId"`
	Name     string          `json:"nome"`
	Cards    int             `json:"cards"`
	Total    float64         `json:"total"`
	Stages   []StageSummary  `json:"stages"`
	ByStatus []StatusSummary `json:"byStatus"`
}

// Summarize derives every figure from the current cards. Nothing here is
// stored back on the board.
func Summarize(board Board) BoardSummary {
	summary := BoardSummary{
		BoardID: board.ID,
		Name:    board.Name,
		Cards:   CardCount(board),
		Total:   BoardTotal(board),
		Stages:  make([]StageSummary, 0, len(board.Stages)),
	}
	byStatus := make(map[Status]*StatusSummary)
	order := Statuses()
	for _, status := range order {
		byStatus[status] = &StatusSummary{Status: status}
	}
	for _, stage := range board.Stages {
		summary.Stages = append(summary.Stages, StageSummary{
			StageID: stage.ID,
			Name:    stage.Name,
			Order:   stage.Order,
			Color:   stage.Color,
			Cards:   len(stage.Cards),
			Total:   StageTotal(stage),
		})
		for _, card := range stage.Cards {
			entry, ok := byStatus[card.Status]
			if !ok {
				entry = &StatusSummary{Status: card.Status}
				byStatus[card.Status] = entry
				order = append(order, card.Status)
			}
			entry.Cards++
			entry.Total += card.Value
		}
	}
	summary.ByStatus = make([]StatusSummary, 0, len(order))
	for _, status := range order {
		summary.ByStatus = append(summary.ByStatus, *byStatus[status])
	}
	return summary
}
