package export

import (
	"time"

	"pipeline/internal/kanban"
)

// Report is the format-independent view of a board that every exporter renders.
type Report struct {
	BoardID     int64          `yaml:"boardId"`
	Board       string         `yaml:"board"`
	Description string         `yaml:"descricao,omitempty"`
	GeneratedAt time.Time      `yaml:"generatedAt"`
	Cards       int            `yaml:"cards"`
	Total       float64        `yaml:"total"`
	Stages      []ReportStage  `yaml:"stages"`
	ByStatus    []ReportStatus `yaml:"byStatus"`
}

type ReportStage struct {
	Name  string       `yaml:"nome"`
	Order int          `yaml:"ordem"`
	Color string       `yaml:"cor"`
	Total float64      `yaml:"total"`
	Cards []ReportCard `yaml:"cards"`
}

type ReportCard struct {
	ID        int64            `yaml:"id"`
	Title     string           `yaml:"titulo,omitempty"`
	Client    string           `yaml:"cliente"`
	Status    string           `yaml:"status"`
	Value     float64          `yaml:"valor"`
	Action    string           `yaml:"acao,omitempty"`
	Labels    []string         `yaml:"labels,omitempty"`
	Members   []string         `yaml:"membros,omitempty"`
	DueDate   *time.Time       `yaml:"dataVencimento,omitempty"`
	LineItems []ReportLineItem `yaml:"servicos,omitempty"`
	Thread    []ReportEntry    `yaml:"comentarios,omitempty"`
}

type ReportLineItem struct {
	Name      string  `yaml:"nome"`
	UnitValue float64 `yaml:"valor"`
	Quantity  int     `yaml:"quantidade"`
}

type ReportEntry struct {
	Author    string    `yaml:"autor"`
	Text      string    `yaml:"texto"`
	Kind      string    `yaml:"tipo"`
	CreatedAt time.Time `yaml:"createdAt"`
	Depth     int       `yaml:"nivel"`
}

type ReportStatus struct {
	Status string  `yaml:"status"`
	Cards  int     `yaml:"cards"`
	Total  float64 `yaml:"total"`
}

// Options tune what goes into a report.
type Options struct {
	// ActionName resolves a card's action tag. Unknown ids yield "".
	ActionName    func(id *int64) string
	IncludeThread bool
	Now           time.Time
}

// BuildReport derives the report from the board as it is now.
func BuildReport(board kanban.Board, opts Options) Report {
	summary := kanban.Summarize(board)
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	report := Report{
		BoardID:     board.ID,
		Board:       board.Name,
		Description: board.Description,
		GeneratedAt: now,
		Cards:       summary.Cards,
		Total:       summary.Total,
		Stages:      make([]ReportStage, 0, len(board.Stages)),
	}
	for _, stage := range board.Stages {
		rs := ReportStage{
			Name:  stage.Name,
			Order: stage.Order,
			Color: stage.Color,
			Total: kanban.StageTotal(stage),
			Cards: make([]ReportCard, 0, len(stage.Cards)),
		}
		for _, card := range stage.Cards {
			rs.Cards = append(rs.Cards, reportCard(card, opts))
		}
		report.Stages = append(report.Stages, rs)
	}
	for _, s := range summary.ByStatus {
		report.ByStatus = append(report.ByStatus, ReportStatus{Status: s.Status.Label(), Cards: s.Cards, Total: s.Total})
	}
	return report
}

func reportCard(card kanban.Card, opts Options) ReportCard {
	rc := ReportCard{
		ID:      card.ID,
		Title:   card.Title,
		Client:  card.Client,
		Status:  card.Status.Label(),
		Value:   card.Value,
		Labels:  card.Labels,
		Members: card.Members,
		DueDate: card.DueDate,
	}
	if opts.ActionName != nil {
		rc.Action = opts.ActionName(card.ActionID)
	}
	for _, item := range card.LineItems {
		rc.LineItems = append(rc.LineItems, ReportLineItem{Name: item.Name, UnitValue: item.UnitValue, Quantity: item.Quantity})
	}
	if opts.IncludeThread {
		for _, node := range kanban.ReplyTree(card.Comments) {
			rc.Thread = appendEntries(rc.Thread, node, 0)
		}
	}
	return rc
}

func appendEntries(out []ReportEntry, node *kanban.ThreadNode, depth int) []ReportEntry {
	out = append(out, ReportEntry{
		Author:    node.Author,
		Text:      node.Text,
		Kind:      string(node.Kind),
		CreatedAt: node.CreatedAt,
		Depth:     depth,
	})
	for _, reply := range node.Replies {
		out = appendEntries(out, reply, depth+1)
	}
	return out
}
