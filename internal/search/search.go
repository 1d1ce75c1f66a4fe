package search

import (
	"slices"
	"strings"

	"pipeline/internal/kanban"
)

// Result is a single card hit returned to the caller.
type Result struct {
	CardID  int64  `json:"cardId"`
	BoardID int64  `json:"boardId"`
	StageID int64  `json:"stageId"`
	Title   string `json:"titulo"`
	Client  string `json:"cliente"`
	Status  string `json:"status"`
	Snippet string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text    string
	BoardID int64 // 0 = all boards
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// CardRecord is the data we index for a card.
type CardRecord struct {
	ID          int64    `json:"id"`
	BoardID     int64    `json:"boardId"`
	StageID     int64    `json:"stageId"`
	Title       string   `json:"titulo"`
	Client      string   `json:"cliente"`
	Description string   `json:"descricao"`
	Labels      []string `json:"labels"`
	Members     []string `json:"membros"`
	Status      string   `json:"status"`
}

func RecordFromCard(boardID int64, card kanban.Card) CardRecord {
	return CardRecord{
		ID:          card.ID,
		BoardID:     boardID,
		StageID:     card.StageID,
		Title:       card.Title,
		Client:      card.Client,
		Description: card.Description,
		Labels:      append([]string{}, card.Labels...),
		Members:     append([]string{}, card.Members...),
		Status:      string(card.Status),
	}
}

// RecordsFromBoard flattens every card of the board into index records.
func RecordsFromBoard(board kanban.Board) []CardRecord {
	var out []CardRecord
	for _, stage := range board.Stages {
		for _, card := range stage.Cards {
			out = append(out, RecordFromCard(board.ID, card))
		}
	}
	return out
}

// Changes compares two snapshots of the board collection. It returns the
// records of cards that are new or whose indexed fields differ, and the ids
// of cards that no longer exist.
func Changes(before, after []kanban.Board) ([]CardRecord, []int64) {
	previous := make(map[int64]CardRecord)
	for _, board := range before {
		for _, record := range RecordsFromBoard(board) {
			previous[record.ID] = record
		}
	}
	var changed []CardRecord
	for _, board := range after {
		for _, record := range RecordsFromBoard(board) {
			old, ok := previous[record.ID]
			delete(previous, record.ID)
			if ok && old.equal(record) {
				continue
			}
			changed = append(changed, record)
		}
	}
	var removed []int64
	for id := range previous {
		removed = append(removed, id)
	}
	slices.Sort(removed)
	return changed, removed
}

func (r CardRecord) equal(other CardRecord) bool {
	return r.ID == other.ID &&
		r.BoardID == other.BoardID &&
		r.StageID == other.StageID &&
		r.Title == other.Title &&
		r.Client == other.Client &&
		r.Description == other.Description &&
		r.Status == other.Status &&
		slices.Equal(r.Labels, other.Labels) &&
		slices.Equal(r.Members, other.Members)
}

func (r CardRecord) title() string {
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	return r.Client
}

func (r CardRecord) result(snippet string) Result {
	return Result{
		CardID:  r.ID,
		BoardID: r.BoardID,
		StageID: r.StageID,
		Title:   r.title(),
		Client:  r.Client,
		Status:  r.Status,
		Snippet: snippet,
	}
}
