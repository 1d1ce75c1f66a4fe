package search

import (
	"strings"

	"pipeline/internal/kanban"
)

// Local scans the in-memory boards. It is always available and serves every
// query while no search server is configured or reachable.
type Local struct {
	boards func() []kanban.Board
}

func NewLocal(boards func() []kanban.Board) *Local {
	return &Local{boards: boards}
}

func (l *Local) Healthy() bool {
	return true
}

func (l *Local) Search(q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return nil, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var matches []Result
	for _, board := range l.boards() {
		if q.BoardID != 0 && board.ID != q.BoardID {
			continue
		}
		for _, record := range RecordsFromBoard(board) {
			if snippet, ok := matchRecord(record, terms); ok {
				matches = append(matches, record.result(snippet))
			}
		}
	}

	total := len(matches)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

// matchRecord requires every term to appear in some field of the record.
func matchRecord(record CardRecord, terms []string) (string, bool) {
	fields := []string{record.Client, record.Title, record.Description}
	fields = append(fields, record.Labels...)
	fields = append(fields, record.Members...)
	lowered := make([]string, len(fields))
	for i, f := range fields {
		lowered[i] = strings.ToLower(f)
	}

	for _, term := range terms {
		found := false
		for _, f := range lowered {
			if strings.Contains(f, term) {
				found = true
				break
			}
		}
		if !found {
			return "", false
		}
	}
	return snippet(record.Description, 160), true
}

func snippet(text string, max int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
