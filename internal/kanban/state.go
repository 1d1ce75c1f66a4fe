package kanban

import (
	"strings"
	"time"
)

// IDSource hands out identifiers that are unique for the lifetime of the process.
type IDSource interface {
	NextID() int64
}

// Sequence allocates millisecond-based identifiers that never repeat, even
// when several are requested within the same millisecond.
type Sequence struct {
	last int64
	now  func() time.Time
}

func (s *Sequence) NextID() int64 {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	candidate := now().UnixMilli()
	if candidate <= s.last {
		candidate = s.last + 1
	}
	s.last = candidate
	return candidate
}

// Observe makes sure ids loaded from storage are never handed out again.
func (s *Sequence) Observe(id int64) {
	if id > s.last {
		s.last = id
	}
}

type stageTemplate struct {
	Name  string
	Color string
}

var defaultStages = []stageTemplate{
	{Name: "Leads", Color: "#3B82F6"},
	{Name: "Qualificação", Color: "#F59E0B"},
	{Name: "Proposta", Color: "#10B981"},
	{Name: "Fechado", Color: "#059669"},
}

const (
	SeedBoardName        = "Kanban Comercial"
	seedBoardDescription = "Quadro principal para oportunidades de negócio"
)

// State is the explicit application state the operations work on: the board
// collection, which board is currently selected, and the id allocator.
type State struct {
	Boards          []Board
	SelectedBoardID int64
	seq             Sequence
}

func NewState(boards []Board) *State {
	s := &State{Boards: boards}
	for _, board := range boards {
		s.seq.Observe(board.ID)
		for _, stage := range board.Stages {
			s.seq.Observe(stage.ID)
			for _, card := range stage.Cards {
				s.seq.Observe(card.ID)
				for _, item := range card.LineItems {
					s.seq.Observe(item.ID)
				}
				for _, entry := range card.Comments {
					s.seq.Observe(entry.ID)
				}
			}
		}
	}
	if len(boards) > 0 {
		s.SelectedBoardID = boards[0].ID
	}
	return s
}

func (s *State) NextID() int64 {
	return s.seq.NextID()
}

func (s *State) Board(boardID int64) (*Board, error) {
	for i := range s.Boards {
		if s.Boards[i].ID == boardID {
			return &s.Boards[i], nil
		}
	}
	return nil, notFound("board %d not found", boardID)
}

// ActiveBoard returns the currently selected board.
func (s *State) ActiveBoard() (*Board, error) {
	if s.SelectedBoardID == 0 {
		return nil, notFound("no board selected")
	}
	return s.Board(s.SelectedBoardID)
}

func (s *State) Select(boardID int64) error {
	if _, err := s.Board(boardID); err != nil {
		return err
	}
	s.SelectedBoardID = boardID
	return nil
}

// CreateBoard appends a board built from the default stage template.
func (s *State) CreateBoard(name, description string, now time.Time) (*Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("board name is required")
	}
	board := Board{
		ID:          s.NextID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Stages:      make([]Stage, 0, len(defaultStages)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, tpl := range defaultStages {
		board.Stages = append(board.Stages, Stage{
			ID:    s.NextID(),
			Name:  tpl.Name,
			Order: i + 1,
			Color: tpl.Color,
			Cards: []Card{},
		})
	}
	s.Boards = append(s.Boards, board)
	if s.SelectedBoardID == 0 {
		s.SelectedBoardID = board.ID
	}
	return &s.Boards[len(s.Boards)-1], nil
}

// EnsureBoard seeds the starter board when the collection is empty so that at
// least one board always exists. It reports whether a board was created.
func (s *State) EnsureBoard(now time.Time) (bool, error) {
	if len(s.Boards) > 0 {
		return false, nil
	}
	if _, err := s.CreateBoard(SeedBoardName, seedBoardDescription, now); err != nil {
		return false, err
	}
	return true, nil
}

func (s *State) RenameBoard(boardID int64, name, description string, now time.Time) (*Board, error) {
	board, err := s.Board(boardID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("board name is required")
	}
	board.Name = name
	board.Description = strings.TrimSpace(description)
	board.UpdatedAt = now
	return board, nil
}

// DeleteBoard removes a board with its stages and cards. The last remaining
// board cannot be deleted. When the selected board goes away the first
// remaining board becomes the selection.
func (s *State) DeleteBoard(boardID int64) error {
	idx := -1
	for i := range s.Boards {
		if s.Boards[i].ID == boardID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return notFound("board %d not found", boardID)
	}
	if len(s.Boards) <= 1 {
		return invariantViolation("cannot delete the last board")
	}
	s.Boards = append(s.Boards[:idx:idx], s.Boards[idx+1:]...)
	if s.SelectedBoardID == boardID {
		s.SelectedBoardID = s.Boards[0].ID
	}
	return nil
}

// Clone returns a deep copy of the state, allocator included.
func (s *State) Clone() *State {
	out := &State{
		Boards:          make([]Board, len(s.Boards)),
		SelectedBoardID: s.SelectedBoardID,
		seq:             s.seq,
	}
	for i, board := range s.Boards {
		out.Boards[i] = board.Clone()
	}
	return out
}
