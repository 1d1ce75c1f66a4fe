package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"pipeline/internal/blob"
	"pipeline/internal/catalog"
	"pipeline/internal/config"
	"pipeline/internal/export"
	"pipeline/internal/kanban"
	"pipeline/internal/metrics"
	"pipeline/internal/search"
	"pipeline/internal/session"
	"pipeline/internal/store"
)

// Dependencies are the optional collaborators of the service. Nil fields
// disable the matching feature.
type Dependencies struct {
	Index    search.Index
	Blobs    blob.Store
	Metrics  *metrics.Metrics
	Exporter *export.Service
	Drafts   session.Store
}

// Service owns the board graph. Every mutation runs under mu on a snapshot
// that is restored if the operation fails, breaks a structural rule or
// cannot be persisted.
type Service struct {
	cfg      config.Config
	kv       store.KV
	search   *search.Service
	blobs    blob.Store
	metrics  *metrics.Metrics
	exporter *export.Service
	now      func() time.Time

	mu       sync.Mutex
	state    *kanban.State
	catalogs *catalog.Set

	draftTTL time.Duration
	drafts   session.Store
}

func New(cfg config.Config, kv store.KV, deps Dependencies) *Service {
	s := &Service{
		cfg:      cfg,
		kv:       kv,
		blobs:    deps.Blobs,
		metrics:  deps.Metrics,
		exporter: deps.Exporter,
		now:      time.Now,
		state:    kanban.NewState(nil),
		catalogs: &catalog.Set{Tags: catalog.NewActionTags(nil)},
		draftTTL: cfg.DraftTTL,
		drafts:   deps.Drafts,
	}
	if s.drafts == nil {
		s.drafts = session.NewMemory(func() time.Time { return s.now() })
	}
	if s.exporter == nil {
		s.exporter = export.NewService()
	}
	if s.draftTTL <= 0 {
		s.draftTTL = 30 * time.Minute
	}
	s.search = search.NewService(deps.Index, search.NewLocal(s.boardsSnapshot))
	return s
}

// Bootstrap loads every collection, seeds the starter board when the board
// collection is empty and pushes all cards to the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	boards, err := store.ReadJSON[[]kanban.Board](ctx, s.kv, store.KeyBoards, nil)
	if err != nil {
		return err
	}
	products, err := store.ReadJSON[[]catalog.Product](ctx, s.kv, store.KeyProducts, nil)
	if err != nil {
		return err
	}
	clients, err := store.ReadJSON[[]catalog.Client](ctx, s.kv, store.KeyClients, nil)
	if err != nil {
		return err
	}
	tags, err := store.ReadJSON[[]catalog.ActionTag](ctx, s.kv, store.KeyActionTags, nil)
	if err != nil {
		return err
	}

	legacy, err := store.Exists(ctx, s.kv, store.KeyLegacyStages)
	if err != nil {
		return fmt.Errorf("check legacy stages: %w", err)
	}
	if legacy {
		log.WithField("key", store.KeyLegacyStages).
			Warn("legacy single-board stage list found; it is not migrated and will be ignored")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = kanban.NewState(boards)
	s.catalogs = &catalog.Set{Products: products, Clients: clients, Tags: catalog.NewActionTags(tags)}

	if violations := s.state.Check(); len(violations) > 0 {
		for _, v := range violations {
			log.WithFields(log.Fields{"boardId": v.BoardID, "rule": v.Rule}).Warn(v.Detail)
		}
	}

	if s.cfg.Seed {
		seeded, err := s.state.EnsureBoard(s.now())
		if err != nil {
			return err
		}
		if seeded {
			if err := s.persist(ctx, store.KeyBoards, s.state.Boards); err != nil {
				return err
			}
			log.WithField("board", kanban.SeedBoardName).Info("seeded starter board")
		}
	}

	var records []search.CardRecord
	for _, board := range s.state.Boards {
		records = append(records, search.RecordsFromBoard(board)...)
	}
	s.search.ReindexAll(records)

	log.WithFields(log.Fields{
		"boards":   len(s.state.Boards),
		"products": len(products),
		"clients":  len(clients),
		"tags":     len(tags),
	}).Info("board state loaded")
	return nil
}

// Ping checks the persistence backend.
func (s *Service) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// PingBlobs checks attachment storage. It reports false when uploads are disabled.
func (s *Service) PingBlobs(ctx context.Context) (bool, error) {
	if s.blobs == nil {
		return false, nil
	}
	return true, s.blobs.Ping(ctx)
}

func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *Service) persist(ctx context.Context, key string, value any) error {
	started := time.Now()
	err := store.WriteJSON(ctx, s.kv, key, value)
	s.metrics.ObserveWrite(key, time.Since(started), err)
	if err != nil {
		log.WithError(err).WithField("collection", key).Error("persist collection")
	}
	return err
}

// mutate runs fn against the live state. On any failure the pre-mutation
// snapshot is put back, so callers never observe a partial change.
func (s *Service) mutate(ctx context.Context, op string, fn func(st *kanban.State, now time.Time) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.IncrementMutation(op, outcome(err)) }()

	before := s.state.Clone()
	if err = fn(s.state, s.now()); err != nil {
		s.state = before
		return err
	}
	if violations := introduced(before.Check(), s.state.Check()); len(violations) > 0 {
		s.state = before
		log.WithFields(log.Fields{"operation": op, "violations": len(violations)}).
			Error("mutation broke board invariants, rolled back")
		return kanban.ViolationError(violations)
	}
	if err = s.persist(ctx, store.KeyBoards, s.state.Boards); err != nil {
		s.state = before
		return err
	}
	s.syncSearch(before, s.state)
	return nil
}

// introduced keeps the violations in after that were not already present, so
// a board loaded in a bad shape does not block every later edit.
func introduced(before, after []kanban.Violation) []kanban.Violation {
	if len(after) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(before))
	for _, v := range before {
		known[v.String()] = struct{}{}
	}
	var out []kanban.Violation
	for _, v := range after {
		if _, ok := known[v.String()]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// mutateCard locates the card on any board and applies fn to it.
func (s *Service) mutateCard(ctx context.Context, op string, cardID int64, fn func(ids kanban.IDSource, card *kanban.Card, now time.Time) error) (kanban.Card, error) {
	var out kanban.Card
	err := s.mutate(ctx, op, func(st *kanban.State, now time.Time) error {
		board, card, err := locateCard(st, cardID)
		if err != nil {
			return err
		}
		if err := fn(st, card, now); err != nil {
			return err
		}
		board.UpdatedAt = now
		out = card.Clone()
		return nil
	})
	return out, err
}

func locateCard(st *kanban.State, cardID int64) (*kanban.Board, *kanban.Card, error) {
	for i := range st.Boards {
		if card, _, err := st.Boards[i].Card(cardID); err == nil {
			return &st.Boards[i], card, nil
		}
	}
	return nil, nil, &kanban.Error{Kind: kanban.ErrNotFound, Message: fmt.Sprintf("card %d not found", cardID)}
}

func (s *Service) syncSearch(before, after *kanban.State) {
	s.search.Sync(search.Changes(before.Boards, after.Boards))
}

func (s *Service) boardsSnapshot() []kanban.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]kanban.Board, len(s.state.Boards))
	for i, board := range s.state.Boards {
		out[i] = board.Clone()
	}
	return out
}

// Boards and stages

type BoardListItem struct {
	kanban.BoardSummary
	Description string `json:"descricao,omitempty"`
	Selected    bool   `json:"selected"`
}

type BoardView struct {
	Board    kanban.Board        `json:"board"`
	Summary  kanban.BoardSummary `json:"summary"`
	Selected bool                `json:"selected"`
}

func (s *Service) ListBoards() []BoardListItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BoardListItem, 0, len(s.state.Boards))
	for _, board := range s.state.Boards {
		out = append(out, BoardListItem{
			BoardSummary: kanban.Summarize(board),
			Description:  board.Description,
			Selected:     board.ID == s.state.SelectedBoardID,
		})
	}
	return out
}

func (s *Service) GetBoard(boardID int64) (BoardView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, err := s.state.Board(boardID)
	if err != nil {
		return BoardView{}, err
	}
	return BoardView{
		Board:    board.Clone(),
		Summary:  kanban.Summarize(*board),
		Selected: board.ID == s.state.SelectedBoardID,
	}, nil
}

func (s *Service) ActiveBoard() (BoardView, error) {
	s.mu.Lock()
	selected := s.state.SelectedBoardID
	s.mu.Unlock()
	return s.GetBoard(selected)
}

// Violations re-checks every board.
func (s *Service) Violations() []kanban.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Check()
}

func (s *Service) CreateBoard(ctx context.Context, name, description string) (kanban.Board, error) {
	var out kanban.Board
	err := s.mutate(ctx, "createBoard", func(st *kanban.State, now time.Time) error {
		board, err := st.CreateBoard(name, description, now)
		if err != nil {
			return err
		}
		out = board.Clone()
		return nil
	})
	return out, err
}

func (s *Service) RenameBoard(ctx context.Context, boardID int64, name, description string) (kanban.Board, error) {
	var out kanban.Board
	err := s.mutate(ctx, "renameBoard", func(st *kanban.State, now time.Time) error {
		board, err := st.RenameBoard(boardID, name, description, now)
		if err != nil {
			return err
		}
		out = board.Clone()
		return nil
	})
	return out, err
}

// DeleteBoard removes the board and reports the board selected afterwards.
func (s *Service) DeleteBoard(ctx context.Context, boardID int64) (int64, error) {
	var selected int64
	err := s.mutate(ctx, "deleteBoard", func(st *kanban.State, _ time.Time) error {
		if err := st.DeleteBoard(boardID); err != nil {
			return err
		}
		selected = st.SelectedBoardID
		return nil
	})
	if err == nil {
		s.dropDrafts(ctx, func(d kanban.Draft) bool { return d.BoardID == boardID })
	}
	return selected, err
}

// SelectBoard changes the active board. Selection is session state and is
// not persisted.
func (s *Service) SelectBoard(boardID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.state.Select(boardID)
	s.metrics.IncrementMutation("selectBoard", outcome(err))
	return err
}

func (s *Service) AddStage(ctx context.Context, boardID int64, name, color string) (kanban.Stage, error) {
	var out kanban.Stage
	err := s.mutate(ctx, "addStage", func(st *kanban.State, now time.Time) error {
		board, err := st.Board(boardID)
		if err != nil {
			return err
		}
		stage, err := board.AddStage(st, name, color, now)
		if err != nil {
			return err
		}
		out = stage.Clone()
		return nil
	})
	return out, err
}

func (s *Service) UpdateStage(ctx context.Context, boardID, stageID int64, name, color string) (kanban.Stage, error) {
	var out kanban.Stage
	err := s.mutate(ctx, "updateStage", func(st *kanban.State, now time.Time) error {
		board, err := st.Board(boardID)
		if err != nil {
			return err
		}
		stage, err := board.UpdateStage(stageID, name, color, now)
		if err != nil {
			return err
		}
		out = stage.Clone()
		return nil
	})
	return out, err
}

func (s *Service) ReorderStage(ctx context.Context, boardID int64, from, to int) (kanban.Board, error) {
	var out kanban.Board
	err := s.mutate(ctx, "reorderStage", func(st *kanban.State, now time.Time) error {
		board, err := st.Board(boardID)
		if err != nil {
			return err
		}
		if err := board.ReorderStage(from, to, now); err != nil {
			return err
		}
		out = board.Clone()
		return nil
	})
	return out, err
}

func (s *Service) DeleteStage(ctx context.Context, boardID, stageID int64) error {
	return s.mutate(ctx, "deleteStage", func(st *kanban.State, now time.Time) error {
		board, err := st.Board(boardID)
		if err != nil {
			return err
		}
		return board.DeleteStage(stageID, now)
	})
}

// Cards

// AddCard creates a card on the active board.
func (s *Service) AddCard(ctx context.Context, input kanban.CardInput) (kanban.Card, error) {
	var out kanban.Card
	err := s.mutate(ctx, "addCard", func(st *kanban.State, now time.Time) error {
		board, err := st.ActiveBoard()
		if err != nil {
			return err
		}
		card, err := board.AddCard(st, s.catalogs, input, now)
		if err != nil {
			return err
		}
		out = card.Clone()
		return nil
	})
	return out, err
}

func (s *Service) GetCard(cardID int64) (kanban.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, card, err := locateCard(s.state, cardID)
	if err != nil {
		return kanban.Card{}, err
	}
	return card.Clone(), nil
}

func (s *Service) UpdateCard(ctx context.Context, cardID int64, patch kanban.CardPatch) (kanban.Card, error) {
	return s.mutateCard(ctx, "updateCard", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		return card.ApplyPatch(ids, s.catalogs, patch, now)
	})
}

func (s *Service) DeleteCard(ctx context.Context, cardID int64) error {
	err := s.mutate(ctx, "deleteCard", func(st *kanban.State, now time.Time) error {
		board, _, err := locateCard(st, cardID)
		if err != nil {
			return err
		}
		return board.DeleteCard(cardID, now)
	})
	if err == nil {
		s.dropDrafts(ctx, func(d kanban.Draft) bool { return d.CardID == cardID })
	}
	return err
}

// MoveCard relocates a card of the active board.
func (s *Service) MoveCard(ctx context.Context, cardID, stageID int64) (kanban.Card, error) {
	var out kanban.Card
	err := s.mutate(ctx, "moveCard", func(st *kanban.State, now time.Time) error {
		card, err := st.MoveCard(cardID, stageID, now)
		if err != nil {
			return err
		}
		out = card.Clone()
		return nil
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"cardId": cardID, "stageId": stageID}).Debug("move rejected")
	}
	return out, err
}

func (s *Service) SetStatus(ctx context.Context, cardID int64, raw string) (kanban.Card, error) {
	status, err := kanban.ParseStatus(raw)
	if err != nil {
		s.metrics.IncrementMutation("setStatus", outcome(err))
		return kanban.Card{}, err
	}
	return s.mutateCard(ctx, "setStatus", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		return card.SetStatus(ids, status, now)
	})
}

func (s *Service) SetValue(ctx context.Context, cardID int64, value float64) (kanban.Card, error) {
	return s.mutateCard(ctx, "setValue", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		return card.SetValue(ids, value, now)
	})
}

func (s *Service) AddLineItem(ctx context.Context, cardID, productID int64, quantity int) (kanban.Card, error) {
	return s.mutateCard(ctx, "addLineItem", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		_, err := card.AddLineItem(ids, s.catalogs, productID, quantity, now)
		return err
	})
}

func (s *Service) RemoveLineItem(ctx context.Context, cardID, itemID int64) (kanban.Card, error) {
	return s.mutateCard(ctx, "removeLineItem", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		return card.RemoveLineItem(ids, itemID, now)
	})
}

func (s *Service) AddComment(ctx context.Context, cardID int64, author, text string) (kanban.Comment, error) {
	var out kanban.Comment
	_, err := s.mutateCard(ctx, "addComment", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		comment, err := card.AddComment(ids, author, text, now)
		out = comment
		return err
	})
	return out, err
}

func (s *Service) AddReply(ctx context.Context, cardID, parentID int64, author, text string) (kanban.Comment, error) {
	var out kanban.Comment
	_, err := s.mutateCard(ctx, "addReply", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		reply, err := card.AddReply(ids, parentID, author, text, now)
		out = reply
		return err
	})
	return out, err
}

type ThreadView struct {
	CardID   int64                `json:"cardId"`
	Timeline []kanban.Comment     `json:"timeline"`
	Tree     []*kanban.ThreadNode `json:"tree"`
}

func (s *Service) CardThread(cardID int64) (ThreadView, error) {
	card, err := s.GetCard(cardID)
	if err != nil {
		return ThreadView{}, err
	}
	return ThreadView{
		CardID:   card.ID,
		Timeline: kanban.Timeline(card.Comments),
		Tree:     kanban.ReplyTree(card.Comments),
	}, nil
}

func (s *Service) AddLabel(ctx context.Context, cardID int64, label string) (kanban.Card, error) {
	return s.mutateCard(ctx, "addLabel", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		return card.AddLabel(ids, label, now)
	})
}

func (s *Service) RemoveLabel(ctx context.Context, cardID int64, label string) (kanban.Card, error) {
	return s.mutateCard(ctx, "removeLabel", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		return card.RemoveLabel(ids, label, now)
	})
}

func (s *Service) AddMember(ctx context.Context, cardID int64, member string) (kanban.Card, error) {
	return s.mutateCard(ctx, "addMember", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		return card.AddMember(ids, member, now)
	})
}

func (s *Service) RemoveMember(ctx context.Context, cardID int64, member string) (kanban.Card, error) {
	return s.mutateCard(ctx, "removeMember", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		return card.RemoveMember(ids, member, now)
	})
}

func (s *Service) SetDueDate(ctx context.Context, cardID int64, due *time.Time) (kanban.Card, error) {
	return s.mutateCard(ctx, "setDueDate", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		card.SetDueDate(ids, due, now)
		return nil
	})
}

// Upload is an attachment payload received from the client.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type AttachmentResult struct {
	Card   kanban.Card  `json:"card"`
	Object *blob.Object `json:"object,omitempty"`
}

// AddAttachment stores the upload, when there is one, and bumps the card's
// attachment counter. Without an upload only the counter moves.
func (s *Service) AddAttachment(ctx context.Context, cardID int64, name string, upload *Upload) (AttachmentResult, error) {
	var object *blob.Object
	if upload != nil {
		if s.blobs == nil {
			return AttachmentResult{}, blob.ErrDisabled
		}
		s.mu.Lock()
		board, _, err := locateCard(s.state, cardID)
		var key string
		if err == nil {
			key = blob.ObjectKey(board.ID, cardID, s.state.NextID(), upload.Name)
		}
		s.mu.Unlock()
		if err != nil {
			return AttachmentResult{}, err
		}

		stored, err := s.blobs.Put(ctx, key, upload.Body, upload.Size, upload.ContentType)
		if err != nil {
			return AttachmentResult{}, err
		}
		object = &stored
		if name == "" {
			name = upload.Name
		}
	}

	card, err := s.mutateCard(ctx, "addAttachment", cardID, func(ids kanban.IDSource, card *kanban.Card, now time.Time) error {
		card.AddAttachment(ids, name, now)
		return nil
	})
	if err != nil {
		if object != nil {
			log.WithError(err).WithField("key", object.Key).Warn("attachment stored but card update failed")
		}
		return AttachmentResult{}, err
	}
	return AttachmentResult{Card: card, Object: object}, nil
}

// Drafts

type DraftView struct {
	Draft   kanban.Draft `json:"draft"`
	Preview kanban.Card  `json:"preview"`
}

func draftNotFound(id string) error {
	return &kanban.Error{Kind: kanban.ErrNotFound, Message: fmt.Sprintf("draft %s not found", id)}
}

// OpenDraft starts a dialog-scoped edit of a card.
func (s *Service) OpenDraft(ctx context.Context, cardID int64) (DraftView, error) {
	s.mu.Lock()
	board, card, err := locateCard(s.state, cardID)
	var draft kanban.Draft
	if err == nil {
		draft = kanban.NewDraft(uuid.NewString(), board.ID, *card, s.now(), s.draftTTL)
	}
	s.mu.Unlock()
	if err != nil {
		return DraftView{}, err
	}

	if err := s.drafts.Save(ctx, draft); err != nil {
		return DraftView{}, err
	}
	return DraftView{Draft: draft, Preview: draft.Base.Clone()}, nil
}

func (s *Service) lookupDraft(ctx context.Context, id string) (kanban.Draft, error) {
	draft, ok, err := s.drafts.Load(ctx, id)
	if err != nil {
		return kanban.Draft{}, err
	}
	if !ok {
		return kanban.Draft{}, draftNotFound(id)
	}
	return draft, nil
}

func (s *Service) preview(draft kanban.Draft) (kanban.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return draft.Preview(s.catalogs, s.now())
}

func (s *Service) GetDraft(ctx context.Context, id string) (DraftView, error) {
	draft, err := s.lookupDraft(ctx, id)
	if err != nil {
		return DraftView{}, err
	}
	preview, err := s.preview(draft)
	if err != nil {
		return DraftView{}, err
	}
	return DraftView{Draft: draft, Preview: preview}, nil
}

// UpdateDraft merges patch into the draft. A patch that would not apply
// cleanly is rejected and the draft keeps its previous edits.
func (s *Service) UpdateDraft(ctx context.Context, id string, patch kanban.CardPatch) (DraftView, error) {
	draft, err := s.lookupDraft(ctx, id)
	if err != nil {
		return DraftView{}, err
	}
	draft.Patch = draft.Patch.Merge(patch)

	preview, err := s.preview(draft)
	if err != nil {
		return DraftView{}, err
	}
	if err := s.drafts.Save(ctx, draft); err != nil {
		return DraftView{}, err
	}
	return DraftView{Draft: draft, Preview: preview}, nil
}

// SaveDraft merges the draft into the authoritative card and closes it.
func (s *Service) SaveDraft(ctx context.Context, id string) (kanban.Card, error) {
	draft, err := s.lookupDraft(ctx, id)
	if err != nil {
		return kanban.Card{}, err
	}
	var out kanban.Card
	err = s.mutate(ctx, "saveDraft", func(st *kanban.State, now time.Time) error {
		board, err := st.Board(draft.BoardID)
		if err != nil {
			return err
		}
		card, err := board.UpdateCard(st, s.catalogs, draft.CardID, draft.Patch, now)
		if err != nil {
			return err
		}
		out = card.Clone()
		return nil
	})
	if err != nil {
		return kanban.Card{}, err
	}
	if _, err := s.drafts.Delete(ctx, id); err != nil {
		log.WithError(err).WithField("draftId", id).Warn("saved draft could not be closed")
	}
	return out, nil
}

func (s *Service) DiscardDraft(ctx context.Context, id string) error {
	deleted, err := s.drafts.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return draftNotFound(id)
	}
	return nil
}

func (s *Service) dropDrafts(ctx context.Context, match func(kanban.Draft) bool) {
	if err := s.drafts.DeleteMatching(ctx, match); err != nil {
		log.WithError(err).Warn("drop drafts")
	}
}

// Action tags

func (s *Service) ActionTags() []catalog.ActionTag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalogs.Tags.List()
}

func (s *Service) mutateTags(ctx context.Context, op string, fn func(tags *catalog.ActionTags, ids kanban.IDSource) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.IncrementMutation(op, outcome(err)) }()

	before := catalog.NewActionTags(s.catalogs.Tags.List())
	if err = fn(s.catalogs.Tags, s.state); err != nil {
		s.catalogs.Tags = before
		return err
	}
	if err = s.persist(ctx, store.KeyActionTags, s.catalogs.Tags.List()); err != nil {
		s.catalogs.Tags = before
		return err
	}
	return nil
}

func (s *Service) CreateActionTag(ctx context.Context, input catalog.ActionTagInput) (catalog.ActionTag, error) {
	var out catalog.ActionTag
	err := s.mutateTags(ctx, "createActionTag", func(tags *catalog.ActionTags, ids kanban.IDSource) error {
		tag, err := tags.Add(ids, input)
		out = tag
		return err
	})
	return out, err
}

func (s *Service) UpdateActionTag(ctx context.Context, id int64, input catalog.ActionTagInput) (catalog.ActionTag, error) {
	var out catalog.ActionTag
	err := s.mutateTags(ctx, "updateActionTag", func(tags *catalog.ActionTags, _ kanban.IDSource) error {
		tag, err := tags.Update(id, input)
		out = tag
		return err
	})
	return out, err
}

// DeleteActionTag removes a tag. Cards that reference it keep the id, which
// then resolves to no tag.
func (s *Service) DeleteActionTag(ctx context.Context, id int64) error {
	return s.mutateTags(ctx, "deleteActionTag", func(tags *catalog.ActionTags, _ kanban.IDSource) error {
		return tags.Delete(id)
	})
}

// Search and export

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

func (s *Service) ExportBoard(ctx context.Context, boardID int64, format export.Format, includeThread bool) (*export.Result, error) {
	s.mu.Lock()
	board, err := s.state.Board(boardID)
	var snapshot kanban.Board
	var tags *catalog.ActionTags
	if err == nil {
		snapshot = board.Clone()
		tags = catalog.NewActionTags(s.catalogs.Tags.List())
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result, err := s.exporter.Export(ctx, snapshot, format, export.Options{
		ActionName: func(id *int64) string {
			if tag, ok := tags.Resolve(id); ok {
				return tag.Name
			}
			return ""
		},
		IncludeThread: includeThread,
		Now:           s.now(),
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"boardId": boardID, "format": format}).Warn("export failed")
		return nil, err
	}
	return result, nil
}

type historian interface {
	History(key string, limit int) ([]string, error)
}

// History lists recent commits of a collection when the backend keeps them.
func (s *Service) History(collection string, limit int) ([]string, error) {
	h, ok := s.kv.(historian)
	if !ok {
		return nil, domainError(http.StatusNotImplemented, "HISTORY_UNAVAILABLE", "The configured store does not keep history", nil)
	}
	return h.History(collection, limit)
}
