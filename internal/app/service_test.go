package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"

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

// flakyKV is an in-memory store whose writes and pings can be made to fail.
type flakyKV struct {
	*store.Memory
	failWrites bool
	pingErr    error
}

func (f *flakyKV) Write(ctx context.Context, key string, value []byte) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.Memory.Write(ctx, key, value)
}

func (f *flakyKV) Ping(context.Context) error { return f.pingErr }

type fakeBlobs struct {
	puts []string
	body string
}

func (f *fakeBlobs) Put(_ context.Context, key string, body io.Reader, size int64, contentType string) (blob.Object, error) {
	data, _ := io.ReadAll(body)
	f.puts = append(f.puts, key)
	f.body = string(data)
	return blob.Object{Key: key, Name: key[strings.LastIndex(key, "/")+1:], Size: size, ContentType: contentType}, nil
}

func (f *fakeBlobs) Ping(context.Context) error { return nil }

func newKV(t *testing.T) *flakyKV {
	t.Helper()
	kv := &flakyKV{Memory: store.NewMemory()}
	ctx := context.Background()
	if err := store.WriteJSON(ctx, kv, store.KeyProducts, []catalog.Product{
		{ID: 7, Name: "Consultoria", Price: 100},
		{ID: 8, Name: "Suporte", Price: 49.9},
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.WriteJSON(ctx, kv, store.KeyClients, []catalog.Client{{ID: 3, Name: "Acme Ltda"}}); err != nil {
		t.Fatal(err)
	}
	return kv
}

func newTestService(t *testing.T, kv store.KV, deps Dependencies) *Service {
	t.Helper()
	svc := New(config.Config{Seed: true, DraftTTL: time.Minute}, kv, deps)
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return svc
}

func activeBoard(t *testing.T, svc *Service) kanban.Board {
	t.Helper()
	view, err := svc.ActiveBoard()
	if err != nil {
		t.Fatalf("ActiveBoard: %v", err)
	}
	return view.Board
}

func expectKind(t *testing.T, err error, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func TestBootstrapSeedsStarterBoard(t *testing.T) {
	kv := newKV(t)
	svc := newTestService(t, kv, Dependencies{})

	boards := svc.ListBoards()
	if len(boards) != 1 || boards[0].Name != kanban.SeedBoardName || !boards[0].Selected {
		t.Fatalf("unexpected boards: %+v", boards)
	}
	if len(boards[0].Stages) != 4 || boards[0].Stages[0].Name != "Leads" {
		t.Fatalf("expected the default stage template, got %+v", boards[0].Stages)
	}

	persisted, err := store.ReadJSON[[]kanban.Board](context.Background(), kv, store.KeyBoards, nil)
	if err != nil || len(persisted) != 1 {
		t.Fatalf("seeded board should be persisted: %v %+v", err, persisted)
	}

	// A second start reuses what was stored instead of seeding again.
	again := newTestService(t, kv, Dependencies{})
	if got := again.ListBoards(); len(got) != 1 || got[0].BoardID != boards[0].BoardID {
		t.Fatalf("restart should load the stored board, got %+v", got)
	}
}

func TestBootstrapWithoutSeedLeavesCollectionEmpty(t *testing.T) {
	svc := New(config.Config{}, newKV(t), Dependencies{})
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if len(svc.ListBoards()) != 0 {
		t.Fatal("no board expected without seeding")
	}
	_, err := svc.AddCard(context.Background(), kanban.CardInput{Client: "Acme"})
	expectKind(t, err, kanban.ErrNotFound)
}

func TestBootstrapToleratesLegacyStages(t *testing.T) {
	kv := newKV(t)
	if err := kv.Memory.Write(context.Background(), store.KeyLegacyStages, []byte(`[{"id":1,"titulo":"Leads","cards":[]}]`)); err != nil {
		t.Fatal(err)
	}
	svc := newTestService(t, kv, Dependencies{})
	if len(svc.ListBoards()) != 1 {
		t.Fatal("legacy key must not stop the board collection from loading")
	}
}

func TestAddAndMoveCardPersists(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)
	svc := newTestService(t, kv, Dependencies{})
	board := activeBoard(t, svc)
	leads, proposta := board.Stages[0], board.Stages[2]

	card, err := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", Value: 1000, Status: "hot", StageID: leads.ID})
	if err != nil {
		t.Fatalf("AddCard: %v", err)
	}
	moved, err := svc.MoveCard(ctx, card.ID, proposta.ID)
	if err != nil {
		t.Fatalf("MoveCard: %v", err)
	}
	if moved.StageID != proposta.ID {
		t.Fatalf("card stage = %d, want %d", moved.StageID, proposta.ID)
	}

	reloaded := newTestService(t, kv, Dependencies{})
	view, err := reloaded.GetBoard(board.ID)
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	if len(view.Board.Stages[0].Cards) != 0 || len(view.Board.Stages[2].Cards) != 1 {
		t.Fatalf("move was not persisted: %+v", view.Summary.Stages)
	}
	if view.Summary.Total != 1000 || view.Summary.Cards != 1 {
		t.Fatalf("unexpected summary: %+v", view.Summary)
	}
}

func TestMoveCardOnlyTouchesActiveBoard(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newKV(t), Dependencies{})
	first := activeBoard(t, svc)
	card, err := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: first.Stages[0].ID})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.CreateBoard(ctx, "Pós-venda", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.SelectBoard(second.ID); err != nil {
		t.Fatal(err)
	}
	_, err = svc.MoveCard(ctx, card.ID, second.Stages[1].ID)
	expectKind(t, err, kanban.ErrNotFound)
}

func TestFailedWriteRollsBack(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)
	svc := newTestService(t, kv, Dependencies{})
	board := activeBoard(t, svc)

	kv.failWrites = true
	if _, err := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: board.Stages[0].ID}); err == nil {
		t.Fatal("expected the write failure to surface")
	}
	if got := svc.ListBoards()[0].Cards; got != 0 {
		t.Fatalf("failed write must leave the board untouched, got %d cards", got)
	}

	kv.failWrites = false
	if _, err := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: board.Stages[0].ID}); err != nil {
		t.Fatalf("AddCard after recovery: %v", err)
	}
}

func TestStageRulesThroughService(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newKV(t), Dependencies{})
	board := activeBoard(t, svc)

	if _, err := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: board.Stages[1].ID}); err != nil {
		t.Fatal(err)
	}
	err := svc.DeleteStage(ctx, board.ID, board.Stages[1].ID)
	expectKind(t, err, kanban.ErrInvariant)
	if domain := toDomainError(err); domain.Status != 409 || domain.Code != "INVARIANT_VIOLATION" {
		t.Fatalf("unexpected mapping: %+v", domain)
	}

	if err := svc.DeleteStage(ctx, board.ID, board.Stages[3].ID); err != nil {
		t.Fatalf("DeleteStage(empty): %v", err)
	}
	reordered, err := svc.ReorderStage(ctx, board.ID, 2, 0)
	if err != nil {
		t.Fatalf("ReorderStage: %v", err)
	}
	for i, stage := range reordered.Stages {
		if stage.Order != i+1 {
			t.Fatalf("stage orders not dense: %+v", reordered.Stages)
		}
	}
	if reordered.Stages[0].Name != "Proposta" {
		t.Fatalf("expected Proposta first, got %s", reordered.Stages[0].Name)
	}

	_, err = svc.DeleteBoard(ctx, board.ID)
	expectKind(t, err, kanban.ErrInvariant)
}

func TestLedgerThroughService(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newKV(t), Dependencies{})
	board := activeBoard(t, svc)

	card, err := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", Value: 500, StageID: board.Stages[0].ID})
	if err != nil {
		t.Fatal(err)
	}
	card, err = svc.AddLineItem(ctx, card.ID, 7, 2)
	if err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}
	if card.Value != 200 {
		t.Fatalf("value = %v, want 200", card.Value)
	}
	_, err = svc.SetValue(ctx, card.ID, 999)
	expectKind(t, err, kanban.ErrValidation)

	card, err = svc.RemoveLineItem(ctx, card.ID, card.LineItems[0].ID)
	if err != nil {
		t.Fatalf("RemoveLineItem: %v", err)
	}
	if card.Value != 200 || len(card.LineItems) != 0 {
		t.Fatalf("value should stay at the last total, got %+v", card)
	}
	if card, err = svc.SetValue(ctx, card.ID, 750); err != nil || card.Value != 750 {
		t.Fatalf("SetValue after clearing items: %v %v", err, card.Value)
	}

	_, err = svc.AddLineItem(ctx, card.ID, 404, 1)
	expectKind(t, err, kanban.ErrNotFound)
}

func TestCommentsAndThread(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newKV(t), Dependencies{})
	board := activeBoard(t, svc)
	card, _ := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: board.Stages[0].ID})

	comment, err := svc.AddComment(ctx, card.ID, "Ana", "ok")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := svc.AddReply(ctx, card.ID, comment.ID, "Bruno", "combinado"); err != nil {
		t.Fatalf("AddReply: %v", err)
	}
	_, err = svc.AddReply(ctx, card.ID, 1, "Bruno", "?")
	expectKind(t, err, kanban.ErrNotFound)

	thread, err := svc.CardThread(card.ID)
	if err != nil {
		t.Fatalf("CardThread: %v", err)
	}
	// created activity, comment, comment activity, reply
	if len(thread.Timeline) != 4 {
		t.Fatalf("unexpected timeline: %+v", thread.Timeline)
	}
	var found bool
	for _, node := range thread.Tree {
		if node.ID == comment.ID && len(node.Replies) == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("reply should nest under its comment: %+v", thread.Tree)
	}
}

func TestCardEditActionsThroughService(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newKV(t), Dependencies{})
	board := activeBoard(t, svc)
	card, _ := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: board.Stages[0].ID})

	card, _ = svc.AddLabel(ctx, card.ID, "vip")
	card, _ = svc.AddLabel(ctx, card.ID, "VIP")
	card, _ = svc.AddMember(ctx, card.ID, "Ana")
	due := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	card, _ = svc.SetDueDate(ctx, card.ID, &due)
	card, err := svc.SetStatus(ctx, card.ID, "perdido")
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if len(card.Labels) != 1 || len(card.Members) != 1 || card.DueDate == nil || card.Status != kanban.StatusLost {
		t.Fatalf("unexpected card: %+v", card)
	}
	card, _ = svc.RemoveLabel(ctx, card.ID, "vip")
	card, _ = svc.RemoveMember(ctx, card.ID, "ana")
	if len(card.Labels) != 0 || len(card.Members) != 0 {
		t.Fatalf("labels/members not removed: %+v", card)
	}
	_, err = svc.SetStatus(ctx, card.ID, "fervendo")
	expectKind(t, err, kanban.ErrValidation)

	if err := svc.DeleteCard(ctx, card.ID); err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	_, err = svc.GetCard(card.ID)
	expectKind(t, err, kanban.ErrNotFound)
}

func TestDraftLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newKV(t), Dependencies{})
	board := activeBoard(t, svc)
	card, _ := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: board.Stages[0].ID})

	view, err := svc.OpenDraft(ctx, card.ID)
	if err != nil {
		t.Fatalf("OpenDraft: %v", err)
	}
	title := "Renovação"
	view, err = svc.UpdateDraft(ctx, view.Draft.ID, kanban.CardPatch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateDraft: %v", err)
	}
	if view.Preview.Title != title {
		t.Fatalf("preview should show the pending title, got %q", view.Preview.Title)
	}
	if stored, _ := svc.GetCard(card.ID); stored.Title != "" {
		t.Fatal("draft edits must not reach the board before save")
	}

	bad := "fervendo"
	_, err = svc.UpdateDraft(ctx, view.Draft.ID, kanban.CardPatch{Status: &bad})
	expectKind(t, err, kanban.ErrValidation)
	if kept, err := svc.GetDraft(ctx, view.Draft.ID); err != nil || kept.Draft.Patch.Status != nil {
		t.Fatalf("rejected patch must not be kept: %v %+v", err, kept.Draft.Patch)
	}

	saved, err := svc.SaveDraft(ctx, view.Draft.ID)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if saved.Title != title {
		t.Fatalf("saved title = %q", saved.Title)
	}
	_, err = svc.SaveDraft(ctx, view.Draft.ID)
	expectKind(t, err, kanban.ErrNotFound)

	discard, _ := svc.OpenDraft(ctx, card.ID)
	if err := svc.DiscardDraft(ctx, discard.Draft.ID); err != nil {
		t.Fatalf("DiscardDraft: %v", err)
	}
	expectKind(t, svc.DiscardDraft(ctx, discard.Draft.ID), kanban.ErrNotFound)
}

func TestDraftExpires(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newKV(t), Dependencies{})
	board := activeBoard(t, svc)
	card, _ := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: board.Stages[0].ID})

	start := time.Now()
	svc.now = func() time.Time { return start }
	view, err := svc.OpenDraft(ctx, card.ID)
	if err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = svc.GetDraft(ctx, view.Draft.ID)
	expectKind(t, err, kanban.ErrNotFound)
}

func TestDeletingCardDropsItsDrafts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newKV(t), Dependencies{})
	board := activeBoard(t, svc)
	card, _ := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: board.Stages[0].ID})
	view, _ := svc.OpenDraft(ctx, card.ID)

	if err := svc.DeleteCard(ctx, card.ID); err != nil {
		t.Fatal(err)
	}
	_, err := svc.GetDraft(ctx, view.Draft.ID)
	expectKind(t, err, kanban.ErrNotFound)
}

func TestActionTagCRUDPersists(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)
	svc := newTestService(t, kv, Dependencies{})

	first, err := svc.CreateActionTag(ctx, catalog.ActionTagInput{Name: "Ligar", Color: "#f00"})
	if err != nil {
		t.Fatalf("CreateActionTag: %v", err)
	}
	second, _ := svc.CreateActionTag(ctx, catalog.ActionTagInput{Name: "Enviar proposta"})
	if first.Order != 1 || second.Order != 2 {
		t.Fatalf("orders = %d, %d", first.Order, second.Order)
	}
	if _, err := svc.UpdateActionTag(ctx, first.ID, catalog.ActionTagInput{Name: "Ligar de novo"}); err != nil {
		t.Fatalf("UpdateActionTag: %v", err)
	}
	_, err = svc.CreateActionTag(ctx, catalog.ActionTagInput{})
	expectKind(t, err, kanban.ErrValidation)

	board := activeBoard(t, svc)
	card, err := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: board.Stages[0].ID, ActionID: &second.ID})
	if err != nil {
		t.Fatalf("AddCard with tag: %v", err)
	}
	if err := svc.DeleteActionTag(ctx, second.ID); err != nil {
		t.Fatalf("DeleteActionTag: %v", err)
	}
	if stored, _ := svc.GetCard(card.ID); stored.ActionID == nil || *stored.ActionID != second.ID {
		t.Fatal("cards keep the id of a deleted tag")
	}

	tags, err := store.ReadJSON[[]catalog.ActionTag](ctx, kv, store.KeyActionTags, nil)
	if err != nil || len(tags) != 1 || tags[0].Name != "Ligar de novo" {
		t.Fatalf("unexpected persisted tags: %v %+v", err, tags)
	}
}

func TestAttachments(t *testing.T) {
	ctx := context.Background()
	blobs := &fakeBlobs{}
	svc := newTestService(t, newKV(t), Dependencies{Blobs: blobs})
	board := activeBoard(t, svc)
	card, _ := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: board.Stages[0].ID})

	result, err := svc.AddAttachment(ctx, card.ID, "", &Upload{
		Name: "proposta.pdf", ContentType: "application/pdf", Size: 4, Body: bytes.NewBufferString("%PDF"),
	})
	if err != nil {
		t.Fatalf("AddAttachment: %v", err)
	}
	if result.Card.Attachments != 1 || result.Object == nil || blobs.body != "%PDF" {
		t.Fatalf("unexpected upload result: %+v", result)
	}
	if !strings.HasSuffix(blobs.puts[0], "-proposta.pdf") {
		t.Fatalf("unexpected object key %q", blobs.puts[0])
	}

	result, err = svc.AddAttachment(ctx, card.ID, "contrato assinado", nil)
	if err != nil || result.Card.Attachments != 2 || result.Object != nil {
		t.Fatalf("counter-only attachment: %v %+v", err, result)
	}

	noBlobs := newTestService(t, newKV(t), Dependencies{})
	_, err = noBlobs.AddAttachment(ctx, card.ID, "", &Upload{Name: "x", Body: bytes.NewBufferString("x")})
	expectKind(t, err, blob.ErrDisabled)
}

func TestSearchFallsBackToLocalScan(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newKV(t), Dependencies{})
	board := activeBoard(t, svc)
	if _, err := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", Description: "Renovação anual", StageID: board.Stages[0].ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddCard(ctx, kanban.CardInput{Client: "Beta", StageID: board.Stages[0].ID}); err != nil {
		t.Fatal(err)
	}

	resp := svc.Search(search.Query{Text: "acme renovação"})
	if resp.Engine != "local" || resp.Total != 1 || resp.Results[0].Client != "Acme" {
		t.Fatalf("unexpected search response: %+v", resp)
	}
}

func TestExportBoardResolvesActionTags(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newKV(t), Dependencies{})
	tag, _ := svc.CreateActionTag(ctx, catalog.ActionTagInput{Name: "Ligar"})
	board := activeBoard(t, svc)
	if _, err := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", Value: 10, StageID: board.Stages[0].ID, ActionID: &tag.ID}); err != nil {
		t.Fatal(err)
	}

	result, err := svc.ExportBoard(ctx, board.ID, export.FormatYAML, false)
	if err != nil {
		t.Fatalf("ExportBoard: %v", err)
	}
	if !strings.Contains(string(result.Data), "acao: Ligar") {
		t.Fatalf("export should name the action tag:\n%s", result.Data)
	}
	_, err = svc.ExportBoard(ctx, 12345, export.FormatYAML, false)
	expectKind(t, err, kanban.ErrNotFound)
}

func TestHistoryNeedsGitStore(t *testing.T) {
	svc := newTestService(t, newKV(t), Dependencies{})
	_, err := svc.History(store.KeyBoards, 5)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "HISTORY_UNAVAILABLE" {
		t.Fatalf("expected HISTORY_UNAVAILABLE, got %v", err)
	}

	git, err := store.NewGit(t.TempDir())
	if err != nil {
		t.Fatalf("NewGit: %v", err)
	}
	svc = newTestService(t, git, Dependencies{})
	if _, err := svc.CreateBoard(context.Background(), "Pós-venda", ""); err != nil {
		t.Fatal(err)
	}
	commits, err := svc.History(store.KeyBoards, 10)
	if err != nil || len(commits) != 2 {
		t.Fatalf("expected seed and create commits, got %v %v", err, commits)
	}
}

func TestMutationMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	svc := newTestService(t, newKV(t), Dependencies{Metrics: m})
	board := activeBoard(t, svc)

	_, _ = svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: board.Stages[0].ID})
	_, _ = svc.AddCard(ctx, kanban.CardInput{StageID: board.Stages[0].ID})

	if got := testutil.ToFloat64(m.Mutations.WithLabelValues("addCard", "ok")); got != 1 {
		t.Fatalf("addCard ok = %v", got)
	}
	if got := testutil.ToFloat64(m.Mutations.WithLabelValues("addCard", "validation")); got != 1 {
		t.Fatalf("addCard validation = %v", got)
	}
	if got := testutil.ToFloat64(m.Writes.WithLabelValues(store.KeyBoards, "ok")); got != 2 {
		t.Fatalf("board writes = %v, want seed + addCard", got)
	}
}

func TestDraftsInRedisOutliveTheService(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	drafts, err := session.NewRedis("redis://" + server.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer drafts.Close()

	kv := newKV(t)
	svc := newTestService(t, kv, Dependencies{Drafts: drafts})
	board := activeBoard(t, svc)
	card, _ := svc.AddCard(ctx, kanban.CardInput{Client: "Acme", StageID: board.Stages[0].ID})
	view, err := svc.OpenDraft(ctx, card.ID)
	if err != nil {
		t.Fatal(err)
	}
	description := "Proposta revisada"
	if _, err := svc.UpdateDraft(ctx, view.Draft.ID, kanban.CardPatch{Description: &description}); err != nil {
		t.Fatal(err)
	}

	restarted := newTestService(t, kv, Dependencies{Drafts: drafts})
	saved, err := restarted.SaveDraft(ctx, view.Draft.ID)
	if err != nil {
		t.Fatalf("SaveDraft after restart: %v", err)
	}
	if saved.Description != description {
		t.Fatalf("description = %q", saved.Description)
	}
}
