package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pipeline/internal/kanban"
	"pipeline/internal/metrics"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	service *Service
	kv      *flakyKV
}

func newTestAPI(t *testing.T, deps Dependencies) *testAPI {
	t.Helper()
	kv := newKV(t)
	svc := newTestService(t, kv, deps)
	return &testAPI{t: t, handler: NewHTTPServer(svc, "*").Handler(), service: svc, kv: kv}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			a.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) expect(rec *httptest.ResponseRecorder, status int, target any) {
	a.t.Helper()
	if rec.Code != status {
		a.t.Fatalf("status = %d, want %d: %s", rec.Code, status, rec.Body.String())
	}
	if target != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
			a.t.Fatalf("decode response: %v: %s", err, rec.Body.String())
		}
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v: %s", err, rec.Body.String())
	}
	return body.Code
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t, Dependencies{})
	api.expect(api.do(http.MethodGet, "/api/health", nil), http.StatusOK, nil)

	var ready struct {
		OK     bool   `json:"ok"`
		Status string `json:"status"`
	}
	api.expect(api.do(http.MethodGet, "/api/ready", nil), http.StatusOK, &ready)
	if !ready.OK || ready.Status != "ready" {
		t.Fatalf("unexpected ready body: %+v", ready)
	}

	api.kv.pingErr = errors.New("connection refused")
	api.expect(api.do(http.MethodGet, "/api/ready", nil), http.StatusServiceUnavailable, &ready)
	if ready.OK || ready.Status != "not_ready" {
		t.Fatalf("unexpected not-ready body: %+v", ready)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	api := newTestAPI(t, Dependencies{})

	rec := api.do(http.MethodOptions, "/api/boards", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header: %v", rec.Header())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "req-42" {
		t.Fatalf("request id not echoed: %q", rec.Header().Get("X-Request-ID"))
	}

	rec = api.do(http.MethodGet, "/api/nope", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "NOT_FOUND" {
		t.Fatalf("unknown route: %d %s", rec.Code, rec.Body.String())
	}
}

func TestBoardAndCardFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t, Dependencies{})

	var active BoardView
	api.expect(api.do(http.MethodGet, "/api/boards/active", nil), http.StatusOK, &active)
	leads, proposta := active.Board.Stages[0], active.Board.Stages[2]

	var card kanban.Card
	api.expect(api.do(http.MethodPost, "/api/cards", map[string]any{
		"cliente": "Acme", "valor": 1000, "status": "hot", "estagio": leads.ID,
	}), http.StatusCreated, &card)

	api.expect(api.do(http.MethodPost, fmt.Sprintf("/api/cards/%d/move", card.ID), map[string]any{
		"stageId": proposta.ID,
	}), http.StatusOK, &card)
	if card.StageID != proposta.ID {
		t.Fatalf("card stage = %d", card.StageID)
	}

	var view BoardView
	api.expect(api.do(http.MethodGet, fmt.Sprintf("/api/boards/%d", active.Board.ID), nil), http.StatusOK, &view)
	if view.Summary.Total != 1000 || view.Summary.Stages[2].Cards != 1 || view.Summary.Stages[0].Cards != 0 {
		t.Fatalf("unexpected summary: %+v", view.Summary)
	}

	var comment kanban.Comment
	api.expect(api.do(http.MethodPost, fmt.Sprintf("/api/cards/%d/comments", card.ID), map[string]any{
		"autor": "Ana", "texto": "ligar amanhã",
	}), http.StatusCreated, &comment)
	api.expect(api.do(http.MethodPost, fmt.Sprintf("/api/cards/%d/comments/%d/replies", card.ID, comment.ID), map[string]any{
		"autor": "Bruno", "texto": "ok",
	}), http.StatusCreated, nil)

	var thread ThreadView
	api.expect(api.do(http.MethodGet, fmt.Sprintf("/api/cards/%d/thread", card.ID), nil), http.StatusOK, &thread)
	if len(thread.Timeline) == 0 || thread.Timeline[0].Kind != kanban.KindActivity {
		t.Fatalf("thread should open with the creation activity: %+v", thread.Timeline)
	}

	api.expect(api.do(http.MethodPost, fmt.Sprintf("/api/cards/%d/labels", card.ID), map[string]any{"label": "vip"}), http.StatusOK, &card)
	api.expect(api.do(http.MethodDelete, fmt.Sprintf("/api/cards/%d/labels/vip", card.ID), nil), http.StatusOK, &card)
	if len(card.Labels) != 0 {
		t.Fatalf("label not removed: %+v", card.Labels)
	}

	api.expect(api.do(http.MethodDelete, fmt.Sprintf("/api/cards/%d", card.ID), nil), http.StatusOK, nil)
	rec := api.do(http.MethodGet, fmt.Sprintf("/api/cards/%d", card.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted card status = %d", rec.Code)
	}
}

func TestErrorMappingOverHTTP(t *testing.T) {
	api := newTestAPI(t, Dependencies{})
	var active BoardView
	api.expect(api.do(http.MethodGet, "/api/boards/active", nil), http.StatusOK, &active)
	boardID := active.Board.ID
	stage := active.Board.Stages[0]

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"malformed json", http.MethodPost, "/api/cards", "{", http.StatusBadRequest, "INVALID_BODY"},
		{"malformed id", http.MethodGet, "/api/cards/abc", nil, http.StatusBadRequest, "INVALID_ID"},
		{"missing client", http.MethodPost, "/api/cards", map[string]any{"estagio": stage.ID}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"unknown stage", http.MethodPost, "/api/cards", map[string]any{"cliente": "Acme", "estagio": 1}, http.StatusNotFound, "NOT_FOUND"},
		{"last board", http.MethodDelete, fmt.Sprintf("/api/boards/%d", boardID), nil, http.StatusConflict, "INVARIANT_VIOLATION"},
		{"bad export format", http.MethodGet, fmt.Sprintf("/api/boards/%d/export?format=xls", boardID), nil, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"history on memory store", http.MethodGet, "/api/history", nil, http.StatusNotImplemented, "HISTORY_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Fatalf("code = %s, want %s", code, tt.code)
			}
		})
	}
}

func TestNonEmptyStageDeleteOverHTTP(t *testing.T) {
	api := newTestAPI(t, Dependencies{})
	var active BoardView
	api.expect(api.do(http.MethodGet, "/api/boards/active", nil), http.StatusOK, &active)
	stage := active.Board.Stages[0]
	api.expect(api.do(http.MethodPost, "/api/cards", map[string]any{"cliente": "Acme", "estagio": stage.ID}), http.StatusCreated, nil)

	rec := api.do(http.MethodDelete, fmt.Sprintf("/api/boards/%d/stages/%d", active.Board.ID, stage.ID), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var after BoardView
	api.expect(api.do(http.MethodGet, "/api/boards/active", nil), http.StatusOK, &after)
	if len(after.Board.Stages) != 4 || len(after.Board.Stages[0].Cards) != 1 {
		t.Fatal("refused delete must leave the board as it was")
	}
}

func TestBoardsOverHTTP(t *testing.T) {
	api := newTestAPI(t, Dependencies{})

	var created kanban.Board
	api.expect(api.do(http.MethodPost, "/api/boards", map[string]any{"nome": "Pós-venda"}), http.StatusCreated, &created)
	if len(created.Stages) != 4 {
		t.Fatalf("new board should get the default stages: %+v", created.Stages)
	}
	api.expect(api.do(http.MethodPost, fmt.Sprintf("/api/boards/%d/select", created.ID), nil), http.StatusOK, nil)

	var list struct {
		Boards []BoardListItem `json:"boards"`
	}
	api.expect(api.do(http.MethodGet, "/api/boards", nil), http.StatusOK, &list)
	if len(list.Boards) != 2 || !list.Boards[1].Selected {
		t.Fatalf("unexpected list: %+v", list.Boards)
	}

	var stage kanban.Stage
	api.expect(api.do(http.MethodPost, fmt.Sprintf("/api/boards/%d/stages", created.ID), map[string]any{"nome": "Renovação"}), http.StatusCreated, &stage)
	if stage.Order != 5 {
		t.Fatalf("new stage order = %d", stage.Order)
	}

	var deleted struct {
		SelectedBoardID int64 `json:"selectedBoardId"`
	}
	api.expect(api.do(http.MethodDelete, fmt.Sprintf("/api/boards/%d", created.ID), nil), http.StatusOK, &deleted)
	if deleted.SelectedBoardID != list.Boards[0].BoardID {
		t.Fatalf("selection should fall back to the remaining board, got %d", deleted.SelectedBoardID)
	}
}

func TestDraftsOverHTTP(t *testing.T) {
	api := newTestAPI(t, Dependencies{})
	var active BoardView
	api.expect(api.do(http.MethodGet, "/api/boards/active", nil), http.StatusOK, &active)
	var card kanban.Card
	api.expect(api.do(http.MethodPost, "/api/cards", map[string]any{"cliente": "Acme", "estagio": active.Board.Stages[0].ID}), http.StatusCreated, &card)

	var view DraftView
	api.expect(api.do(http.MethodPost, fmt.Sprintf("/api/cards/%d/drafts", card.ID), nil), http.StatusCreated, &view)
	api.expect(api.do(http.MethodPatch, "/api/drafts/"+view.Draft.ID, map[string]any{"descricao": "Nova proposta"}), http.StatusOK, &view)
	if view.Preview.Description != "Nova proposta" {
		t.Fatalf("preview = %+v", view.Preview)
	}
	api.expect(api.do(http.MethodPost, "/api/drafts/"+view.Draft.ID+"/save", nil), http.StatusOK, &card)
	if card.Description != "Nova proposta" {
		t.Fatalf("saved card = %+v", card)
	}
	rec := api.do(http.MethodGet, "/api/drafts/"+view.Draft.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("saved draft should be gone, status %d", rec.Code)
	}
}

func TestClearCardReferencesOverHTTP(t *testing.T) {
	api := newTestAPI(t, Dependencies{})

	var tag struct {
		ID int64 `json:"id"`
	}
	api.expect(api.do(http.MethodPost, "/api/action-tags", map[string]any{"nome": "Ligar"}), http.StatusCreated, &tag)

	var active BoardView
	api.expect(api.do(http.MethodGet, "/api/boards/active", nil), http.StatusOK, &active)
	var card kanban.Card
	api.expect(api.do(http.MethodPost, "/api/cards", map[string]any{
		"clienteId": 3, "acaoId": tag.ID, "estagio": active.Board.Stages[0].ID,
	}), http.StatusCreated, &card)
	if card.ClientID == nil || card.ActionID == nil || card.Client != "Acme Ltda" {
		t.Fatalf("unexpected card: %+v", card)
	}

	path := fmt.Sprintf("/api/cards/%d", card.ID)
	var kept kanban.Card
	api.expect(api.do(http.MethodPatch, path, `{"descricao":"retorno"}`), http.StatusOK, &kept)
	if kept.ClientID == nil || kept.ActionID == nil {
		t.Fatalf("omitted fields must be left alone: %+v", kept)
	}

	var cleared kanban.Card
	api.expect(api.do(http.MethodPatch, path, `{"acaoId":null,"clienteId":null,"cliente":"Texto livre"}`), http.StatusOK, &cleared)
	if cleared.ClientID != nil || cleared.ActionID != nil || cleared.Client != "Texto livre" {
		t.Fatalf("references not cleared: %+v", cleared)
	}

	rec := api.do(http.MethodPatch, path, `{"clienteId":3,"limparCliente":true}`)
	api.expect(rec, http.StatusUnprocessableEntity, nil)
	if code := errorCode(t, rec); code != "VALIDATION_ERROR" {
		t.Fatalf("code = %q", code)
	}
}

func TestActionTagsAndSearchOverHTTP(t *testing.T) {
	api := newTestAPI(t, Dependencies{})

	api.expect(api.do(http.MethodPost, "/api/action-tags", map[string]any{"nome": "Ligar"}), http.StatusCreated, nil)
	var tags struct {
		Tags []map[string]any `json:"tags"`
	}
	api.expect(api.do(http.MethodGet, "/api/action-tags", nil), http.StatusOK, &tags)
	if len(tags.Tags) != 1 || tags.Tags[0]["nome"] != "Ligar" {
		t.Fatalf("unexpected tags: %+v", tags)
	}

	var active BoardView
	api.expect(api.do(http.MethodGet, "/api/boards/active", nil), http.StatusOK, &active)
	api.expect(api.do(http.MethodPost, "/api/cards", map[string]any{"cliente": "Acme", "estagio": active.Board.Stages[0].ID}), http.StatusCreated, nil)

	var empty struct {
		Engine string `json:"engine"`
	}
	api.expect(api.do(http.MethodGet, "/api/search?q=", nil), http.StatusOK, &empty)
	if empty.Engine != "none" {
		t.Fatalf("blank query engine = %q", empty.Engine)
	}

	var resp struct {
		Total  int    `json:"total"`
		Engine string `json:"engine"`
	}
	api.expect(api.do(http.MethodGet, "/api/search?q=acme", nil), http.StatusOK, &resp)
	if resp.Total != 1 || resp.Engine != "local" {
		t.Fatalf("unexpected search response: %+v", resp)
	}
}

func TestExportOverHTTP(t *testing.T) {
	api := newTestAPI(t, Dependencies{})
	var active BoardView
	api.expect(api.do(http.MethodGet, "/api/boards/active", nil), http.StatusOK, &active)

	rec := api.do(http.MethodGet, fmt.Sprintf("/api/boards/%d/export?format=yaml", active.Board.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/yaml" {
		t.Fatalf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "Kanban-Comercial.yaml") {
		t.Fatalf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}

	rec = api.do(http.MethodGet, fmt.Sprintf("/api/boards/%d/export?format=html", active.Board.ID), nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Kanban Comercial") {
		t.Fatalf("html export: %d", rec.Code)
	}
}

func TestAttachmentUploadOverHTTP(t *testing.T) {
	blobs := &fakeBlobs{}
	api := newTestAPI(t, Dependencies{Blobs: blobs})
	var active BoardView
	api.expect(api.do(http.MethodGet, "/api/boards/active", nil), http.StatusOK, &active)
	var card kanban.Card
	api.expect(api.do(http.MethodPost, "/api/cards", map[string]any{"cliente": "Acme", "estagio": active.Board.Stages[0].ID}), http.StatusCreated, &card)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "contrato.pdf")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("%PDF-1.4"))
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/cards/%d/attachments", card.ID), &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	var result AttachmentResult
	api.expect(rec, http.StatusCreated, &result)
	if result.Card.Attachments != 1 || result.Object == nil || blobs.body != "%PDF-1.4" {
		t.Fatalf("unexpected upload result: %+v", result)
	}
}

func TestAttachmentUploadWithoutStorage(t *testing.T) {
	api := newTestAPI(t, Dependencies{})
	var active BoardView
	api.expect(api.do(http.MethodGet, "/api/boards/active", nil), http.StatusOK, &active)
	var card kanban.Card
	api.expect(api.do(http.MethodPost, "/api/cards", map[string]any{"cliente": "Acme", "estagio": active.Board.Stages[0].ID}), http.StatusCreated, &card)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, _ := form.CreateFormFile("file", "contrato.pdf")
	_, _ = part.Write([]byte("x"))
	_ = form.Close()
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/cards/%d/attachments", card.ID), &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable || errorCode(t, rec) != "ATTACHMENTS_UNAVAILABLE" {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	// Naming an attachment without a file still works.
	var result AttachmentResult
	api.expect(api.do(http.MethodPost, fmt.Sprintf("/api/cards/%d/attachments", card.ID), map[string]any{"nome": "ata"}), http.StatusCreated, &result)
	if result.Card.Attachments != 1 {
		t.Fatalf("attachments = %d", result.Card.Attachments)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t, Dependencies{Metrics: metrics.New()})
	api.expect(api.do(http.MethodGet, "/api/health", nil), http.StatusOK, nil)

	rec := api.do(http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pipeline_http_requests_total") {
		t.Fatalf("request counter missing from exposition:\n%s", rec.Body.String())
	}
}
