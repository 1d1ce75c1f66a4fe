package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"pipeline/internal/catalog"
	"pipeline/internal/export"
	"pipeline/internal/kanban"
	"pipeline/internal/search"
	"pipeline/internal/store"
)

const maxUploadBytes = 32 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withMiddleware)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Method(http.MethodGet, "/metrics", s.service.Metrics().Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Head("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)

		r.Route("/boards", func(r chi.Router) {
			r.Get("/", s.handleListBoards)
			r.Post("/", s.handleCreateBoard)
			r.Get("/active", s.handleActiveBoard)
			r.Route("/{boardID}", func(r chi.Router) {
				r.Get("/", s.handleGetBoard)
				r.Put("/", s.handleRenameBoard)
				r.Delete("/", s.handleDeleteBoard)
				r.Post("/select", s.handleSelectBoard)
				r.Get("/export", s.handleExportBoard)
				r.Post("/stages", s.handleAddStage)
				r.Post("/stages/reorder", s.handleReorderStage)
				r.Put("/stages/{stageID}", s.handleUpdateStage)
				r.Delete("/stages/{stageID}", s.handleDeleteStage)
			})
		})

		r.Route("/cards", func(r chi.Router) {
			r.Post("/", s.handleAddCard)
			r.Route("/{cardID}", func(r chi.Router) {
				r.Get("/", s.handleGetCard)
				r.Patch("/", s.handleUpdateCard)
				r.Delete("/", s.handleDeleteCard)
				r.Post("/move", s.handleMoveCard)
				r.Put("/status", s.handleSetStatus)
				r.Put("/value", s.handleSetValue)
				r.Post("/line-items", s.handleAddLineItem)
				r.Delete("/line-items/{itemID}", s.handleRemoveLineItem)
				r.Post("/comments", s.handleAddComment)
				r.Post("/comments/{commentID}/replies", s.handleAddReply)
				r.Get("/thread", s.handleThread)
				r.Post("/labels", s.handleAddLabel)
				r.Delete("/labels/{label}", s.handleRemoveLabel)
				r.Post("/members", s.handleAddMember)
				r.Delete("/members/{member}", s.handleRemoveMember)
				r.Put("/due-date", s.handleSetDueDate)
				r.Post("/attachments", s.handleAddAttachment)
				r.Post("/drafts", s.handleOpenDraft)
			})
		})

		r.Route("/drafts/{draftID}", func(r chi.Router) {
			r.Get("/", s.handleGetDraft)
			r.Patch("/", s.handleUpdateDraft)
			r.Post("/save", s.handleSaveDraft)
			r.Delete("/", s.handleDiscardDraft)
		})

		r.Route("/action-tags", func(r chi.Router) {
			r.Get("/", s.handleListActionTags)
			r.Post("/", s.handleCreateActionTag)
			r.Put("/{tagID}", s.handleUpdateActionTag)
			r.Delete("/{tagID}", s.handleDeleteActionTag)
		})

		r.Get("/search", s.handleSearch)
		r.Get("/history", s.handleHistory)
	})
	return r
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		s.service.Metrics().IncrementRequest(r.Method, strconv.Itoa(writer.status))
		log.WithFields(log.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request by the middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func mapError(err error) (status int, code, message string, details any) {
	domainErr := toDomainError(err)
	return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("request_id", RequestID(r.Context())).Error("request failed")
	}
	writeError(w, status, code, message, details)
}

func invalidBody(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
}

// pathID parses a numeric route parameter, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("invalid %s %q", name, raw), nil)
		return 0, false
	}
	return id, true
}

func pathText(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func queryInt(r *http.Request, key string, fallback int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return value
}

// Health

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"store": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["store"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	// Attachment storage is optional; a failure degrades uploads only.
	if enabled, err := s.service.PingBlobs(ctx); enabled {
		checks["attachments"] = map[string]any{"status": "ok"}
		if err != nil {
			checks["attachments"] = map[string]any{"status": "error", "error": err.Error()}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// Boards

type boardBody struct {
	Name        string `json:"nome"`
	Description string `json:"descricao"`
}

func (s *HTTPServer) handleListBoards(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"boards": s.service.ListBoards()})
}

func (s *HTTPServer) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var body boardBody
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	board, err := s.service.CreateBoard(r.Context(), body.Name, body.Description)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, board)
}

func (s *HTTPServer) handleActiveBoard(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.ActiveBoard()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "boardID")
	if !ok {
		return
	}
	view, err := s.service.GetBoard(boardID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleRenameBoard(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "boardID")
	if !ok {
		return
	}
	var body boardBody
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	board, err := s.service.RenameBoard(r.Context(), boardID, body.Name, body.Description)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *HTTPServer) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "boardID")
	if !ok {
		return
	}
	selected, err := s.service.DeleteBoard(r.Context(), boardID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "selectedBoardId": selected})
}

func (s *HTTPServer) handleSelectBoard(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "boardID")
	if !ok {
		return
	}
	if err := s.service.SelectBoard(boardID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "selectedBoardId": boardID})
}

func (s *HTTPServer) handleExportBoard(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "boardID")
	if !ok {
		return
	}
	format, err := export.ParseFormat(strings.ToLower(r.URL.Query().Get("format")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	includeThread := true
	if raw := r.URL.Query().Get("thread"); raw != "" {
		includeThread, _ = strconv.ParseBool(raw)
	}
	result, err := s.service.ExportBoard(r.Context(), boardID, format, includeThread)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// Stages

type stageBody struct {
	Name  string `json:"nome"`
	Color string `json:"cor"`
}

func (s *HTTPServer) handleAddStage(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "boardID")
	if !ok {
		return
	}
	var body stageBody
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	stage, err := s.service.AddStage(r.Context(), boardID, body.Name, body.Color)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stage)
}

func (s *HTTPServer) handleUpdateStage(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "boardID")
	if !ok {
		return
	}
	stageID, ok := pathID(w, r, "stageID")
	if !ok {
		return
	}
	var body stageBody
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	stage, err := s.service.UpdateStage(r.Context(), boardID, stageID, body.Name, body.Color)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stage)
}

func (s *HTTPServer) handleReorderStage(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "boardID")
	if !ok {
		return
	}
	var body struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	board, err := s.service.ReorderStage(r.Context(), boardID, body.From, body.To)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *HTTPServer) handleDeleteStage(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "boardID")
	if !ok {
		return
	}
	stageID, ok := pathID(w, r, "stageID")
	if !ok {
		return
	}
	if err := s.service.DeleteStage(r.Context(), boardID, stageID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Cards

func (s *HTTPServer) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var input kanban.CardInput
	if err := decodeBody(r, &input); err != nil {
		invalidBody(w, err)
		return
	}
	card, err := s.service.AddCard(r.Context(), input)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *HTTPServer) handleGetCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	card, err := s.service.GetCard(cardID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *HTTPServer) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var patch kanban.CardPatch
	if err := decodeBody(r, &patch); err != nil {
		invalidBody(w, err)
		return
	}
	s.respondCard(w, r)(s.service.UpdateCard(r.Context(), cardID, patch))
}

// respondCard writes the card returned by a card mutation, or the error.
func (s *HTTPServer) respondCard(w http.ResponseWriter, r *http.Request) func(kanban.Card, error) {
	return func(card kanban.Card, err error) {
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *HTTPServer) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	if err := s.service.DeleteCard(r.Context(), cardID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleMoveCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var body struct {
		StageID int64 `json:"stageId"`
	}
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	s.respondCard(w, r)(s.service.MoveCard(r.Context(), cardID, body.StageID))
}

func (s *HTTPServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	s.respondCard(w, r)(s.service.SetStatus(r.Context(), cardID, body.Status))
}

func (s *HTTPServer) handleSetValue(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var body struct {
		Value *float64 `json:"valor"`
	}
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	if body.Value == nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "valor is required", nil)
		return
	}
	s.respondCard(w, r)(s.service.SetValue(r.Context(), cardID, *body.Value))
}

func (s *HTTPServer) handleAddLineItem(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var body kanban.LineItemInput
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	card, err := s.service.AddLineItem(r.Context(), cardID, body.ProductID, body.Quantity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *HTTPServer) handleRemoveLineItem(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	s.respondCard(w, r)(s.service.RemoveLineItem(r.Context(), cardID, itemID))
}

type commentBody struct {
	Author string `json:"autor"`
	Text   string `json:"texto"`
}

func (s *HTTPServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var body commentBody
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	comment, err := s.service.AddComment(r.Context(), cardID, body.Author, body.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *HTTPServer) handleAddReply(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}
	var body commentBody
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	reply, err := s.service.AddReply(r.Context(), cardID, commentID, body.Author, body.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

func (s *HTTPServer) handleThread(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	thread, err := s.service.CardThread(cardID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *HTTPServer) handleAddLabel(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var body struct {
		Label string `json:"label"`
	}
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	s.respondCard(w, r)(s.service.AddLabel(r.Context(), cardID, body.Label))
}

func (s *HTTPServer) handleRemoveLabel(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	s.respondCard(w, r)(s.service.RemoveLabel(r.Context(), cardID, pathText(r, "label")))
}

func (s *HTTPServer) handleAddMember(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var body struct {
		Member string `json:"membro"`
	}
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	s.respondCard(w, r)(s.service.AddMember(r.Context(), cardID, body.Member))
}

func (s *HTTPServer) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	s.respondCard(w, r)(s.service.RemoveMember(r.Context(), cardID, pathText(r, "member")))
}

func (s *HTTPServer) handleSetDueDate(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	var body struct {
		DueDate *time.Time `json:"dataVencimento"`
	}
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	s.respondCard(w, r)(s.service.SetDueDate(r.Context(), cardID, body.DueDate))
}

// handleAddAttachment accepts a multipart upload in the "file" field, or a
// JSON body that only names the attachment.
func (s *HTTPServer) handleAddAttachment(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			invalidBody(w, fmt.Errorf("invalid multipart body"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			invalidBody(w, fmt.Errorf("file field is required"))
			return
		}
		defer file.Close()

		result, err := s.service.AddAttachment(r.Context(), cardID, r.FormValue("nome"), &Upload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
		return
	}

	var body struct {
		Name string `json:"nome"`
	}
	if err := decodeBody(r, &body); err != nil {
		invalidBody(w, err)
		return
	}
	result, err := s.service.AddAttachment(r.Context(), cardID, body.Name, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Drafts

func (s *HTTPServer) handleOpenDraft(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	view, err := s.service.OpenDraft(r.Context(), cardID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetDraft(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var patch kanban.CardPatch
	if err := decodeBody(r, &patch); err != nil {
		invalidBody(w, err)
		return
	}
	view, err := s.service.UpdateDraft(r.Context(), chi.URLParam(r, "draftID"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	s.respondCard(w, r)(s.service.SaveDraft(r.Context(), chi.URLParam(r, "draftID")))
}

func (s *HTTPServer) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DiscardDraft(r.Context(), chi.URLParam(r, "draftID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Action tags

func (s *HTTPServer) handleListActionTags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tags": s.service.ActionTags()})
}

func (s *HTTPServer) handleCreateActionTag(w http.ResponseWriter, r *http.Request) {
	var input catalog.ActionTagInput
	if err := decodeBody(r, &input); err != nil {
		invalidBody(w, err)
		return
	}
	tag, err := s.service.CreateActionTag(r.Context(), input)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (s *HTTPServer) handleUpdateActionTag(w http.ResponseWriter, r *http.Request) {
	tagID, ok := pathID(w, r, "tagID")
	if !ok {
		return
	}
	var input catalog.ActionTagInput
	if err := decodeBody(r, &input); err != nil {
		invalidBody(w, err)
		return
	}
	tag, err := s.service.UpdateActionTag(r.Context(), tagID, input)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (s *HTTPServer) handleDeleteActionTag(w http.ResponseWriter, r *http.Request) {
	tagID, ok := pathID(w, r, "tagID")
	if !ok {
		return
	}
	if err := s.service.DeleteActionTag(r.Context(), tagID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Search and history

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, search.Response{Results: []search.Result{}, Query: q, Engine: "none"})
		return
	}
	boardID, _ := strconv.ParseInt(r.URL.Query().Get("boardId"), 10, 64)
	writeJSON(w, http.StatusOK, s.service.Search(search.Query{
		Text:    q,
		BoardID: boardID,
		Limit:   queryInt(r, "limit", 20),
		Offset:  queryInt(r, "offset", 0),
	}))
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	collection := r.URL.Query().Get("collection")
	if collection == "" {
		collection = store.KeyBoards
	}
	entries, err := s.service.History(collection, queryInt(r, "limit", 20))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"collection": collection, "commits": entries})
}
