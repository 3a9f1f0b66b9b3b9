// Package service exposes the bill-splitting workflow over HTTP.
//
// The handlers are thin: they translate JSON requests into session
// transitions and domain operations, and map domain errors back to problem
// details. The session is the state machine; the service never advances it on
// its own.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"patungan/internal/httpx"
	"patungan/internal/models"
	"patungan/internal/observability"
	"patungan/internal/ocr"
	"patungan/internal/receipt"
	"patungan/internal/registry"
	"patungan/internal/session"
	"patungan/internal/shared"
)

// Recognizer abstracts the receipt-recognition call so tests can stub the
// external service.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (*receipt.Document, error)
}

// BillService wires sessions, recognition and metrics into HTTP handlers.
type BillService struct {
	store      *session.Store
	recognizer Recognizer
	metrics    *observability.Metrics
	validate   *validator.Validate

	// maxUploadBytes bounds accepted receipt images.
	maxUploadBytes int64
}

// NewBillService creates the workflow service.
func NewBillService(store *session.Store, recognizer Recognizer, metrics *observability.Metrics, maxUploadBytes int64) *BillService {
	return &BillService{
		store:          store,
		recognizer:     recognizer,
		metrics:        metrics,
		validate:       validator.New(),
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns the session API router. uploadLimiter, when non-nil, wraps
// the recognition upload route; everything else is cheap enough to leave
// unlimited.
func (s *BillService) Routes(uploadLimiter func(http.Handler) http.Handler) chi.Router {
	if uploadLimiter == nil {
		uploadLimiter = func(next http.Handler) http.Handler { return next }
	}
	r := chi.NewRouter()
	r.Post("/", s.CreateSession)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", s.GetSession)
		r.Delete("/", s.DeleteSession)
		r.With(uploadLimiter).Post("/receipt", s.UploadReceipt)
		r.Put("/receipt", s.EditReceipt)
		r.Post("/participants/collect", s.CollectParticipants)
		r.Post("/participants", s.AddParticipant)
		r.Patch("/participants/{participantID}", s.RenameParticipant)
		r.Delete("/participants/{participantID}", s.RemoveParticipant)
		r.Post("/participants/finalize", s.BeginAssigning)
		r.Put("/active-person", s.SetActivePerson)
		r.Post("/assignments", s.AssignItem)
		r.Get("/breakdown", s.Breakdown)
		r.Post("/complete", s.Complete)
		r.Post("/reset", s.Reset)
	})
	return r
}

type sessionResponse struct {
	SessionID    string               `json:"session_id"`
	Stage        session.Stage        `json:"stage"`
	Receipt      *models.Receipt      `json:"receipt,omitempty"`
	ImageURI     string               `json:"image_uri,omitempty"`
	Participants []models.Participant `json:"participants"`
	ActivePerson int                  `json:"active_person,omitempty"`
}

func snapshot(sess *session.Session) sessionResponse {
	return sessionResponse{
		SessionID:    sess.ID(),
		Stage:        sess.Stage(),
		Receipt:      sess.Receipt(),
		ImageURI:     sess.ImageURI(),
		Participants: sess.Participants(),
		ActivePerson: sess.ActivePerson(),
	}
}

// CreateSession starts a new bill in the Capturing stage.
func (s *BillService) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.store.Create()
	slog.Info("Session created", "session_id", sess.ID())
	httpx.JSON(w, http.StatusCreated, snapshot(sess))
}

// GetSession returns the current workflow snapshot.
func (s *BillService) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot(sess))
}

// DeleteSession discards a session entirely.
func (s *BillService) DeleteSession(w http.ResponseWriter, r *http.Request) {
	s.store.Delete(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

type uploadRequest struct {
	// Image is a base64 data URI produced by camera capture.
	Image string `json:"image" validate:"required"`
}

// UploadReceipt accepts a receipt image, either as a multipart "image" file
// (gallery upload) or a JSON data URI (camera capture), runs it through the
// recognition service and advances the session to Reviewing. On failure the
// session stays in Capturing and the error is surfaced; the user may resubmit.
func (s *BillService) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	image, imageURI, err := s.readImage(r)
	if err != nil {
		slog.Warn("UploadReceipt rejected", "session_id", sess.ID(), "error", err)
		httpx.RespondError(w, err)
		return
	}

	doc, err := s.recognizer.Recognize(r.Context(), ocr.EnhanceForRecognition(image))
	if err != nil {
		s.metrics.ObserveRecognition(recognitionOutcome(err))
		slog.Error("Recognition failed", "session_id", sess.ID(), "error", err)
		httpx.RespondError(w, err)
		return
	}
	s.metrics.ObserveRecognition("ok")

	normalized := receipt.Normalize(doc)
	if err := sess.SetReceipt(normalized, imageURI); err != nil {
		httpx.RespondError(w, err)
		return
	}

	slog.Info("Receipt recognized",
		"session_id", sess.ID(),
		"shop", normalized.ShopName,
		"items", len(normalized.Items),
		"total", normalized.Totals.Total,
	)
	httpx.JSON(w, http.StatusOK, snapshot(sess))
}

// readImage extracts the image bytes from either upload form. It returns the
// data URI when the capture path was used, for later display.
func (s *BillService) readImage(r *http.Request) (data []byte, imageURI string, err error) {
	contentType := r.Header.Get("Content-Type")
	r.Body = http.MaxBytesReader(nil, r.Body, s.maxUploadBytes)

	if strings.HasPrefix(contentType, "application/json") {
		var req uploadRequest
		if err := s.decode(r, &req); err != nil {
			return nil, "", err
		}
		data, err := ocr.DecodeDataURI(req.Image)
		if err != nil {
			return nil, "", err
		}
		return data, req.Image, nil
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, "", fmt.Errorf("%w: provide a receipt image", shared.ErrValidation)
	}
	defer file.Close()
	data, err = io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("%w: could not read the uploaded image", shared.ErrValidation)
	}
	return data, "", nil
}

type editReceiptRequest struct {
	ShopName    string               `json:"shop_name"`
	ShopAddress string               `json:"shop_address"`
	Date        string               `json:"date"`
	Items       []models.ReceiptItem `json:"items" validate:"required,min=1,dive"`
	Totals      models.ReceiptTotals `json:"totals"`
}

// EditReceipt replaces the receipt wholesale with an edited copy. There is no
// field-level merge: the client sends back the full document.
func (s *BillService) EditReceipt(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req editReceiptRequest
	if err := s.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	edited := &models.Receipt{
		ShopName:    req.ShopName,
		ShopAddress: req.ShopAddress,
		Date:        req.Date,
		Items:       req.Items,
		Totals:      req.Totals,
	}
	if err := sess.EditReceipt(edited); err != nil {
		slog.Warn("EditReceipt blocked", "session_id", sess.ID(), "error", err)
		httpx.RespondError(w, err)
		return
	}

	slog.Info("Receipt edited", "session_id", sess.ID(), "items", len(req.Items))
	httpx.JSON(w, http.StatusOK, snapshot(sess))
}

// CollectParticipants advances the session into the participant-collection
// stage, seeding two blank entries on first entry.
func (s *BillService) CollectParticipants(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := sess.CollectParticipants(); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot(sess))
}

// AddParticipant appends a blank participant row.
func (s *BillService) AddParticipant(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var added models.Participant
	err = sess.WithRegistry(func(reg *registry.Registry) error {
		added = reg.Add()
		return nil
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, added)
}

type renameRequest struct {
	Name string `json:"name"`
}

// RenameParticipant sets a participant's name. Blank and duplicate names are
// tolerated here; finalization is where they get rejected.
func (s *BillService) RenameParticipant(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := s.participantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req renameRequest
	if err := s.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	err = sess.WithRegistry(func(reg *registry.Registry) error {
		return reg.Rename(id, req.Name)
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot(sess))
}

// RemoveParticipant deletes a participant row, refusing to drop below the
// two-person floor.
func (s *BillService) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := s.participantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	err = sess.WithRegistry(func(reg *registry.Registry) error {
		return reg.Remove(id)
	})
	if err != nil {
		slog.Warn("RemoveParticipant refused", "session_id", sess.ID(), "participant_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot(sess))
}

// BeginAssigning finalizes the participant list and advances to Assigning.
func (s *BillService) BeginAssigning(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := sess.BeginAssigning(); err != nil {
		slog.Warn("BeginAssigning refused", "session_id", sess.ID(), "error", err)
		httpx.RespondError(w, err)
		return
	}
	slog.Info("Assigning started", "session_id", sess.ID(), "participants", len(sess.Participants()))
	httpx.JSON(w, http.StatusOK, snapshot(sess))
}

type activePersonRequest struct {
	ParticipantID int `json:"participant_id" validate:"required"`
}

// SetActivePerson selects who receives subsequent assignment actions.
func (s *BillService) SetActivePerson(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req activePersonRequest
	if err := s.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := sess.SetActivePerson(req.ParticipantID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot(sess))
}

type assignRequest struct {
	ItemID string `json:"item_id" validate:"required"`
	// Delta is positive to claim units, negative to release them.
	Delta int `json:"delta" validate:"required"`
}

// AssignItem adjusts the active person's claim on an item and returns the
// recomputed breakdown.
func (s *BillService) AssignItem(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req assignRequest
	if err := s.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := sess.Assign(req.ItemID, req.Delta); err != nil {
		slog.Warn("AssignItem refused",
			"session_id", sess.ID(),
			"item_id", req.ItemID,
			"delta", req.Delta,
			"error", err,
		)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.Breakdown())
}

// Breakdown returns the per-person allocation for the current state.
func (s *BillService) Breakdown(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.Breakdown())
}

// Complete closes the split. Blocked with a validation message while any
// purchased value remains unassigned.
func (s *BillService) Complete(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := sess.Complete(); err != nil {
		slog.Warn("Complete refused", "session_id", sess.ID(), "error", err)
		httpx.RespondError(w, err)
		return
	}
	s.metrics.ObserveSplitCompleted()
	slog.Info("Split completed", "session_id", sess.ID())
	httpx.JSON(w, http.StatusOK, sess.Breakdown())
}

// Reset returns the session to Capturing, clearing all bill state.
func (s *BillService) Reset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess.Reset()
	slog.Info("Session reset", "session_id", sess.ID())
	httpx.JSON(w, http.StatusOK, snapshot(sess))
}

func (s *BillService) session(r *http.Request) (*session.Session, error) {
	return s.store.Get(chi.URLParam(r, "sessionID"))
}

func (s *BillService) participantID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "participantID"))
	if err != nil {
		return 0, fmt.Errorf("%w: participant id must be an integer", shared.ErrValidation)
	}
	return id, nil
}

// decode unmarshals and validates a JSON request body.
func (s *BillService) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", shared.ErrValidation)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", shared.ErrValidation, verrs.Error())
		}
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}

// recognitionOutcome classifies a recognition error for metrics.
func recognitionOutcome(err error) string {
	var statusErr *ocr.StatusError
	if errors.As(err, &statusErr) {
		return "rejected"
	}
	return "unreachable"
}
