package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vamojunto/nfce-api/internal/api/middleware"
	"github.com/vamojunto/nfce-api/internal/models"
	"github.com/vamojunto/nfce-api/internal/repository"
	"github.com/vamojunto/nfce-api/internal/services"
)

// NotesHandler handles note ingestion and querying
type NotesHandler struct {
	noteService services.NoteServiceInterface
	logger      *logrus.Logger
}

// NewNotesHandler creates a new notes handler
func NewNotesHandler(noteService services.NoteServiceInterface, logger *logrus.Logger) *NotesHandler {
	return &NotesHandler{
		noteService: noteService,
		logger:      logger,
	}
}

// scanStatus maps a pipeline error kind to the HTTP status for the scan
// endpoints. Duplicates are a conflict, not a failure: the note is already
// there.
func scanStatus(kind services.ErrorKind) (int, string) {
	switch kind {
	case services.KindInvalidAccessKey:
		return http.StatusBadRequest, "INVALID_ACCESS_KEY"
	case services.KindNoteNotFound:
		return http.StatusBadRequest, "NOTE_NOT_FOUND"
	case services.KindUnusableDocument:
		return http.StatusUnprocessableEntity, "UNUSABLE_DOCUMENT"
	case services.KindFetchFailed:
		return http.StatusServiceUnavailable, "FETCH_FAILED"
	case services.KindDuplicateNote:
		return http.StatusConflict, "DUPLICATE_NOTE"
	default:
		return http.StatusInternalServerError, "PERSISTENCE_FAILED"
	}
}

func (h *NotesHandler) scanError(c *gin.Context, err error) {
	requestID := c.GetString("request_id")
	status, code := scanStatus(services.KindOf(err))

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"code":       code,
		"error":      err.Error(),
	}).Warn("Note scan failed")

	message := err.Error()
	var noteErr *services.NoteError
	if errors.As(err, &noteErr) {
		message = noteErr.Message
	}

	c.JSON(status, models.ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}

// ScanNote handles note ingestion from a scanned QR code or typed key
// @Summary Scan a fiscal note
// @Description Resolve the access key, fetch the consultation page and persist the note for the user
// @Tags Notes
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Param request body models.ScanRequest true "Access key or QR-code URL"
// @Success 201 {object} models.Note
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /notes/scan [post]
func (h *NotesHandler) ScanNote(c *gin.Context) {
	start := time.Now()
	requestID := c.GetString("request_id")
	userID := middleware.GetUserID(c)

	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Invalid request format",
			Message:   err.Error(),
			Code:      "INVALID_REQUEST",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	note, err := h.noteService.ProcessAndSave(c.Request.Context(), userID, req.CodeOrURL)
	if err != nil {
		h.scanError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"user_id":    userID,
		"note_id":    note.ID,
		"duration":   time.Since(start),
	}).Info("Note scanned and saved")

	c.JSON(http.StatusCreated, note)
}

// PreviewNote extracts a note without persisting it
// @Summary Preview a fiscal note
// @Description Resolve and extract the note but do not save it
// @Tags Notes
// @Accept json
// @Produce json
// @Param request body models.ScanRequest true "Access key or QR-code URL"
// @Success 200 {object} models.ExtractedNote
// @Failure 400 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /notes/preview [post]
func (h *NotesHandler) PreviewNote(c *gin.Context) {
	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Invalid request format",
			Message:   err.Error(),
			Code:      "INVALID_REQUEST",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	note, err := h.noteService.Scrape(c.Request.Context(), req.CodeOrURL)
	if err != nil {
		h.scanError(c, err)
		return
	}

	c.JSON(http.StatusOK, note)
}

// ListNotes returns the user's notes
// @Summary List notes
// @Description List the user's notes, newest first, with optional market name filter
// @Tags Notes
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Param limit query int false "Page size (max 100)" default(20)
// @Param offset query int false "Offset" default(0)
// @Param market query string false "Filter by market name substring"
// @Success 200 {object} models.NotesListResponse
// @Router /notes [get]
func (h *NotesHandler) ListNotes(c *gin.Context) {
	userID := middleware.GetUserID(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	market := c.Query("market")

	notes, err := h.noteService.ListNotes(c.Request.Context(), userID, limit, offset, market)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"user_id":    userID,
			"error":      err.Error(),
		}).Error("Failed to list notes")

		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Internal server error",
			Message:   "Failed to list notes",
			Code:      "LIST_FAILED",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	c.JSON(http.StatusOK, models.NotesListResponse{
		Notes:  notes,
		Count:  len(notes),
		Limit:  limit,
		Offset: offset,
	})
}

// GetNote returns one note with its items
// @Summary Get a note
// @Tags Notes
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Param id path int true "Note ID"
// @Success 200 {object} models.Note
// @Failure 404 {object} models.ErrorResponse
// @Router /notes/{id} [get]
func (h *NotesHandler) GetNote(c *gin.Context) {
	userID := middleware.GetUserID(c)

	noteID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.notFound(c)
		return
	}

	note, err := h.noteService.GetNote(c.Request.Context(), noteID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.notFound(c)
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Internal server error",
			Message:   "Failed to load note",
			Code:      "GET_FAILED",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	c.JSON(http.StatusOK, note)
}

// DeleteNote removes a note and its items
// @Summary Delete a note
// @Tags Notes
// @Param X-User-ID header int true "Authenticated user ID"
// @Param id path int true "Note ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /notes/{id} [delete]
func (h *NotesHandler) DeleteNote(c *gin.Context) {
	userID := middleware.GetUserID(c)

	noteID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.notFound(c)
		return
	}

	if err := h.noteService.DeleteNote(c.Request.Context(), noteID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.notFound(c)
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Internal server error",
			Message:   "Failed to delete note",
			Code:      "DELETE_FAILED",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"user_id":    userID,
		"note_id":    noteID,
	}).Info("Note deleted")

	c.Status(http.StatusNoContent)
}

func (h *NotesHandler) notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:     "Not Found",
		Message:   "The requested note was not found",
		Code:      "NOTE_NOT_FOUND",
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}
