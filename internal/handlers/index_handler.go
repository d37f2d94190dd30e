package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/auth"
	"github.com/bioarchive/studysearch/internal/interfaces"
	"github.com/bioarchive/studysearch/internal/models"
	"github.com/bioarchive/studysearch/internal/queue"
)

// IndexHandler handles submission indexing requests: enqueue, status and
// deletion
type IndexHandler struct {
	queueService interfaces.QueueService
	logger       arbor.ILogger
}

// NewIndexHandler creates the indexing handler
func NewIndexHandler(queueService interfaces.QueueService, logger arbor.ILogger) *IndexHandler {
	return &IndexHandler{queueService: queueService, logger: logger}
}

// SubmissionsHandler routes /submissions/{accNo}/... requests
func (h *IndexHandler) SubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	accNo, action := splitSubmissionPath(r.URL.Path)
	if accNo == "" {
		WriteErrorCode(w, http.StatusNotFound, "NOT_FOUND", "missing accession")
		return
	}

	switch {
	case action == "index" && r.Method == http.MethodPost:
		h.enqueue(w, r, accNo)
	case action == "status" && r.Method == http.MethodGet:
		h.status(w, accNo)
	case action == "" && r.Method == http.MethodDelete:
		h.delete(w, r, accNo)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *IndexHandler) enqueue(w http.ResponseWriter, r *http.Request, accNo string) {
	p := auth.FromContext(r.Context())
	if p == nil || !p.SuperUser {
		WriteErrorCode(w, http.StatusForbidden, "FORBIDDEN", "indexing requires a privileged token")
		return
	}

	var payload models.IndexPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteErrorCode(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload")
		return
	}
	if payload.Submission == nil {
		WriteErrorCode(w, http.StatusBadRequest, "INVALID_REQUEST", "missing submission document")
		return
	}

	task, position, err := h.queueService.Enqueue(accNo, &payload)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			WriteErrorCode(w, http.StatusServiceUnavailable, "QUEUE_FULL", err.Error())
			return
		}
		var unavailable *models.UnavailableError
		if errors.As(err, &unavailable) {
			WriteErrorCode(w, http.StatusServiceUnavailable, unavailable.Code, unavailable.Message)
			return
		}
		h.logger.Error().Err(err).Str("accession", accNo).Msg("Enqueue failed")
		WriteErrorCode(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	WriteJSON(w, http.StatusAccepted, models.EnqueueResponse{
		AccNo:         accNo,
		QueuePosition: position,
		TaskID:        task.ID,
		StatusURL:     fmt.Sprintf("/submissions/%s/status", accNo),
	})
}

// status always answers 200; an unknown accession carries state NOT_FOUND
func (h *IndexHandler) status(w http.ResponseWriter, accNo string) {
	WriteJSON(w, http.StatusOK, h.queueService.Status(accNo))
}

func (h *IndexHandler) delete(w http.ResponseWriter, r *http.Request, accNo string) {
	p := auth.FromContext(r.Context())
	if p == nil || !p.SuperUser {
		WriteErrorCode(w, http.StatusForbidden, "FORBIDDEN", "deletion requires a privileged token")
		return
	}

	task, position, err := h.queueService.EnqueueDelete(accNo)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			WriteErrorCode(w, http.StatusServiceUnavailable, "QUEUE_FULL", err.Error())
			return
		}
		var unavailable *models.UnavailableError
		if errors.As(err, &unavailable) {
			WriteErrorCode(w, http.StatusServiceUnavailable, unavailable.Code, unavailable.Message)
			return
		}
		h.logger.Error().Err(err).Str("accession", accNo).Msg("Enqueue delete failed")
		WriteErrorCode(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	WriteJSON(w, http.StatusAccepted, models.EnqueueResponse{
		AccNo:         accNo,
		QueuePosition: position,
		TaskID:        task.ID,
		StatusURL:     fmt.Sprintf("/submissions/%s/status", accNo),
	})
}

// splitSubmissionPath extracts the accession and trailing action from
// /submissions/{accNo}[/{action}]
func splitSubmissionPath(path string) (accNo, action string) {
	rest := strings.TrimPrefix(path, "/submissions/")
	if rest == path {
		return "", ""
	}
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	accNo = parts[0]
	if len(parts) == 2 {
		action = parts[1]
	}
	return accNo, action
}
