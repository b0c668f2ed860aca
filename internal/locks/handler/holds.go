package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"slotwise/internal/locks"
	apperrors "slotwise/pkg/errors"
	httputil "slotwise/pkg/http"
	"slotwise/pkg/logger"
	"slotwise/pkg/model"
)

// HoldHandler exposes slot locks directly as short-lived holds, letting
// frontends pin a slot while the client fills in the booking form.
type HoldHandler struct {
	manager locks.Manager
	log     *logger.Logger
}

func NewHoldHandler(manager locks.Manager, log *logger.Logger) *HoldHandler {
	return &HoldHandler{
		manager: manager,
		log:     log,
	}
}

type createHoldRequest struct {
	BusinessID     string   `json:"business_id"`
	ProviderID     string   `json:"provider_id"`
	Date           string   `json:"date"`
	Time           string   `json:"time"`
	Duration       int      `json:"duration"`
	BufferBefore   int      `json:"buffer_before"`
	BufferAfter    int      `json:"buffer_after"`
	RoomIDs        []string `json:"room_ids,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

type extendHoldRequest struct {
	Additional string `json:"additional,omitempty"`
}

func (h *HoldHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	start, err := model.MinutesFromClock(req.Time)
	if err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("time must be in HH:MM format")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if req.Duration <= 0 {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("duration must be positive")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	result, err := h.manager.Acquire(r.Context(), locks.AcquireParams{
		BusinessID: req.BusinessID,
		ProviderID: req.ProviderID,
		Date:       req.Date,
		Window: model.Window{
			Start: start - req.BufferBefore,
			End:   start + req.Duration + req.BufferAfter,
		},
		RoomIDs:        req.RoomIDs,
		CreatedBy:      r.Header.Get("X-Client-ID"),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if !result.Granted {
		if writeErr := httputil.WriteError(w, apperrors.SlotLocked(result.HeldBy, result.ExpiresAt)); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *HoldHandler) Extend(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req extendHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Extend", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	var additional time.Duration
	if req.Additional != "" {
		parsed, err := time.ParseDuration(req.Additional)
		if err != nil || parsed <= 0 {
			if writeErr := httputil.WriteError(w, apperrors.InvalidInput("additional must be a positive duration, e.g. \"30s\"")); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "Extend", "operation", "WriteError", "error", writeErr)
			}
			return
		}
		additional = parsed
	}

	extended, err := h.manager.Extend(r.Context(), ps.ByName("id"), additional)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Extend", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if !extended {
		if writeErr := httputil.WriteError(w, apperrors.NotFoundWithID("Hold", ps.ByName("id"))); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Extend", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *HoldHandler) Release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.manager.Release(r.Context(), ps.ByName("id")); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Release", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

// ReleaseByKey lets a client that only kept its idempotency key (e.g. after
// a page reload) drop its hold.
func (h *HoldHandler) ReleaseByKey(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.manager.ReleaseByKey(r.Context(), ps.ByName("key")); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ReleaseByKey", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *HoldHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/holds", h.Create)
	router.POST("/api/v1/holds/id/:id/extend", h.Extend)
	router.DELETE("/api/v1/holds/id/:id", h.Release)
	router.DELETE("/api/v1/holds/key/:key", h.ReleaseByKey)
}
