package handler

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"slotwise/internal/availability"
	httputil "slotwise/pkg/http"
	"slotwise/pkg/logger"
)

type AvailabilityHandler struct {
	service availability.Service
	log     *logger.Logger
}

func NewAvailabilityHandler(service availability.Service, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log,
	}
}

func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	if query.Get("business_id") == "" || query.Get("date") == "" || query.Get("time") == "" {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "'business_id', 'date' and 'time' query parameters are required",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Check", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	duration, err := httputil.ExtractIntParam(r, "duration", 0)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Check", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	bufferBefore, bufferAfter, err := extractBuffers(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Check", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var excludeID int64
	if s := query.Get("exclude_booking_id"); s != "" {
		excludeID, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
				Error: "invalid exclude_booking_id parameter",
			}); writeErr != nil {
				h.log.Error("failed to write JSON response", "handler", "Check", "operation", "WriteJSON", "error", writeErr)
			}
			return
		}
	}

	result, err := h.service.Check(r.Context(), availability.CheckParams{
		BusinessID:       query.Get("business_id"),
		ProviderID:       query.Get("provider_id"),
		Date:             query.Get("date"),
		Time:             query.Get("time"),
		Duration:         duration,
		BufferBefore:     bufferBefore,
		BufferAfter:      bufferAfter,
		ExcludeBookingID: excludeID,
	})
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Check", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Check", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	if query.Get("business_id") == "" || query.Get("date") == "" {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "'business_id' and 'date' query parameters are required",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Slots", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	duration, err := httputil.ExtractIntParam(r, "duration", 0)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Slots", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	slotsPerHour, err := httputil.ExtractIntParam(r, "slots_per_hour", 0)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Slots", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	bufferBefore, bufferAfter, err := extractBuffers(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Slots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	slots, err := h.service.Slots(r.Context(), availability.SlotsParams{
		BusinessID:   query.Get("business_id"),
		ProviderID:   query.Get("provider_id"),
		Date:         query.Get("date"),
		Duration:     duration,
		BufferBefore: bufferBefore,
		BufferAfter:  bufferAfter,
		SlotsPerHour: slotsPerHour,
	})
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Slots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "Slots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/availability/check", h.Check)
	router.GET("/api/v1/availability/slots", h.Slots)
}

// extractBuffers distinguishes an absent buffer parameter (nil, use the
// configured default) from an explicit zero.
func extractBuffers(r *http.Request) (*int, *int, error) {
	var before, after *int
	if s := r.URL.Query().Get("buffer_before"); s != "" {
		v, err := httputil.ExtractIntParam(r, "buffer_before", 0)
		if err != nil {
			return nil, nil, err
		}
		before = &v
	}
	if s := r.URL.Query().Get("buffer_after"); s != "" {
		v, err := httputil.ExtractIntParam(r, "buffer_after", 0)
		if err != nil {
			return nil, nil, err
		}
		after = &v
	}
	return before, after, nil
}
