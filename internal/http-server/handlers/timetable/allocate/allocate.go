package allocate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"timetable-service/api"
	"timetable-service/internal/service"
	"timetable-service/pkg/request"
	"timetable-service/pkg/response"
	"timetable-service/pkg/sl"
)

type Allocator interface {
	Allocate(ctx context.Context, req *api.AllocateRequest) (*api.TimetableEntry, error)
}

type Request struct {
	api.AllocateRequest
}

type Response struct {
	response.Response
	Entry    *api.TimetableEntry `json:"entry,omitempty"`
	Conflict *api.TimetableEntry `json:"conflict,omitempty"`
}

func New(log *slog.Logger, allocator Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.timetable.allocate.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := request.DecodeJSON(r, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "failed to decode request"))
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		if err := request.Validator().Struct(req.AllocateRequest); err != nil {
			var validateErr validator.ValidationErrors
			if errors.As(err, &validateErr) {
				log.Error("Invalid request", sl.Err(err))
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ValidationError(validateErr))
				return
			}
			log.Error("Failed to validate request", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to validate request"))
			return
		}

		entry, err := allocator.Allocate(r.Context(), &req.AllocateRequest)

		var conflictErr *service.SlotConflictError
		if errors.As(err, &conflictErr) {
			log.Info("Slot already allocated", slog.String("reason", conflictErr.Error()))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, Response{
				Response: response.Error(response.SLOT_CONFLICT, conflictErr.Error()),
				Conflict: conflictErr.Existing,
			})
			return
		}

		if errors.Is(err, response.ErrSlotConflict) {
			log.Info("Slot already allocated")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.SLOT_CONFLICT, "slot is already allocated"))
			return
		}

		if errors.Is(err, response.ErrValidation) {
			log.Info("Allocation rejected", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.VALIDATION, response.ValidationMessage(err)))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Warn("Slot is locked by a concurrent allocation")
			render.Status(r, http.StatusLocked)
			render.JSON(w, r, response.Error(response.LOCKED, "slot is being allocated by another request"))
			return
		}

		if err != nil {
			log.Error("Failed to allocate timetable entry", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to allocate timetable entry"))
			return
		}

		log.Info("Timetable entry allocated", slog.String("id", entry.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{Entry: entry})
	}
}
