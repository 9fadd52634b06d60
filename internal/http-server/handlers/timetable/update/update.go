package update

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"timetable-service/api"
	"timetable-service/pkg/request"
	"timetable-service/pkg/response"
	"timetable-service/pkg/sl"
)

type Updater interface {
	Update(ctx context.Context, id string, req *api.UpdateRequest) (*api.TimetableEntry, error)
}

type Request struct {
	api.UpdateRequest
}

type Response struct {
	response.Response
	Entry *api.TimetableEntry `json:"entry,omitempty"`
}

func New(log *slog.Logger, updater Updater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.timetable.update.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "id is required"))
			return
		}

		var req Request

		// classId, day and period are not part of the request type, so
		// attempts to change them are rejected here as unknown fields.
		if err := request.DecodeJSON(r, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "failed to decode request"))
			return
		}

		if err := request.Validator().Struct(req.UpdateRequest); err != nil {
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

		entry, err := updater.Update(r.Context(), id, &req.UpdateRequest)

		if errors.Is(err, response.ErrNotFound) {
			log.Info("entry not found", slog.String("id", id))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error(response.NOT_FOUND, "timetable entry not found"))
			return
		}

		if errors.Is(err, response.ErrValidation) {
			log.Info("Update rejected", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.VALIDATION, response.ValidationMessage(err)))
			return
		}

		if err != nil {
			log.Error("Failed to update timetable entry", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to update timetable entry"))
			return
		}

		log.Info("Timetable entry updated", slog.String("id", entry.ID))

		render.JSON(w, r, Response{Entry: entry})
	}
}
