package devapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sourpat/payresolve/internal/apiclient"
)

// RegisterRoutes mounts the diagnostic API under /support.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/support", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, svc.Ping())
		})
		r.Get("/categories", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string][]string{"categories": svc.Categories()})
		})
		r.Post("/diagnose", handleDiagnose(svc, false))
		r.Post("/diagnose/with-summary", handleDiagnose(svc, true))
	})
}

func handleDiagnose(svc *Service, summary bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.DiagnosisRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
			return
		}

		result, err := svc.Diagnose(r.Context(), req, summary)
		switch {
		case errors.Is(err, ErrMissingErrorCode):
			writeDetail(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrTraceTooLong):
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		case err != nil:
			writeDetail(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, result)
		}
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
