package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement/internal/line-provider/dto"
	"github.com/radieske/bet-settlement/internal/line-provider/lifecycle"
	"github.com/radieske/bet-settlement/internal/line-provider/store"
)

const maxBody = 1 << 16

// API expõe os endpoints REST de eventos do line-provider
type API struct {
	Log     *zap.Logger
	Manager *lifecycle.Manager
	Now     func() time.Time // relógio; nil usa time.Now
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/events", a.listActive)   // Eventos com deadline no futuro
	r.Get("/event/{id}", a.getEvent) // Um evento
	r.Put("/event", a.putEvent)      // Cria ou atualiza
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *API) listActive(w http.ResponseWriter, r *http.Request) {
	evs, err := a.Manager.ListActive(r.Context(), a.now())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.Detail{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dto.FromEvents(evs))
}

func (a *API) getEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, err := a.Manager.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, dto.Detail{Detail: "Event not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.Detail{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dto.FromEvent(e))
}

// putEvent cria ou atualiza; campos ausentes no corpo ficam intactos.
// Se a notificação falhar o evento já está gravado e a resposta é 502.
func (a *API) putEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Detail{Detail: "bad body"})
		return
	}
	id, patch, err := dto.DecodePatch(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Detail{Detail: err.Error()})
		return
	}

	res, err := a.Manager.CreateOrUpdate(r.Context(), id, patch)
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		writeJSON(w, http.StatusBadRequest, dto.Detail{Detail: err.Error()})
		return
	case errors.Is(err, lifecycle.ErrPublishFailed):
		a.Log.Warn("event updated without notification", zap.String("event_id", id), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, dto.Detail{Detail: "Event updated; outcome notification failed"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, dto.Detail{Detail: err.Error()})
		return
	}

	if res.Created {
		writeJSON(w, http.StatusOK, dto.Detail{Detail: "Event created"})
		return
	}
	writeJSON(w, http.StatusOK, dto.Detail{Detail: "Event updated"})
}
