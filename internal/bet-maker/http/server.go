package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement/internal/bet-maker/dto"
	"github.com/radieske/bet-settlement/internal/bet-maker/repo"
)

// ActiveEventsCache guarda a resposta de GET /events.
// A versão lida em ActiveEvents muda a cada Invalidate; SetActiveEvents com
// versão antiga não grava.
type ActiveEventsCache interface {
	ActiveEvents(ctx context.Context) (ids []string, version int64, hit bool, err error)
	SetActiveEvents(ctx context.Context, ids []string, version int64) (stored bool, err error)
	Invalidate(ctx context.Context) error
}

type Server struct {
	log   *zap.Logger
	store repo.Store
	cache ActiveEventsCache // opcional
	ws    http.HandlerFunc  // opcional
}

func NewServer(log *zap.Logger, s repo.Store, c ActiveEventsCache, ws http.HandlerFunc) *Server {
	return &Server{log: log, store: s, cache: c, ws: ws}
}

// Router retorna o roteador HTTP com os endpoints REST e o WebSocket
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/bet", s.createBet)      // Cria aposta com status NEW
	r.Get("/bets", s.listBets)       // Histórico completo
	r.Get("/bet/{id}", s.getBet)     // Uma aposta
	r.Get("/events", s.activeEvents) // Eventos com apostas NEW
	if s.ws != nil {
		r.Get("/ws", s.ws)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) createBet(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Detail{Detail: "bad json"})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Detail{Detail: err.Error()})
		return
	}

	b, err := s.store.Create(r.Context(), req.EventID, req.Amount)
	if err != nil {
		s.log.Error("create bet failed", zap.String("event_id", req.EventID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.Detail{Detail: "could not create bet"})
		return
	}
	s.invalidate(r.Context())

	s.log.Info("bet created", zap.String("bet_id", b.ID), zap.String("event_id", b.EventID))
	writeJSON(w, http.StatusOK, dto.FromBet(b))
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	bs, err := s.store.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.Detail{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dto.FromBets(bs))
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, repo.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, dto.Detail{Detail: "Bet not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.Detail{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dto.FromBet(b))
}

// activeEvents consulta o cache antes do banco; falha de cache só gera log.
// Se uma aposta foi criada ou liquidada durante a leitura do banco a listagem
// é devolvida mas não vai para o cache.
func (s *Server) activeEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var version int64
	cacheable := s.cache != nil
	if s.cache != nil {
		ids, v, ok, err := s.cache.ActiveEvents(ctx)
		switch {
		case err != nil:
			s.log.Warn("active events cache read failed", zap.Error(err))
			cacheable = false
		case ok:
			writeJSON(w, http.StatusOK, dto.ActiveEvents{ActiveEvents: ids})
			return
		}
		version = v
	}

	ids, err := s.store.ActiveEventIDs(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.Detail{Detail: err.Error()})
		return
	}
	if cacheable {
		stored, err := s.cache.SetActiveEvents(ctx, ids, version)
		if err != nil {
			s.log.Warn("active events cache write failed", zap.Error(err))
		} else if !stored {
			s.log.Debug("active events changed during read, cache not updated")
		}
	}
	writeJSON(w, http.StatusOK, dto.ActiveEvents{ActiveEvents: ids})
}

func (s *Server) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("active events cache invalidate failed", zap.Error(err))
	}
}
