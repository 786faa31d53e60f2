package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/compras-gov/dispensa-guard/pkg/model"
	"github.com/compras-gov/dispensa-guard/pkg/storage"
)

func (s *Server) handleListAlertas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.AlertaFilter{CategoriaID: q.Get("categoria")}
	if v := q.Get("lida"); v != "" {
		lida := v == "true"
		filter.Lida = &lida
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	list, err := s.store.ListAlertas(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Alerta{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMarcarAlertaLido(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.MarcarAlertaLido(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "lida": true})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Painel(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}
