package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/compras-gov/dispensa-guard/pkg/model"
)

type categoriaRequest struct {
	Nome                 string              `json:"nome"`
	Tipo                 model.TipoCategoria `json:"tipo"`
	Descricao            string              `json:"descricao"`
	LimiteDispensaAnual  float64             `json:"limite_dispensa_anual"`
	LimiteDispensaMensal float64             `json:"limite_dispensa_mensal"`
	AlertaPercentual     float64             `json:"alerta_percentual"`
	BloqueioPercentual   float64             `json:"bloqueio_percentual"`
}

func (req *categoriaRequest) aplicar(cat *model.Categoria) {
	cat.Nome = req.Nome
	cat.Tipo = req.Tipo
	cat.Descricao = req.Descricao
	cat.LimiteDispensaAnual = req.LimiteDispensaAnual
	cat.LimiteDispensaMensal = req.LimiteDispensaMensal
	cat.AlertaPercentual = req.AlertaPercentual
	cat.BloqueioPercentual = req.BloqueioPercentual
}

func (s *Server) handleCreateCategoria(w http.ResponseWriter, r *http.Request) {
	var req categoriaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "json invalido")
		return
	}

	cat := &model.Categoria{Ativo: true}
	req.aplicar(cat)
	if err := cat.Validar(); err != nil {
		s.badRequest(w, err.Error())
		return
	}

	if err := s.store.SaveCategoria(r.Context(), cat); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleListCategorias(w http.ResponseWriter, r *http.Request) {
	somenteAtivas := r.URL.Query().Get("ativas") == "true"
	cats, err := s.store.ListCategorias(r.Context(), somenteAtivas)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []model.Categoria{}
	}
	s.writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleGetCategoria(w http.ResponseWriter, r *http.Request) {
	cat, err := s.store.GetCategoria(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleUpdateCategoria(w http.ResponseWriter, r *http.Request) {
	cat, err := s.store.GetCategoria(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req categoriaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "json invalido")
		return
	}

	req.aplicar(cat)
	if err := cat.Validar(); err != nil {
		s.badRequest(w, err.Error())
		return
	}

	if err := s.store.SaveCategoria(r.Context(), cat); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleDesativarCategoria(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DesativarCategoria(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "desativada"})
}

func (s *Server) handleAvaliarCategoria(w http.ResponseWriter, r *http.Request) {
	periodo, ref, err := periodoRef(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}

	av, err := s.engine.AvaliarCategoria(r.Context(), chi.URLParam(r, "id"), periodo, ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, av)
}
