package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/compras-gov/dispensa-guard/pkg/limite"
	"github.com/compras-gov/dispensa-guard/pkg/model"
	"github.com/compras-gov/dispensa-guard/pkg/storage"
)

type dispensaRequest struct {
	CategoriaID   string        `json:"categoria_id"`
	Numero        string        `json:"numero"`
	Objeto        string        `json:"objeto"`
	Valor         float64       `json:"valor"`
	Periodo       model.Periodo `json:"periodo"`
	ReferenciaAno int           `json:"referencia_ano"`
	ReferenciaMes int           `json:"referencia_mes"`
	Forcar        bool          `json:"forcar"`
}

func (req *dispensaRequest) validar() (model.Referencia, error) {
	ref := model.Referencia{Ano: req.ReferenciaAno, Mes: req.ReferenciaMes}
	if req.ReferenciaAno == 0 {
		ref = model.ReferenciaAtual(req.Periodo)
	}
	if err := model.ValidarReferencia(req.Periodo, ref); err != nil {
		return model.Referencia{}, err
	}
	return ref, nil
}

func (s *Server) handleRegistrarDispensa(w http.ResponseWriter, r *http.Request) {
	var req dispensaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "json invalido")
		return
	}
	if req.Valor <= 0 {
		s.badRequest(w, "valor deve ser positivo")
		return
	}
	ref, err := req.validar()
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}

	d, err := s.engine.Registrar(r.Context(), limite.NovaDispensa{
		CategoriaID: req.CategoriaID,
		Numero:      req.Numero,
		Objeto:      req.Objeto,
		Valor:       req.Valor,
		Periodo:     req.Periodo,
		Referencia:  ref,
		Forcar:      req.Forcar,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleValidarDispensa(w http.ResponseWriter, r *http.Request) {
	var req dispensaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "json invalido")
		return
	}
	if req.Valor <= 0 {
		s.badRequest(w, "valor deve ser positivo")
		return
	}
	ref, err := req.validar()
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}

	res, err := s.engine.Validar(r.Context(), req.CategoriaID, req.Valor, req.Periodo, ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListDispensas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.DispensaFilter{
		CategoriaID: q.Get("categoria"),
		Status:      model.StatusDispensa(q.Get("status")),
		Periodo:     model.Periodo(q.Get("periodo")),
	}
	filter.Ano, _ = strconv.Atoi(q.Get("ano"))
	filter.Mes, _ = strconv.Atoi(q.Get("mes"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	list, err := s.store.ListDispensas(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Dispensa{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetDispensa(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDispensa(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCancelarDispensa(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.Cancelar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}
