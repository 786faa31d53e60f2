package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/compras-gov/dispensa-guard/pkg/limite"
	"github.com/compras-gov/dispensa-guard/pkg/model"
	"github.com/compras-gov/dispensa-guard/pkg/storage"
)

// Server exposes the limit engine and the surrounding CRUD layer as a JSON
// API.
type Server struct {
	engine *limite.Engine
	store  storage.Storage
	logger *slog.Logger
	router chi.Router
}

// NewServer creates an API server.
func NewServer(engine *limite.Engine, store storage.Storage, logger *slog.Logger) *Server {
	s := &Server{
		engine: engine,
		store:  store,
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/categorias", func(r chi.Router) {
			r.Post("/", s.handleCreateCategoria)
			r.Get("/", s.handleListCategorias)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCategoria)
				r.Put("/", s.handleUpdateCategoria)
				r.Delete("/", s.handleDesativarCategoria)
				r.Get("/limite", s.handleAvaliarCategoria)
			})
		})

		r.Route("/dispensas", func(r chi.Router) {
			r.Post("/", s.handleRegistrarDispensa)
			r.Get("/", s.handleListDispensas)
			r.Post("/validar", s.handleValidarDispensa)
			r.Get("/{id}", s.handleGetDispensa)
			r.Post("/{id}/cancelar", s.handleCancelarDispensa)
		})

		r.Route("/alertas", func(r chi.Router) {
			r.Get("/", s.handleListAlertas)
			r.Post("/{id}/lida", s.handleMarcarAlertaLido)
		})

		r.Get("/dashboard", s.handleDashboard)
	})

	s.router = r
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	// Validacao carries the gate payload when a create was blocked.
	Validacao *model.ErrValidacaoRejeitada `json:"validacao,omitempty"`
}

// writeError translates engine and storage errors into HTTP status codes:
// not found is 404, a gate rejection is 422 with the structured refusal,
// anything else from the caller is 400 and internal faults are 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rejeitada *model.ErrValidacaoRejeitada
	switch {
	case errors.Is(err, model.ErrNaoEncontrado):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrCategoriaInativa), errors.Is(err, model.ErrDispensaJaCancelada):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &rejeitada):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:     rejeitada.Error(),
			Validacao: rejeitada,
		})
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// periodoRef parses the periodo/ano/mes query triplet, defaulting to the
// current bucket when ano is absent.
func periodoRef(r *http.Request) (model.Periodo, model.Referencia, error) {
	periodo := model.Periodo(r.URL.Query().Get("periodo"))
	if periodo == "" {
		periodo = model.PeriodoAnual
	}
	if !periodo.Valido() {
		return "", model.Referencia{}, errors.New("periodo invalido: use anual ou mensal")
	}

	ref := model.ReferenciaAtual(periodo)
	if v := r.URL.Query().Get("ano"); v != "" {
		ano, err := strconv.Atoi(v)
		if err != nil {
			return "", model.Referencia{}, errors.New("ano invalido")
		}
		ref.Ano = ano
	}
	if v := r.URL.Query().Get("mes"); v != "" {
		mes, err := strconv.Atoi(v)
		if err != nil {
			return "", model.Referencia{}, errors.New("mes invalido")
		}
		ref.Mes = mes
	}
	if err := model.ValidarReferencia(periodo, ref); err != nil {
		return "", model.Referencia{}, err
	}
	return periodo, ref, nil
}
