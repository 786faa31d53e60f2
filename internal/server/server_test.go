package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compras-gov/dispensa-guard/internal/server"
	"github.com/compras-gov/dispensa-guard/pkg/limite"
	"github.com/compras-gov/dispensa-guard/pkg/model"
	"github.com/compras-gov/dispensa-guard/pkg/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := limite.NewEngine(db, nil, logger)
	srv := httptest.NewServer(server.NewServer(engine, db, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func criarCategoria(t *testing.T, base string) model.Categoria {
	t.Helper()
	resp := doJSON(t, http.MethodPost, base+"/api/v1/categorias", map[string]any{
		"nome":                   "Material de expediente",
		"tipo":                   "material",
		"limite_dispensa_anual":  10000,
		"limite_dispensa_mensal": 1000,
		"alerta_percentual":      70,
		"bloqueio_percentual":    90,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[model.Categoria](t, resp)
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Categorias_CRUD(t *testing.T) {
	srv := newTestServer(t)
	cat := criarCategoria(t, srv.URL)
	assert.NotEmpty(t, cat.ID)
	assert.True(t, cat.Ativo)

	resp, err := http.Get(srv.URL + "/api/v1/categorias/" + cat.ID)
	require.NoError(t, err)
	got := decode[model.Categoria](t, resp)
	assert.Equal(t, cat.Nome, got.Nome)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/categorias/"+cat.ID, map[string]any{
		"nome":                  "Renomeada",
		"tipo":                  "material",
		"limite_dispensa_anual": 20000,
		"alerta_percentual":     70,
		"bloqueio_percentual":   90,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decode[model.Categoria](t, resp)
	assert.Equal(t, "Renomeada", got.Nome)
	assert.InDelta(t, 20000, got.LimiteDispensaAnual, 0.001)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/categorias/"+cat.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/v1/categorias?ativas=true")
	require.NoError(t, err)
	ativas := decode[[]model.Categoria](t, resp)
	assert.Empty(t, ativas)
}

func TestServer_Categorias_Invalida(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/categorias", map[string]any{
		"nome":                "Sem tipo valido",
		"tipo":                "obra",
		"alerta_percentual":   70,
		"bloqueio_percentual": 90,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Categorias_NaoEncontrada(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/categorias/inexistente")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Dispensas_Registro(t *testing.T) {
	srv := newTestServer(t)
	cat := criarCategoria(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/dispensas", map[string]any{
		"categoria_id":   cat.ID,
		"objeto":         "papel sulfite",
		"valor":          8000,
		"periodo":        "anual",
		"referencia_ano": 2026,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	d := decode[model.Dispensa](t, resp)
	assert.Equal(t, model.DispensaAtiva, d.Status)

	// projection at 95% crosses the block threshold
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/dispensas", map[string]any{
		"categoria_id":   cat.ID,
		"objeto":         "acima do limite",
		"valor":          1500,
		"periodo":        "anual",
		"referencia_ano": 2026,
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[struct {
		Error     string                       `json:"error"`
		Validacao *model.ErrValidacaoRejeitada `json:"validacao"`
	}](t, resp)
	require.NotNil(t, body.Validacao)
	assert.Equal(t, cat.ID, body.Validacao.CategoriaID)
	assert.InDelta(t, 95, body.Validacao.PercentualProjetado, 0.001)

	// forcar overrides the gate
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/dispensas", map[string]any{
		"categoria_id":   cat.ID,
		"objeto":         "emergencial",
		"valor":          1500,
		"periodo":        "anual",
		"referencia_ano": 2026,
		"forcar":         true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_Dispensas_Validar(t *testing.T) {
	srv := newTestServer(t)
	cat := criarCategoria(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/dispensas/validar", map[string]any{
		"categoria_id":   cat.ID,
		"valor":          500,
		"periodo":        "anual",
		"referencia_ano": 2026,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[limite.ResultadoValidacao](t, resp)
	assert.True(t, res.PodeGerar)
	assert.False(t, res.AtingiraAlerta)

	// validation persists nothing
	resp, err := http.Get(srv.URL + "/api/v1/dispensas")
	require.NoError(t, err)
	list := decode[[]model.Dispensa](t, resp)
	assert.Empty(t, list)
}

func TestServer_Dispensas_ValorInvalido(t *testing.T) {
	srv := newTestServer(t)
	cat := criarCategoria(t, srv.URL)

	for _, path := range []string{"/api/v1/dispensas", "/api/v1/dispensas/validar"} {
		resp := doJSON(t, http.MethodPost, srv.URL+path, map[string]any{
			"categoria_id": cat.ID,
			"valor":        -10,
			"periodo":      "anual",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestServer_Dispensas_Cancelamento(t *testing.T) {
	srv := newTestServer(t)
	cat := criarCategoria(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/dispensas", map[string]any{
		"categoria_id":   cat.ID,
		"objeto":         "cancelavel",
		"valor":          500,
		"periodo":        "anual",
		"referencia_ano": 2026,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	d := decode[model.Dispensa](t, resp)

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/dispensas/%s/cancelar", srv.URL, d.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelada := decode[model.Dispensa](t, resp)
	assert.Equal(t, model.DispensaCancelada, cancelada.Status)

	// second cancellation conflicts
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/dispensas/%s/cancelar", srv.URL, d.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_Alertas(t *testing.T) {
	srv := newTestServer(t)
	cat := criarCategoria(t, srv.URL)

	// 80% of the annual ceiling lands in the warning band and raises an alert
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/dispensas", map[string]any{
		"categoria_id":   cat.ID,
		"objeto":         "gera alerta",
		"valor":          8000,
		"periodo":        "anual",
		"referencia_ano": 2026,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/alertas?lida=false")
	require.NoError(t, err)
	list := decode[[]model.Alerta](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, model.AlertaWarning, list[0].Tipo)

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/alertas/%s/lida", srv.URL, list[0].ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/v1/alertas?lida=false")
	require.NoError(t, err)
	list = decode[[]model.Alerta](t, resp)
	assert.Empty(t, list)
}

func TestServer_CategoriaLimite(t *testing.T) {
	srv := newTestServer(t)
	cat := criarCategoria(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/dispensas", map[string]any{
		"categoria_id":   cat.ID,
		"objeto":         "meio caminho",
		"valor":          5000,
		"periodo":        "anual",
		"referencia_ano": 2026,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/categorias/" + cat.ID + "/limite?periodo=anual&ano=2026")
	require.NoError(t, err)
	av := decode[limite.Avaliacao](t, resp)
	assert.InDelta(t, 50, av.PercentualUsado, 0.001)
	assert.Equal(t, model.LimiteNormal, av.Status)

	resp, err = http.Get(srv.URL + "/api/v1/categorias/" + cat.ID + "/limite?periodo=quinzenal")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Dashboard(t *testing.T) {
	srv := newTestServer(t)
	cat := criarCategoria(t, srv.URL)

	// current-year bucket so the dashboard picks it up
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/dispensas", map[string]any{
		"categoria_id": cat.ID,
		"objeto":       "pressao no painel",
		"valor":        9500,
		"periodo":      "anual",
		"forcar":       true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/dashboard")
	require.NoError(t, err)
	p := decode[limite.Painel](t, resp)
	assert.Equal(t, 1, p.TotalCategorias)
	assert.Equal(t, 1, p.CategoriasAtivas)
	assert.EqualValues(t, 1, p.AlertasNaoLidos)
	require.Len(t, p.CategoriasCriticas, 1)
	assert.Equal(t, model.LimiteBloqueio, p.CategoriasCriticas[0].Status)
}
