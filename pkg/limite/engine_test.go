package limite_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compras-gov/dispensa-guard/pkg/alerts"
	"github.com/compras-gov/dispensa-guard/pkg/limite"
	"github.com/compras-gov/dispensa-guard/pkg/model"
	"github.com/compras-gov/dispensa-guard/pkg/storage"
)

func newTestEngine(t *testing.T, notifiers ...alerts.Notifier) (*limite.Engine, storage.Storage) {
	t.Helper()
	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	return limite.NewEngine(db, notifiers, logger), db
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func seedCategoria(t *testing.T, st storage.Storage) *model.Categoria {
	t.Helper()
	cat := &model.Categoria{
		Nome:                 "Material de expediente",
		Tipo:                 model.TipoMaterial,
		LimiteDispensaAnual:  10000,
		LimiteDispensaMensal: 1000,
		AlertaPercentual:     70,
		BloqueioPercentual:   90,
		Ativo:                true,
	}
	require.NoError(t, st.SaveCategoria(context.Background(), cat))
	return cat
}

func registrar(t *testing.T, eng *limite.Engine, cat *model.Categoria, valor float64) *model.Dispensa {
	t.Helper()
	d, err := eng.Registrar(context.Background(), limite.NovaDispensa{
		CategoriaID: cat.ID,
		Objeto:      "aquisicao de teste",
		Valor:       valor,
		Periodo:     model.PeriodoAnual,
		Referencia:  model.Referencia{Ano: 2026},
	})
	require.NoError(t, err)
	return d
}

func TestEngine_Validar(t *testing.T) {
	eng, st := newTestEngine(t)
	cat := seedCategoria(t, st)
	ref := model.Referencia{Ano: 2026}
	ctx := context.Background()

	registrar(t, eng, cat, 8000)

	// 8000 + 500 = 8500, 85% of the annual ceiling: allowed, but already
	// in the alert band.
	res, err := eng.Validar(ctx, cat.ID, 500, model.PeriodoAnual, ref)
	require.NoError(t, err)
	assert.True(t, res.PodeGerar)
	assert.True(t, res.AtingiraAlerta)
	assert.InDelta(t, 85, res.PercentualProjetado, 0.001)
	assert.Zero(t, res.ValorExcedido)

	// 8000 + 1200 = 9200, 92%: blocked by threshold even though the
	// ceiling itself is not exceeded.
	res, err = eng.Validar(ctx, cat.ID, 1200, model.PeriodoAnual, ref)
	require.NoError(t, err)
	assert.False(t, res.PodeGerar)
	assert.InDelta(t, 92, res.PercentualProjetado, 0.001)
	assert.Zero(t, res.ValorExcedido)
	assert.NotEmpty(t, res.Mensagem)

	// 8000 + 3000 = 11000: blocked, and now the overrun is reported.
	res, err = eng.Validar(ctx, cat.ID, 3000, model.PeriodoAnual, ref)
	require.NoError(t, err)
	assert.False(t, res.PodeGerar)
	assert.InDelta(t, 1000, res.ValorExcedido, 0.001)

	// validation is a pure read
	usado, err := eng.ComputeUsage(ctx, cat.ID, model.PeriodoAnual, ref)
	require.NoError(t, err)
	assert.InDelta(t, 8000, usado, 0.001)
}

func TestEngine_Validar_ExatamenteNoBloqueio(t *testing.T) {
	eng, st := newTestEngine(t)
	cat := seedCategoria(t, st)

	// projecting exactly onto the block threshold blocks
	res, err := eng.Validar(context.Background(), cat.ID, 9000, model.PeriodoAnual, model.Referencia{Ano: 2026})
	require.NoError(t, err)
	assert.False(t, res.PodeGerar)
	assert.InDelta(t, 90, res.PercentualProjetado, 0.001)
}

func TestEngine_Registrar_Bloqueada(t *testing.T) {
	eng, st := newTestEngine(t)
	cat := seedCategoria(t, st)
	ctx := context.Background()

	registrar(t, eng, cat, 8000)

	_, err := eng.Registrar(ctx, limite.NovaDispensa{
		CategoriaID: cat.ID,
		Objeto:      "acima do bloqueio",
		Valor:       1500,
		Periodo:     model.PeriodoAnual,
		Referencia:  model.Referencia{Ano: 2026},
	})
	var rejeitada *model.ErrValidacaoRejeitada
	require.ErrorAs(t, err, &rejeitada)
	assert.Equal(t, cat.ID, rejeitada.CategoriaID)
	assert.InDelta(t, 95, rejeitada.PercentualProjetado, 0.001)

	// nothing was persisted
	usado, err := eng.ComputeUsage(ctx, cat.ID, model.PeriodoAnual, model.Referencia{Ano: 2026})
	require.NoError(t, err)
	assert.InDelta(t, 8000, usado, 0.001)
}

func TestEngine_Registrar_Forcada(t *testing.T) {
	eng, st := newTestEngine(t)
	cat := seedCategoria(t, st)
	ctx := context.Background()

	registrar(t, eng, cat, 8000)

	d, err := eng.Registrar(ctx, limite.NovaDispensa{
		CategoriaID: cat.ID,
		Objeto:      "emergencial",
		Valor:       1500,
		Periodo:     model.PeriodoAnual,
		Referencia:  model.Referencia{Ano: 2026},
		Forcar:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.DispensaAtiva, d.Status)

	// the forced record still produces pressure: usage is 95%, so an
	// error-tier alert must exist for the bucket
	f := false
	pendentes, err := st.ListAlertas(ctx, storage.AlertaFilter{Lida: &f})
	require.NoError(t, err)
	var tipos []model.TipoAlerta
	for _, a := range pendentes {
		tipos = append(tipos, a.Tipo)
	}
	assert.Contains(t, tipos, model.AlertaError)
}

func TestEngine_Registrar_CategoriaInativa(t *testing.T) {
	eng, st := newTestEngine(t)
	cat := seedCategoria(t, st)
	ctx := context.Background()
	require.NoError(t, st.DesativarCategoria(ctx, cat.ID))

	_, err := eng.Registrar(ctx, limite.NovaDispensa{
		CategoriaID: cat.ID,
		Valor:       100,
		Periodo:     model.PeriodoAnual,
		Referencia:  model.Referencia{Ano: 2026},
	})
	assert.ErrorIs(t, err, model.ErrCategoriaInativa)
}

func TestEngine_Reconciliar_Idempotente(t *testing.T) {
	eng, st := newTestEngine(t)
	cat := seedCategoria(t, st)
	ctx := context.Background()
	ref := model.Referencia{Ano: 2026}

	registrar(t, eng, cat, 7500) // 75%, warning tier

	novos, err := eng.Reconciliar(ctx, cat.ID, model.PeriodoAnual, ref)
	require.NoError(t, err)
	assert.Empty(t, novos, "warning alert already created by Registrar")

	todos, err := st.ListAlertas(ctx, storage.AlertaFilter{CategoriaID: cat.ID})
	require.NoError(t, err)
	assert.Len(t, todos, 1)

	// reading the open alert frees the slot, so the next reconcile
	// raises a fresh one
	require.NoError(t, st.MarcarAlertaLido(ctx, todos[0].ID))
	novos, err = eng.Reconciliar(ctx, cat.ID, model.PeriodoAnual, ref)
	require.NoError(t, err)
	assert.Len(t, novos, 1)
}

func TestEngine_Reconciliar_Escalonamento(t *testing.T) {
	eng, st := newTestEngine(t)
	cat := seedCategoria(t, st)
	ctx := context.Background()
	ref := model.Referencia{Ano: 2026}

	registrar(t, eng, cat, 7500) // warning
	registrar(t, eng, cat, 1000) // 85%, still warning tier, no new alert
	_, err := eng.Registrar(ctx, limite.NovaDispensa{
		CategoriaID: cat.ID,
		Objeto:      "escala para error",
		Valor:       1000,
		Periodo:     model.PeriodoAnual,
		Referencia:  ref,
		Forcar:      true,
	}) // 95%, error tier
	require.NoError(t, err)

	todos, err := st.ListAlertas(ctx, storage.AlertaFilter{CategoriaID: cat.ID})
	require.NoError(t, err)
	require.Len(t, todos, 2)

	tipos := []model.TipoAlerta{todos[0].Tipo, todos[1].Tipo}
	assert.ElementsMatch(t, []model.TipoAlerta{model.AlertaWarning, model.AlertaError}, tipos)
}

func TestEngine_Cancelar(t *testing.T) {
	eng, st := newTestEngine(t)
	cat := seedCategoria(t, st)
	ctx := context.Background()
	ref := model.Referencia{Ano: 2026}

	d := registrar(t, eng, cat, 7500)

	cancelada, err := eng.Cancelar(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DispensaCancelada, cancelada.Status)
	require.NotNil(t, cancelada.CanceladaEm)

	// usage returns to zero and the status to normal
	av, err := eng.AvaliarCategoria(ctx, cat.ID, model.PeriodoAnual, ref)
	require.NoError(t, err)
	assert.Zero(t, av.ValorUsado)
	assert.Equal(t, model.LimiteNormal, av.Status)

	// the alert raised before the cancellation is not retracted
	todos, err := st.ListAlertas(ctx, storage.AlertaFilter{CategoriaID: cat.ID})
	require.NoError(t, err)
	assert.Len(t, todos, 1)

	// cancelling again fails
	_, err = eng.Cancelar(ctx, d.ID)
	assert.ErrorIs(t, err, model.ErrDispensaJaCancelada)
}

func TestEngine_Notificacao(t *testing.T) {
	var delivered atomic.Int64
	var payload alerts.Notificacao
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Alerta alerts.Notificacao `json:"alerta"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		payload = body.Alerta
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	eng, st := newTestEngine(t, alerts.NewWebhookNotifier(server.URL, ""))
	cat := seedCategoria(t, st)

	registrar(t, eng, cat, 9500) // error tier, one notification

	assert.EqualValues(t, 1, delivered.Load())
	assert.Equal(t, model.AlertaError, payload.Tipo)
	assert.Equal(t, cat.Nome, payload.CategoriaNome)
	assert.InDelta(t, 95, payload.PercentualUsado, 0.001)
}

func TestEngine_Painel(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	critica := seedCategoria(t, st)
	tranquila := &model.Categoria{
		Nome:                "Servicos graficos",
		Tipo:                model.TipoServico,
		LimiteDispensaAnual: 50000,
		AlertaPercentual:    70,
		BloqueioPercentual:  90,
		Ativo:               true,
	}
	require.NoError(t, st.SaveCategoria(ctx, tranquila))

	refAnual := model.ReferenciaAtual(model.PeriodoAnual)
	_, err := eng.Registrar(ctx, limite.NovaDispensa{
		CategoriaID: critica.ID,
		Objeto:      "estoque anual",
		Valor:       9500,
		Periodo:     model.PeriodoAnual,
		Referencia:  refAnual,
		Forcar:      true,
	})
	require.NoError(t, err)

	p, err := eng.Painel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, p.TotalCategorias)
	assert.Equal(t, 2, p.CategoriasAtivas)
	assert.EqualValues(t, 1, p.AlertasNaoLidos)
	require.Len(t, p.CategoriasCriticas, 1)
	assert.Equal(t, critica.ID, p.CategoriasCriticas[0].Categoria.ID)
	assert.Equal(t, model.LimiteBloqueio, p.CategoriasCriticas[0].Status)
	assert.Len(t, p.AlertasRecentes, 1)
	assert.Len(t, p.DispensasRecentes, 1)
}
