package limite

import (
	"context"

	"github.com/compras-gov/dispensa-guard/pkg/model"
	"github.com/compras-gov/dispensa-guard/pkg/storage"
)

// CategoriaCritica is a category whose current status is alerta or bloqueio
// in at least one bucket. Both buckets are reported; Status carries the
// worse of the two.
type CategoriaCritica struct {
	Categoria model.Categoria    `json:"categoria"`
	Anual     Avaliacao          `json:"anual"`
	Mensal    Avaliacao          `json:"mensal"`
	Status    model.StatusLimite `json:"status"`
}

// Painel is the portfolio-level summary served to the dashboard.
type Painel struct {
	TotalCategorias    int                `json:"total_categorias"`
	CategoriasAtivas   int                `json:"categorias_ativas"`
	AlertasNaoLidos    int64              `json:"alertas_nao_lidos"`
	CategoriasCriticas []CategoriaCritica `json:"categorias_criticas"`
	AlertasRecentes    []model.Alerta     `json:"alertas_recentes"`
	DispensasRecentes  []model.Dispensa   `json:"dispensas_recentes"`
}

const painelRecentes = 10

// Painel composes per-category evaluations into a portfolio summary. It is
// a read-only snapshot: no lock is taken and no state changes.
func (e *Engine) Painel(ctx context.Context) (*Painel, error) {
	todas, err := e.store.ListCategorias(ctx, false)
	if err != nil {
		return nil, err
	}

	p := &Painel{TotalCategorias: len(todas)}

	refAnual := model.ReferenciaAtual(model.PeriodoAnual)
	refMensal := model.ReferenciaAtual(model.PeriodoMensal)

	for i := range todas {
		cat := &todas[i]
		if !cat.Ativo {
			continue
		}
		p.CategoriasAtivas++

		usadoAnual, err := e.store.SumDispensasAtivas(ctx, cat.ID, model.PeriodoAnual, refAnual)
		if err != nil {
			return nil, err
		}
		usadoMensal, err := e.store.SumDispensasAtivas(ctx, cat.ID, model.PeriodoMensal, refMensal)
		if err != nil {
			return nil, err
		}

		anual := Avaliar(cat, model.PeriodoAnual, refAnual, usadoAnual)
		mensal := Avaliar(cat, model.PeriodoMensal, refMensal, usadoMensal)

		pior := piorStatus(anual.Status, mensal.Status)
		if pior == model.LimiteNormal {
			continue
		}
		p.CategoriasCriticas = append(p.CategoriasCriticas, CategoriaCritica{
			Categoria: *cat,
			Anual:     anual,
			Mensal:    mensal,
			Status:    pior,
		})
	}

	p.AlertasNaoLidos, err = e.store.CountAlertasNaoLidos(ctx)
	if err != nil {
		return nil, err
	}

	p.AlertasRecentes, err = e.store.ListAlertas(ctx, storage.AlertaFilter{Limit: painelRecentes})
	if err != nil {
		return nil, err
	}

	p.DispensasRecentes, err = e.store.ListDispensas(ctx, storage.DispensaFilter{Limit: painelRecentes})
	if err != nil {
		return nil, err
	}

	return p, nil
}

var statusRank = map[model.StatusLimite]int{
	model.LimiteNormal:   0,
	model.LimiteAlerta:   1,
	model.LimiteBloqueio: 2,
}

func piorStatus(a, b model.StatusLimite) model.StatusLimite {
	if statusRank[b] > statusRank[a] {
		return b
	}
	return a
}
