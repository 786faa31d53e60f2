package limite_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/compras-gov/dispensa-guard/pkg/limite"
	"github.com/compras-gov/dispensa-guard/pkg/model"
)

func categoriaTeste() *model.Categoria {
	return &model.Categoria{
		ID:                   "cat-1",
		Nome:                 "Material de expediente",
		Tipo:                 model.TipoMaterial,
		LimiteDispensaAnual:  10000,
		LimiteDispensaMensal: 1000,
		AlertaPercentual:     70,
		BloqueioPercentual:   90,
		Ativo:                true,
	}
}

func TestAvaliar(t *testing.T) {
	cat := categoriaTeste()
	ref := model.Referencia{Ano: 2026}

	tests := []struct {
		name       string
		usado      float64
		wantStatus model.StatusLimite
		wantPct    float64
	}{
		{"sem uso", 0, model.LimiteNormal, 0},
		{"abaixo do alerta", 6999, model.LimiteNormal, 69.99},
		{"exatamente no alerta", 7000, model.LimiteAlerta, 70},
		{"entre alerta e bloqueio", 8500, model.LimiteAlerta, 85},
		{"exatamente no bloqueio", 9000, model.LimiteBloqueio, 90},
		{"acima do limite", 11000, model.LimiteBloqueio, 110},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av := limite.Avaliar(cat, model.PeriodoAnual, ref, tt.usado)
			assert.Equal(t, tt.wantStatus, av.Status)
			assert.InDelta(t, tt.wantPct, av.PercentualUsado, 0.001)
			assert.InDelta(t, 10000, av.Limite, 0.001)
		})
	}
}

func TestAvaliar_SemLimiteConfigurado(t *testing.T) {
	cat := categoriaTeste()
	cat.LimiteDispensaMensal = 0

	av := limite.Avaliar(cat, model.PeriodoMensal, model.Referencia{Ano: 2026, Mes: 1}, 999999)
	assert.Equal(t, model.LimiteNormal, av.Status)
	assert.Zero(t, av.PercentualUsado)
}

func TestAvaliar_PeriodoSelecionaLimite(t *testing.T) {
	cat := categoriaTeste()
	ref := model.Referencia{Ano: 2026, Mes: 2}

	// 950 against the monthly ceiling of 1000 is 95%, blocked; the same
	// value against the annual ceiling of 10000 is harmless.
	mensal := limite.Avaliar(cat, model.PeriodoMensal, ref, 950)
	assert.Equal(t, model.LimiteBloqueio, mensal.Status)

	anual := limite.Avaliar(cat, model.PeriodoAnual, model.Referencia{Ano: 2026}, 950)
	assert.Equal(t, model.LimiteNormal, anual.Status)
}

func TestTipoAlertaPara(t *testing.T) {
	cat := categoriaTeste()
	ref := model.Referencia{Ano: 2026}

	tests := []struct {
		name     string
		usado    float64
		wantTipo model.TipoAlerta
		wantOk   bool
	}{
		{"normal nao gera alerta", 5000, "", false},
		{"faixa de alerta gera warning", 7500, model.AlertaWarning, true},
		{"faixa de bloqueio gera error", 9500, model.AlertaError, true},
		{"limite atingido gera critical", 10000, model.AlertaCritical, true},
		{"acima do limite gera critical", 12000, model.AlertaCritical, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av := limite.Avaliar(cat, model.PeriodoAnual, ref, tt.usado)
			tipo, ok := limite.TipoAlertaPara(av)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantTipo, tipo)
		})
	}
}

func TestTipoAlertaPara_SemLimite(t *testing.T) {
	cat := categoriaTeste()
	cat.LimiteDispensaAnual = 0

	av := limite.Avaliar(cat, model.PeriodoAnual, model.Referencia{Ano: 2026}, 500000)
	_, ok := limite.TipoAlertaPara(av)
	assert.False(t, ok)
}
