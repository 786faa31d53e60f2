package limite

import (
	"fmt"

	"github.com/compras-gov/dispensa-guard/pkg/model"
)

// Avaliacao is the result of classifying one category bucket against its
// configured thresholds.
type Avaliacao struct {
	Periodo         model.Periodo      `json:"periodo"`
	Referencia      model.Referencia   `json:"referencia"`
	Limite          float64            `json:"limite"`
	ValorUsado      float64            `json:"valor_usado"`
	PercentualUsado float64            `json:"percentual_usado"`
	Status          model.StatusLimite `json:"status"`
}

// Avaliar classifies current usage against a category's ceilings. A zero or
// negative ceiling means no limit is configured and the status is always
// normal. Highest severity wins: bloqueio before alerta.
func Avaliar(cat *model.Categoria, periodo model.Periodo, ref model.Referencia, usado float64) Avaliacao {
	av := Avaliacao{
		Periodo:    periodo,
		Referencia: ref,
		Limite:     cat.Limite(periodo),
		ValorUsado: usado,
		Status:     model.LimiteNormal,
	}
	if av.Limite <= 0 {
		return av
	}

	av.PercentualUsado = usado / av.Limite * 100
	switch {
	case av.PercentualUsado >= cat.BloqueioPercentual:
		av.Status = model.LimiteBloqueio
	case av.PercentualUsado >= cat.AlertaPercentual:
		av.Status = model.LimiteAlerta
	}
	return av
}

// TipoAlertaPara maps an evaluation to the severity tier of the alert it
// warrants. Reaching the ceiling itself outranks the configured block
// threshold. The second return is false when no alert is warranted.
func TipoAlertaPara(av Avaliacao) (model.TipoAlerta, bool) {
	if av.Limite > 0 && av.PercentualUsado >= 100 {
		return model.AlertaCritical, true
	}
	switch av.Status {
	case model.LimiteBloqueio:
		return model.AlertaError, true
	case model.LimiteAlerta:
		return model.AlertaWarning, true
	}
	return "", false
}

// ResultadoValidacao is the validation gate's answer for a proposed
// dispensation. It never reflects persisted state changes.
type ResultadoValidacao struct {
	PodeGerar           bool               `json:"pode_gerar"`
	ValorExcedido       float64            `json:"valor_excedido"`
	AtingiraAlerta      bool               `json:"atingira_alerta"`
	ValorAtual          float64            `json:"valor_atual"`
	ValorProjetado      float64            `json:"valor_projetado"`
	PercentualProjetado float64            `json:"percentual_projetado"`
	StatusProjetado     model.StatusLimite `json:"status_projetado"`
	Limite              float64            `json:"limite"`
	Mensagem            string             `json:"mensagem,omitempty"`
}

// avaliarProposta projects usage after a hypothetical create and decides
// whether the create is allowed. Blocking is threshold-based, not
// overrun-based: a projection at or above bloqueio_percentual blocks even
// when the projected value is still under the ceiling, so ValorExcedido can
// be zero on a blocked proposal.
func avaliarProposta(cat *model.Categoria, periodo model.Periodo, atual, proposto float64) ResultadoValidacao {
	limite := cat.Limite(periodo)
	res := ResultadoValidacao{
		PodeGerar:       true,
		ValorAtual:      atual,
		ValorProjetado:  atual + proposto,
		StatusProjetado: model.LimiteNormal,
		Limite:          limite,
	}
	if limite <= 0 {
		res.Mensagem = fmt.Sprintf("categoria %q sem limite %s configurado", cat.Nome, periodo)
		return res
	}

	res.PercentualProjetado = res.ValorProjetado / limite * 100
	if res.ValorProjetado > limite {
		res.ValorExcedido = res.ValorProjetado - limite
	}

	switch {
	case res.PercentualProjetado >= cat.BloqueioPercentual:
		res.StatusProjetado = model.LimiteBloqueio
	case res.PercentualProjetado >= cat.AlertaPercentual:
		res.StatusProjetado = model.LimiteAlerta
	}

	res.AtingiraAlerta = res.StatusProjetado != model.LimiteNormal
	// Reaching the block threshold exactly is itself blocking.
	res.PodeGerar = res.PercentualProjetado < cat.BloqueioPercentual

	if !res.PodeGerar {
		res.Mensagem = fmt.Sprintf(
			"valor projetado R$ %.2f atinge %.1f%% do limite %s de R$ %.2f (bloqueio em %.0f%%)",
			res.ValorProjetado, res.PercentualProjetado, periodo, limite, cat.BloqueioPercentual)
	} else if res.AtingiraAlerta {
		res.Mensagem = fmt.Sprintf(
			"valor projetado R$ %.2f atinge %.1f%% do limite %s de R$ %.2f (alerta em %.0f%%)",
			res.ValorProjetado, res.PercentualProjetado, periodo, limite, cat.AlertaPercentual)
	}
	return res
}
