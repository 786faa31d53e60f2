package alerts

import (
	"context"

	"github.com/compras-gov/dispensa-guard/pkg/model"
)

// Notificacao is the payload delivered to external systems when a limit
// alert is persisted. Values are snapshots, matching the stored alert.
type Notificacao struct {
	Tipo            model.TipoAlerta `json:"tipo_alerta"`
	CategoriaID     string           `json:"categoria_id"`
	CategoriaNome   string           `json:"categoria_nome"`
	Periodo         model.Periodo    `json:"periodo"`
	ReferenciaAno   int              `json:"referencia_ano"`
	ReferenciaMes   int              `json:"referencia_mes,omitempty"`
	PercentualUsado float64          `json:"percentual_usado"`
	ValorUsado      float64          `json:"valor_usado"`
	LimiteAplicavel float64          `json:"limite_aplicavel"`
	Mensagem        string           `json:"mensagem"`
}

// Notifier sends limit notifications to external systems. Delivery is
// best-effort; the persisted alert record is the source of truth.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers a notification. Implementations must be safe for
	// concurrent use.
	Send(ctx context.Context, n Notificacao) error
}
