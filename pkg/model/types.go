package model

import (
	"fmt"
	"time"
)

// TipoCategoria classifies what a category covers.
type TipoCategoria string

const (
	TipoMaterial TipoCategoria = "material"
	TipoServico  TipoCategoria = "servico"
)

// Categoria groups dispensations under a pair of spending ceilings.
type Categoria struct {
	ID                   string        `json:"id" db:"id"`
	Nome                 string        `json:"nome" db:"nome"`
	Tipo                 TipoCategoria `json:"tipo" db:"tipo"`
	Descricao            string        `json:"descricao,omitempty" db:"descricao"`
	LimiteDispensaAnual  float64       `json:"limite_dispensa_anual" db:"limite_dispensa_anual"`
	LimiteDispensaMensal float64       `json:"limite_dispensa_mensal" db:"limite_dispensa_mensal"`
	AlertaPercentual     float64       `json:"alerta_percentual" db:"alerta_percentual"`
	BloqueioPercentual   float64       `json:"bloqueio_percentual" db:"bloqueio_percentual"`
	Ativo                bool          `json:"ativo" db:"ativo"`
	CriadaEm             time.Time     `json:"criada_em" db:"criada_em"`
	AtualizadaEm         time.Time     `json:"atualizada_em" db:"atualizada_em"`
}

// Limite returns the ceiling for the given period. Zero means no ceiling
// is configured for that bucket.
func (c *Categoria) Limite(periodo Periodo) float64 {
	if periodo == PeriodoMensal {
		return c.LimiteDispensaMensal
	}
	return c.LimiteDispensaAnual
}

// Validar checks the category invariants enforced on every write: a known
// classification, percentages within 0-100 and alerta at or below bloqueio.
func (c *Categoria) Validar() error {
	if c.Nome == "" {
		return fmt.Errorf("categoria sem nome")
	}
	if c.Tipo != TipoMaterial && c.Tipo != TipoServico {
		return fmt.Errorf("tipo %q invalido", c.Tipo)
	}
	if c.LimiteDispensaAnual < 0 || c.LimiteDispensaMensal < 0 {
		return fmt.Errorf("limites nao podem ser negativos")
	}
	if c.AlertaPercentual < 0 || c.AlertaPercentual > 100 {
		return fmt.Errorf("alerta_percentual %.1f fora de 0-100", c.AlertaPercentual)
	}
	if c.BloqueioPercentual < 0 || c.BloqueioPercentual > 100 {
		return fmt.Errorf("bloqueio_percentual %.1f fora de 0-100", c.BloqueioPercentual)
	}
	if c.AlertaPercentual > c.BloqueioPercentual {
		return fmt.Errorf("alerta_percentual %.1f maior que bloqueio_percentual %.1f",
			c.AlertaPercentual, c.BloqueioPercentual)
	}
	return nil
}

// StatusDispensa tracks the lifecycle of a dispensation record.
type StatusDispensa string

const (
	DispensaAtiva     StatusDispensa = "ativa"
	DispensaCancelada StatusDispensa = "cancelada"
	DispensaSuspensa  StatusDispensa = "suspensa"
)

// Dispensa is a bidding-exemption purchase counted against a category ceiling.
// Valor is immutable after creation; corrections are cancel plus recreate.
type Dispensa struct {
	ID            string         `json:"id" db:"id"`
	CategoriaID   string         `json:"categoria_id" db:"categoria_id"`
	Numero        string         `json:"numero,omitempty" db:"numero"`
	Objeto        string         `json:"objeto" db:"objeto"`
	Valor         float64        `json:"valor" db:"valor"`
	Periodo       Periodo        `json:"periodo" db:"periodo"`
	ReferenciaAno int            `json:"referencia_ano" db:"referencia_ano"`
	ReferenciaMes int            `json:"referencia_mes,omitempty" db:"referencia_mes"`
	Status        StatusDispensa `json:"status" db:"status"`
	CriadaEm      time.Time      `json:"criada_em" db:"criada_em"`
	CanceladaEm   *time.Time     `json:"cancelada_em,omitempty" db:"cancelada_em"`
}

// TipoAlerta is the severity tier of a persisted alert.
type TipoAlerta string

const (
	AlertaWarning  TipoAlerta = "warning"  // alert threshold crossed
	AlertaError    TipoAlerta = "error"    // block threshold crossed
	AlertaCritical TipoAlerta = "critical" // ceiling itself reached or exceeded
)

// Alerta is an append-only record of a threshold crossing. The percentage,
// value and ceiling are snapshots taken at creation time, not live views.
type Alerta struct {
	ID              string     `json:"id" db:"id"`
	CategoriaID     string     `json:"categoria_id" db:"categoria_id"`
	Tipo            TipoAlerta `json:"tipo_alerta" db:"tipo_alerta"`
	PercentualUsado float64    `json:"percentual_usado" db:"percentual_usado"`
	ValorUsado      float64    `json:"valor_usado" db:"valor_usado"`
	LimiteAplicavel float64    `json:"limite_aplicavel" db:"limite_aplicavel"`
	Periodo         Periodo    `json:"periodo" db:"periodo"`
	ReferenciaAno   int        `json:"referencia_ano" db:"referencia_ano"`
	ReferenciaMes   int        `json:"referencia_mes,omitempty" db:"referencia_mes"`
	Mensagem        string     `json:"mensagem" db:"mensagem"`
	Lida            bool       `json:"lida" db:"lida"`
	CriadoEm        time.Time  `json:"criado_em" db:"criado_em"`
}

// StatusLimite classifies a category bucket against its thresholds.
type StatusLimite string

const (
	LimiteNormal   StatusLimite = "normal"
	LimiteAlerta   StatusLimite = "alerta"
	LimiteBloqueio StatusLimite = "bloqueio"
)
