package model

import (
	"errors"
	"fmt"
)

// ErrNaoEncontrado signals an unknown category, dispensation or alert id.
var ErrNaoEncontrado = errors.New("registro nao encontrado")

// ErrCategoriaInativa signals a write against a soft-disabled category.
var ErrCategoriaInativa = errors.New("categoria desativada")

// ErrDispensaJaCancelada signals a cancel on an already-terminal record.
var ErrDispensaJaCancelada = errors.New("dispensa ja cancelada")

// ErrValidacaoRejeitada is returned when the validation gate blocks a create.
// It is an expected business outcome, not a system fault, and carries the
// full gate result so callers can surface it.
type ErrValidacaoRejeitada struct {
	CategoriaID         string  `json:"categoria_id"`
	Periodo             Periodo `json:"periodo"`
	ValorProposto       float64 `json:"valor_proposto"`
	ValorExcedido       float64 `json:"valor_excedido"`
	PercentualProjetado float64 `json:"percentual_projetado"`
	BloqueioPercentual  float64 `json:"bloqueio_percentual"`
	Mensagem            string  `json:"mensagem"`
}

func (e *ErrValidacaoRejeitada) Error() string {
	return fmt.Sprintf("dispensa bloqueada: %s", e.Mensagem)
}
