package model

import (
	"fmt"
	"time"
)

// Periodo selects which ceiling a dispensation counts against. Annual and
// monthly buckets are parallel, not nested: a monthly record never counts
// toward the annual ceiling.
type Periodo string

const (
	PeriodoAnual  Periodo = "anual"
	PeriodoMensal Periodo = "mensal"
)

// Valido reports whether p is a known period.
func (p Periodo) Valido() bool {
	return p == PeriodoAnual || p == PeriodoMensal
}

// Referencia identifies one aggregation bucket of a period.
type Referencia struct {
	Ano int `json:"ano"`
	Mes int `json:"mes,omitempty"` // 0 when the period is annual
}

// ReferenciaAtual returns the bucket the current date falls in.
func ReferenciaAtual(periodo Periodo) Referencia {
	now := time.Now().UTC()
	ref := Referencia{Ano: now.Year()}
	if periodo == PeriodoMensal {
		ref.Mes = int(now.Month())
	}
	return ref
}

// ValidarReferencia checks that a reference is coherent with its period.
func ValidarReferencia(periodo Periodo, ref Referencia) error {
	if !periodo.Valido() {
		return fmt.Errorf("periodo %q invalido", periodo)
	}
	if ref.Ano < 2000 || ref.Ano > 2100 {
		return fmt.Errorf("referencia_ano %d fora do intervalo", ref.Ano)
	}
	switch periodo {
	case PeriodoMensal:
		if ref.Mes < 1 || ref.Mes > 12 {
			return fmt.Errorf("referencia_mes %d invalido para periodo mensal", ref.Mes)
		}
	case PeriodoAnual:
		if ref.Mes != 0 {
			return fmt.Errorf("referencia_mes nao se aplica a periodo anual")
		}
	}
	return nil
}

// PeriodoBounds returns the half-open time range covered by a bucket,
// used by listing endpoints that filter by creation date.
func PeriodoBounds(periodo Periodo, ref Referencia) (start, end time.Time) {
	if periodo == PeriodoMensal {
		start = time.Date(ref.Ano, time.Month(ref.Mes), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
		return start, end
	}
	start = time.Date(ref.Ano, time.January, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(1, 0, 0)
	return start, end
}
