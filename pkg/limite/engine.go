package limite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/compras-gov/dispensa-guard/pkg/alerts"
	"github.com/compras-gov/dispensa-guard/pkg/model"
	"github.com/compras-gov/dispensa-guard/pkg/storage"
)

// Engine is the entry point for dispensation-limit tracking: usage
// aggregation, the validation gate, alert reconciliation and the dashboard.
type Engine struct {
	store     storage.Storage
	notifiers []alerts.Notifier
	logger    *slog.Logger
}

// NewEngine creates an engine with the given dependencies.
func NewEngine(store storage.Storage, notifiers []alerts.Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		notifiers: notifiers,
		logger:    logger,
	}
}

// NovaDispensa is the input for Registrar.
type NovaDispensa struct {
	CategoriaID string           `json:"categoria_id"`
	Numero      string           `json:"numero,omitempty"`
	Objeto      string           `json:"objeto"`
	Valor       float64          `json:"valor"`
	Periodo     model.Periodo    `json:"periodo"`
	Referencia  model.Referencia `json:"referencia"`
	// Forcar persists the record even when the gate blocks it. The next
	// reconciliation still raises the matching alert.
	Forcar bool `json:"forcar,omitempty"`
}

// ComputeUsage totals valor over ativa dispensations in one bucket. Always
// computed fresh: cancellation changes the result retroactively.
func (e *Engine) ComputeUsage(ctx context.Context, categoriaID string, periodo model.Periodo, ref model.Referencia) (float64, error) {
	if err := model.ValidarReferencia(periodo, ref); err != nil {
		return 0, err
	}
	return e.store.SumDispensasAtivas(ctx, categoriaID, periodo, ref)
}

// AvaliarCategoria evaluates one bucket of a category against its thresholds.
func (e *Engine) AvaliarCategoria(ctx context.Context, categoriaID string, periodo model.Periodo, ref model.Referencia) (*Avaliacao, error) {
	if err := model.ValidarReferencia(periodo, ref); err != nil {
		return nil, err
	}
	cat, err := e.store.GetCategoria(ctx, categoriaID)
	if err != nil {
		return nil, err
	}
	usado, err := e.store.SumDispensasAtivas(ctx, categoriaID, periodo, ref)
	if err != nil {
		return nil, err
	}
	av := Avaliar(cat, periodo, ref, usado)
	return &av, nil
}

// Validar answers whether a proposed dispensation can be created, without
// mutating anything. It is a pure read: persisted usage is unchanged.
func (e *Engine) Validar(ctx context.Context, categoriaID string, valor float64, periodo model.Periodo, ref model.Referencia) (*ResultadoValidacao, error) {
	if valor <= 0 {
		return nil, fmt.Errorf("valor proposto deve ser positivo, recebido %.2f", valor)
	}
	if err := model.ValidarReferencia(periodo, ref); err != nil {
		return nil, err
	}
	cat, err := e.store.GetCategoria(ctx, categoriaID)
	if err != nil {
		return nil, err
	}
	usado, err := e.store.SumDispensasAtivas(ctx, categoriaID, periodo, ref)
	if err != nil {
		return nil, err
	}
	res := avaliarProposta(cat, periodo, usado, valor)
	return &res, nil
}

// Registrar runs the gate, persists the dispensation and reconciles alerts
// inside a single transaction, so two concurrent creates on the same bucket
// cannot both pass validation. A blocked create returns
// *model.ErrValidacaoRejeitada unless Forcar is set.
func (e *Engine) Registrar(ctx context.Context, input NovaDispensa) (*model.Dispensa, error) {
	if input.Valor <= 0 {
		return nil, fmt.Errorf("valor deve ser positivo, recebido %.2f", input.Valor)
	}
	if err := model.ValidarReferencia(input.Periodo, input.Referencia); err != nil {
		return nil, err
	}

	var criada *model.Dispensa
	var cat *model.Categoria
	var novos []model.Alerta

	err := e.store.Tx(ctx, func(st storage.Storage) error {
		var err error
		cat, err = st.GetCategoria(ctx, input.CategoriaID)
		if err != nil {
			return err
		}
		if !cat.Ativo {
			return fmt.Errorf("categoria %q: %w", cat.Nome, model.ErrCategoriaInativa)
		}

		usado, err := st.SumDispensasAtivas(ctx, cat.ID, input.Periodo, input.Referencia)
		if err != nil {
			return err
		}

		res := avaliarProposta(cat, input.Periodo, usado, input.Valor)
		if !res.PodeGerar && !input.Forcar {
			return &model.ErrValidacaoRejeitada{
				CategoriaID:         cat.ID,
				Periodo:             input.Periodo,
				ValorProposto:       input.Valor,
				ValorExcedido:       res.ValorExcedido,
				PercentualProjetado: res.PercentualProjetado,
				BloqueioPercentual:  cat.BloqueioPercentual,
				Mensagem:            res.Mensagem,
			}
		}

		d := &model.Dispensa{
			CategoriaID:   cat.ID,
			Numero:        input.Numero,
			Objeto:        input.Objeto,
			Valor:         input.Valor,
			Periodo:       input.Periodo,
			ReferenciaAno: input.Referencia.Ano,
			ReferenciaMes: input.Referencia.Mes,
			Status:        model.DispensaAtiva,
		}
		if err := st.CreateDispensa(ctx, d); err != nil {
			return err
		}

		novos, err = e.reconcile(ctx, st, cat, input.Periodo, input.Referencia)
		if err != nil {
			return err
		}
		criada = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("dispensa registrada",
		"dispensa", criada.ID,
		"categoria", cat.Nome,
		"valor", criada.Valor,
		"periodo", criada.Periodo,
		"ano", criada.ReferenciaAno,
		"mes", criada.ReferenciaMes,
		"forcada", input.Forcar,
	)

	e.notificar(ctx, cat, novos)
	return criada, nil
}

// Cancelar moves a dispensation to the terminal cancelada state and
// reconciles alerts for its bucket. Existing alerts are never retracted;
// the usage drop only affects future evaluations.
func (e *Engine) Cancelar(ctx context.Context, id string) (*model.Dispensa, error) {
	var cancelada *model.Dispensa
	var cat *model.Categoria
	var novos []model.Alerta

	err := e.store.Tx(ctx, func(st storage.Storage) error {
		d, err := st.GetDispensa(ctx, id)
		if err != nil {
			return err
		}
		if err := st.CancelDispensa(ctx, id, time.Now().UTC()); err != nil {
			return err
		}

		cat, err = st.GetCategoria(ctx, d.CategoriaID)
		if err != nil {
			return err
		}

		ref := model.Referencia{Ano: d.ReferenciaAno, Mes: d.ReferenciaMes}
		novos, err = e.reconcile(ctx, st, cat, d.Periodo, ref)
		if err != nil {
			return err
		}

		cancelada, err = st.GetDispensa(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("dispensa cancelada",
		"dispensa", cancelada.ID,
		"categoria", cat.Nome,
		"valor", cancelada.Valor,
	)

	e.notificar(ctx, cat, novos)
	return cancelada, nil
}

// Reconciliar recomputes status for one bucket and persists any alert the
// current usage warrants. It is safe to call at any time; it is how the
// system self-corrects after a bypassed gate (direct inserts).
func (e *Engine) Reconciliar(ctx context.Context, categoriaID string, periodo model.Periodo, ref model.Referencia) ([]model.Alerta, error) {
	if err := model.ValidarReferencia(periodo, ref); err != nil {
		return nil, err
	}

	var cat *model.Categoria
	var novos []model.Alerta
	err := e.store.Tx(ctx, func(st storage.Storage) error {
		var err error
		cat, err = st.GetCategoria(ctx, categoriaID)
		if err != nil {
			return err
		}
		novos, err = e.reconcile(ctx, st, cat, periodo, ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.notificar(ctx, cat, novos)
	return novos, nil
}

// reconcile creates at most one unread alert per severity per bucket. A
// status below alerta creates nothing, and de-escalation never retracts
// previously created alerts.
func (e *Engine) reconcile(ctx context.Context, st storage.Storage, cat *model.Categoria, periodo model.Periodo, ref model.Referencia) ([]model.Alerta, error) {
	usado, err := st.SumDispensasAtivas(ctx, cat.ID, periodo, ref)
	if err != nil {
		return nil, err
	}

	av := Avaliar(cat, periodo, ref, usado)
	tipo, ok := TipoAlertaPara(av)
	if !ok {
		return nil, nil
	}

	_, err = st.FindAlertaNaoLido(ctx, cat.ID, periodo, ref, tipo)
	if err == nil {
		// unread alert of this severity already open for the bucket
		return nil, nil
	}
	if !errors.Is(err, model.ErrNaoEncontrado) {
		return nil, err
	}

	a := &model.Alerta{
		CategoriaID:     cat.ID,
		Tipo:            tipo,
		PercentualUsado: av.PercentualUsado,
		ValorUsado:      av.ValorUsado,
		LimiteAplicavel: av.Limite,
		Periodo:         periodo,
		ReferenciaAno:   ref.Ano,
		ReferenciaMes:   ref.Mes,
		Mensagem: fmt.Sprintf("Categoria %q atingiu %.1f%% do limite %s (R$ %.2f de R$ %.2f)",
			cat.Nome, av.PercentualUsado, periodo, av.ValorUsado, av.Limite),
	}
	if err := st.CreateAlerta(ctx, a); err != nil {
		return nil, err
	}

	e.logger.Warn("limite de dispensa cruzado",
		"categoria", cat.Nome,
		"tipo", tipo,
		"percentual", av.PercentualUsado,
		"valor_usado", av.ValorUsado,
		"limite", av.Limite,
		"periodo", periodo,
	)

	return []model.Alerta{*a}, nil
}

// notificar fans new alerts out to the configured notifiers. Delivery is
// best-effort and runs after the transaction committed.
func (e *Engine) notificar(ctx context.Context, cat *model.Categoria, novos []model.Alerta) {
	for _, a := range novos {
		n := alerts.Notificacao{
			Tipo:            a.Tipo,
			CategoriaID:     a.CategoriaID,
			CategoriaNome:   cat.Nome,
			Periodo:         a.Periodo,
			ReferenciaAno:   a.ReferenciaAno,
			ReferenciaMes:   a.ReferenciaMes,
			PercentualUsado: a.PercentualUsado,
			ValorUsado:      a.ValorUsado,
			LimiteAplicavel: a.LimiteAplicavel,
			Mensagem:        a.Mensagem,
		}
		for _, notifier := range e.notifiers {
			if err := notifier.Send(ctx, n); err != nil {
				e.logger.Error("send notification failed",
					"notifier", notifier.Name(),
					"categoria", cat.Nome,
					"error", err,
				)
			}
		}
	}
}
