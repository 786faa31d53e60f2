package storage

import (
	"context"
	"time"

	"github.com/compras-gov/dispensa-guard/pkg/model"
)

// DispensaFilter controls which dispensations a listing returns.
type DispensaFilter struct {
	CategoriaID string
	Status      model.StatusDispensa
	Periodo     model.Periodo
	Ano         int
	Mes         int
	Limit       int
}

// AlertaFilter controls which alerts a listing returns. Lida is a tristate:
// nil means both read and unread.
type AlertaFilter struct {
	CategoriaID string
	Lida        *bool
	Limit       int
}

// Storage is the persistence collaborator for categories, dispensations
// and alerts.
type Storage interface {
	// SaveCategoria creates or updates a category by id.
	SaveCategoria(ctx context.Context, cat *model.Categoria) error

	// GetCategoria retrieves a category by id.
	GetCategoria(ctx context.Context, id string) (*model.Categoria, error)

	// ListCategorias returns categories, optionally only enabled ones.
	ListCategorias(ctx context.Context, somenteAtivas bool) ([]model.Categoria, error)

	// DesativarCategoria soft-disables a category. Dispensations keep
	// referencing it; it is never hard-deleted.
	DesativarCategoria(ctx context.Context, id string) error

	// CreateDispensa persists a new dispensation record.
	CreateDispensa(ctx context.Context, d *model.Dispensa) error

	// GetDispensa retrieves a dispensation by id.
	GetDispensa(ctx context.Context, id string) (*model.Dispensa, error)

	// ListDispensas returns dispensations matching the filter, newest first.
	ListDispensas(ctx context.Context, filter DispensaFilter) ([]model.Dispensa, error)

	// CancelDispensa moves an active or suspended record to the terminal
	// cancelada state.
	CancelDispensa(ctx context.Context, id string, quando time.Time) error

	// SumDispensasAtivas totals valor over ativa records in one bucket.
	SumDispensasAtivas(ctx context.Context, categoriaID string, periodo model.Periodo, ref model.Referencia) (float64, error)

	// CreateAlerta persists a new alert snapshot.
	CreateAlerta(ctx context.Context, a *model.Alerta) error

	// FindAlertaNaoLido returns the unread alert of the given severity for
	// one bucket, or ErrNaoEncontrado.
	FindAlertaNaoLido(ctx context.Context, categoriaID string, periodo model.Periodo, ref model.Referencia, tipo model.TipoAlerta) (*model.Alerta, error)

	// ListAlertas returns alerts matching the filter, newest first.
	ListAlertas(ctx context.Context, filter AlertaFilter) ([]model.Alerta, error)

	// MarcarAlertaLido flips the read flag on an alert.
	MarcarAlertaLido(ctx context.Context, id string) error

	// CountAlertasNaoLidos counts unread alerts across all categories.
	CountAlertasNaoLidos(ctx context.Context) (int64, error)

	// Tx runs fn against a transactional view of the store. The create and
	// cancel paths use it so the read-validate-write sequence cannot
	// interleave with a concurrent writer on the same bucket.
	Tx(ctx context.Context, fn func(Storage) error) error

	// Close releases resources.
	Close() error
}
