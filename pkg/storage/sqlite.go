package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/compras-gov/dispensa-guard/pkg/model"

	_ "modernc.org/sqlite"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
	q  querier
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, q: db}, nil
}

// Tx runs fn against a transactional view. SQLite serializes writers, so the
// validate-then-insert sequence inside fn cannot race another create on the
// same bucket. Calling Tx on a view that is already transactional just runs
// fn in the enclosing transaction.
func (s *SQLite) Tx(ctx context.Context, fn func(Storage) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	view := &SQLite{db: s.db, q: tx}
	if err := fn(view); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLite) SaveCategoria(ctx context.Context, cat *model.Categoria) error {
	if cat.ID == "" {
		cat.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if cat.CriadaEm.IsZero() {
		cat.CriadaEm = now
	}
	cat.AtualizadaEm = now

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO categorias (id, nome, tipo, descricao, limite_dispensa_anual, limite_dispensa_mensal,
		                         alerta_percentual, bloqueio_percentual, ativo, criada_em, atualizada_em)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   nome = excluded.nome,
		   tipo = excluded.tipo,
		   descricao = excluded.descricao,
		   limite_dispensa_anual = excluded.limite_dispensa_anual,
		   limite_dispensa_mensal = excluded.limite_dispensa_mensal,
		   alerta_percentual = excluded.alerta_percentual,
		   bloqueio_percentual = excluded.bloqueio_percentual,
		   ativo = excluded.ativo,
		   atualizada_em = excluded.atualizada_em`,
		cat.ID, cat.Nome, cat.Tipo, cat.Descricao,
		cat.LimiteDispensaAnual, cat.LimiteDispensaMensal,
		cat.AlertaPercentual, cat.BloqueioPercentual,
		cat.Ativo, cat.CriadaEm, cat.AtualizadaEm,
	)
	if err != nil {
		return fmt.Errorf("save categoria: %w", err)
	}
	return nil
}

const categoriaColumns = `id, nome, tipo, descricao, limite_dispensa_anual, limite_dispensa_mensal,
	alerta_percentual, bloqueio_percentual, ativo, criada_em, atualizada_em`

func scanCategoria(row interface{ Scan(...any) error }) (*model.Categoria, error) {
	var c model.Categoria
	err := row.Scan(&c.ID, &c.Nome, &c.Tipo, &c.Descricao,
		&c.LimiteDispensaAnual, &c.LimiteDispensaMensal,
		&c.AlertaPercentual, &c.BloqueioPercentual,
		&c.Ativo, &c.CriadaEm, &c.AtualizadaEm)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLite) GetCategoria(ctx context.Context, id string) (*model.Categoria, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+categoriaColumns+` FROM categorias WHERE id = ?`, id)
	cat, err := scanCategoria(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("categoria %q: %w", id, model.ErrNaoEncontrado)
	}
	if err != nil {
		return nil, fmt.Errorf("get categoria: %w", err)
	}
	return cat, nil
}

func (s *SQLite) ListCategorias(ctx context.Context, somenteAtivas bool) ([]model.Categoria, error) {
	query := `SELECT ` + categoriaColumns + ` FROM categorias`
	if somenteAtivas {
		query += ` WHERE ativo = 1`
	}
	query += ` ORDER BY nome`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categorias: %w", err)
	}
	defer rows.Close()

	var cats []model.Categoria
	for rows.Next() {
		c, err := scanCategoria(rows)
		if err != nil {
			return nil, fmt.Errorf("scan categoria row: %w", err)
		}
		cats = append(cats, *c)
	}
	return cats, rows.Err()
}

func (s *SQLite) DesativarCategoria(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE categorias SET ativo = 0, atualizada_em = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("desativar categoria: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("categoria %q: %w", id, model.ErrNaoEncontrado)
	}
	return nil
}

func (s *SQLite) CreateDispensa(ctx context.Context, d *model.Dispensa) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = model.DispensaAtiva
	}
	if d.CriadaEm.IsZero() {
		d.CriadaEm = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO dispensas (id, categoria_id, numero, objeto, valor, periodo,
		                        referencia_ano, referencia_mes, status, criada_em)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.CategoriaID, d.Numero, d.Objeto, d.Valor, d.Periodo,
		d.ReferenciaAno, d.ReferenciaMes, d.Status, d.CriadaEm,
	)
	if err != nil {
		return fmt.Errorf("insert dispensa: %w", err)
	}
	return nil
}

const dispensaColumns = `id, categoria_id, numero, objeto, valor, periodo,
	referencia_ano, referencia_mes, status, criada_em, cancelada_em`

func scanDispensa(row interface{ Scan(...any) error }) (*model.Dispensa, error) {
	var d model.Dispensa
	var cancelada sql.NullTime
	err := row.Scan(&d.ID, &d.CategoriaID, &d.Numero, &d.Objeto, &d.Valor, &d.Periodo,
		&d.ReferenciaAno, &d.ReferenciaMes, &d.Status, &d.CriadaEm, &cancelada)
	if err != nil {
		return nil, err
	}
	if cancelada.Valid {
		d.CanceladaEm = &cancelada.Time
	}
	return &d, nil
}

func (s *SQLite) GetDispensa(ctx context.Context, id string) (*model.Dispensa, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+dispensaColumns+` FROM dispensas WHERE id = ?`, id)
	d, err := scanDispensa(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dispensa %q: %w", id, model.ErrNaoEncontrado)
	}
	if err != nil {
		return nil, fmt.Errorf("get dispensa: %w", err)
	}
	return d, nil
}

func (s *SQLite) ListDispensas(ctx context.Context, filter DispensaFilter) ([]model.Dispensa, error) {
	query := `SELECT ` + dispensaColumns + ` FROM dispensas`
	where, args := buildDispensaWhere(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY criada_em DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dispensas: %w", err)
	}
	defer rows.Close()

	var list []model.Dispensa
	for rows.Next() {
		d, err := scanDispensa(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispensa row: %w", err)
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

func (s *SQLite) CancelDispensa(ctx context.Context, id string, quando time.Time) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE dispensas SET status = ?, cancelada_em = ?
		 WHERE id = ? AND status != ?`,
		model.DispensaCancelada, quando.UTC(), id, model.DispensaCancelada)
	if err != nil {
		return fmt.Errorf("cancel dispensa: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		if _, getErr := s.GetDispensa(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("dispensa %q: %w", id, model.ErrDispensaJaCancelada)
	}
	return nil
}

func (s *SQLite) SumDispensasAtivas(ctx context.Context, categoriaID string, periodo model.Periodo, ref model.Referencia) (float64, error) {
	var total float64
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(valor), 0) FROM dispensas
		 WHERE categoria_id = ? AND periodo = ? AND referencia_ano = ?
		   AND referencia_mes = ? AND status = ?`,
		categoriaID, periodo, ref.Ano, ref.Mes, model.DispensaAtiva,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum dispensas: %w", err)
	}
	return total, nil
}

func (s *SQLite) CreateAlerta(ctx context.Context, a *model.Alerta) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CriadoEm.IsZero() {
		a.CriadoEm = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO alertas (id, categoria_id, tipo_alerta, percentual_usado, valor_usado,
		                      limite_aplicavel, periodo, referencia_ano, referencia_mes,
		                      mensagem, lida, criado_em)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CategoriaID, a.Tipo, a.PercentualUsado, a.ValorUsado,
		a.LimiteAplicavel, a.Periodo, a.ReferenciaAno, a.ReferenciaMes,
		a.Mensagem, a.Lida, a.CriadoEm,
	)
	if err != nil {
		return fmt.Errorf("insert alerta: %w", err)
	}
	return nil
}

const alertaColumns = `id, categoria_id, tipo_alerta, percentual_usado, valor_usado,
	limite_aplicavel, periodo, referencia_ano, referencia_mes, mensagem, lida, criado_em`

func scanAlerta(row interface{ Scan(...any) error }) (*model.Alerta, error) {
	var a model.Alerta
	err := row.Scan(&a.ID, &a.CategoriaID, &a.Tipo, &a.PercentualUsado, &a.ValorUsado,
		&a.LimiteAplicavel, &a.Periodo, &a.ReferenciaAno, &a.ReferenciaMes,
		&a.Mensagem, &a.Lida, &a.CriadoEm)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLite) FindAlertaNaoLido(ctx context.Context, categoriaID string, periodo model.Periodo, ref model.Referencia, tipo model.TipoAlerta) (*model.Alerta, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+alertaColumns+` FROM alertas
		 WHERE categoria_id = ? AND periodo = ? AND referencia_ano = ?
		   AND referencia_mes = ? AND tipo_alerta = ? AND lida = 0`,
		categoriaID, periodo, ref.Ano, ref.Mes, tipo)
	a, err := scanAlerta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNaoEncontrado
	}
	if err != nil {
		return nil, fmt.Errorf("find alerta nao lido: %w", err)
	}
	return a, nil
}

func (s *SQLite) ListAlertas(ctx context.Context, filter AlertaFilter) ([]model.Alerta, error) {
	query := `SELECT ` + alertaColumns + ` FROM alertas`
	var conditions []string
	var args []any
	if filter.CategoriaID != "" {
		conditions = append(conditions, "categoria_id = ?")
		args = append(args, filter.CategoriaID)
	}
	if filter.Lida != nil {
		conditions = append(conditions, "lida = ?")
		args = append(args, *filter.Lida)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY criado_em DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alertas: %w", err)
	}
	defer rows.Close()

	var list []model.Alerta
	for rows.Next() {
		a, err := scanAlerta(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alerta row: %w", err)
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

func (s *SQLite) MarcarAlertaLido(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE alertas SET lida = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marcar alerta lido: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alerta %q: %w", id, model.ErrNaoEncontrado)
	}
	return nil
}

func (s *SQLite) CountAlertasNaoLidos(ctx context.Context) (int64, error) {
	var count int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alertas WHERE lida = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count alertas nao lidos: %w", err)
	}
	return count, nil
}

// Close releases the underlying database. It is a no-op on a transactional
// view.
func (s *SQLite) Close() error {
	if _, ok := s.q.(*sql.Tx); ok {
		return nil
	}
	return s.db.Close()
}

// buildDispensaWhere constructs a SQL WHERE clause from a DispensaFilter.
func buildDispensaWhere(filter DispensaFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.CategoriaID != "" {
		conditions = append(conditions, "categoria_id = ?")
		args = append(args, filter.CategoriaID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Periodo != "" {
		conditions = append(conditions, "periodo = ?")
		args = append(args, filter.Periodo)
	}
	if filter.Ano != 0 {
		conditions = append(conditions, "referencia_ano = ?")
		args = append(args, filter.Ano)
	}
	if filter.Mes != 0 {
		conditions = append(conditions, "referencia_mes = ?")
		args = append(args, filter.Mes)
	}

	return strings.Join(conditions, " AND "), args
}
