package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Produtos
// ============================================================

const productColumns = "id, codigo, nome, categoria, quantidade, estoque_minimo, preco_custo, preco_venda"

var productUpdatable = []column{
	{"codigo", kindText},
	{"nome", kindText},
	{"categoria", kindText},
	{"quantidade", kindInt},
	{"estoque_minimo", kindInt},
	{"preco_custo", kindReal},
	{"preco_venda", kindReal},
}

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Codigo, &p.Nome, &p.Categoria, &p.Quantidade, &p.EstoqueMinimo, &p.PrecoCusto, &p.PrecoVenda)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.ListProducts")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, "SELECT "+productColumns+" FROM produtos ORDER BY id DESC LIMIT ?", clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list produtos: %w", err)
	}
	defer rows.Close()

	out := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan produto: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("produto.id", id))

	p, err := scanProduct(s.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM produtos WHERE id = ?", id))
	if err != nil {
		return nil, notFoundOr(err, "produto", id, "Produto não encontrado")
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) (int64, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.CreateProduct")
	defer span.End()

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO produtos (codigo, nome, categoria, quantidade, estoque_minimo, preco_custo, preco_venda)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.Codigo, p.Nome, p.Categoria, p.Quantidade, p.EstoqueMinimo, p.PrecoCusto, p.PrecoVenda,
		)
		if err != nil {
			return mapConstraintError(err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int64, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "SQLStore.UpdateProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("produto.id", id))

	return s.updateRow(ctx, "produtos", id, updates, productUpdatable)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "SQLStore.DeleteProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("produto.id", id))

	return s.deleteRow(ctx, "produtos", id)
}

// ============================================================
// Totais
// ============================================================

// Totals aggregates over the whole store. Revenue counts delivered orders only.
func (s *Store) Totals(ctx context.Context) (domain.SnapshotTotals, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.Totals")
	defer span.End()

	var t domain.SnapshotTotals
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clientes").Scan(&t.TotalClientes); err != nil {
		return t, fmt.Errorf("count clientes: %w", err)
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'entregue' THEN valor_orcamento ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'entregue' THEN 1 ELSE 0 END), 0)
		FROM ordens_servico`).Scan(&t.TotalOS, &t.FaturamentoTotal, &t.OSEntregues)
	if err != nil {
		return t, fmt.Errorf("aggregate ordens: %w", err)
	}
	return t, nil
}
