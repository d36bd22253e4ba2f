package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Ordens de serviço
// ============================================================

const orderSelect = `
	SELECT o.id, COALESCE(o.numero, ''), o.cliente_id, COALESCE(c.nome, ''), o.tipo_aparelho,
	       o.marca_modelo, o.problema_relatado, o.status, o.valor_orcamento, o.criado_em
	FROM ordens_servico o
	LEFT JOIN clientes c ON c.id = o.cliente_id`

var orderUpdatable = []column{
	{"tipo_aparelho", kindText},
	{"marca_modelo", kindText},
	{"problema_relatado", kindText},
	{"status", kindText},
	{"valor_orcamento", kindReal},
}

func scanOrder(row interface{ Scan(...any) error }) (domain.ServiceOrder, error) {
	var o domain.ServiceOrder
	var status, criado string
	if err := row.Scan(&o.ID, &o.Numero, &o.ClienteID, &o.ClienteNome, &o.TipoAparelho,
		&o.MarcaModelo, &o.ProblemaRelatado, &status, &o.ValorOrcamento, &criado); err != nil {
		return o, err
	}
	o.Status = domain.OrderStatus(status)
	o.CriadoEm = parseTime(criado)
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, limit int) ([]domain.ServiceOrder, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.ListOrders")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, orderSelect+" ORDER BY o.id DESC LIMIT ?", clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list ordens: %w", err)
	}
	defer rows.Close()

	out := []domain.ServiceOrder{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ordem: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*domain.ServiceOrder, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("os.id", id))

	o, err := scanOrder(s.db.QueryRowContext(ctx, orderSelect+" WHERE o.id = ?", id))
	if err != nil {
		return nil, notFoundOr(err, "ordem de serviço", id, "Ordem de serviço não encontrada")
	}
	return &o, nil
}

// CreateOrder inserts the order and assigns its #OS number from the generated id.
func (s *Store) CreateOrder(ctx context.Context, o *domain.ServiceOrder) (int64, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.CreateOrder")
	defer span.End()

	if o.Status == "" {
		o.Status = domain.StatusAguardando
	}
	if !o.Status.Valid() {
		return 0, &domain.ErrValidation{Field: "status", Message: "Status inválido: " + string(o.Status)}
	}
	if o.CriadoEm.IsZero() {
		o.CriadoEm = s.now()
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO ordens_servico (cliente_id, tipo_aparelho, marca_modelo, problema_relatado, status, valor_orcamento, criado_em)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.ClienteID, o.TipoAparelho, o.MarcaModelo, o.ProblemaRelatado, string(o.Status), o.ValorOrcamento, formatTime(o.CriadoEm),
		)
		if err != nil {
			return mapConstraintError(err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE ordens_servico SET numero = ? WHERE id = ?", domain.FormatOrderNumber(id), id)
		return mapConstraintError(err)
	})
	if err != nil {
		return 0, err
	}
	o.ID = id
	o.Numero = domain.FormatOrderNumber(id)
	return id, nil
}

func (s *Store) UpdateOrder(ctx context.Context, id int64, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "SQLStore.UpdateOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("os.id", id))

	if st, ok := updates["status"]; ok {
		status := domain.OrderStatus(fmt.Sprint(st))
		if !status.Valid() {
			return &domain.ErrValidation{Field: "status", Message: "Status inválido: " + string(status)}
		}
		updates["status"] = string(status)
	}
	return s.updateRow(ctx, "ordens_servico", id, updates, orderUpdatable)
}

func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "SQLStore.DeleteOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("os.id", id))

	return s.deleteRow(ctx, "ordens_servico", id)
}
