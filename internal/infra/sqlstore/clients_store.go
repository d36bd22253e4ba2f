package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Clientes
// ============================================================

const clientColumns = "id, nome, cpf_cnpj, telefone, email, endereco, observacoes, criado_em"

var clientUpdatable = []column{
	{"nome", kindText},
	{"cpf_cnpj", kindText},
	{"telefone", kindText},
	{"email", kindText},
	{"endereco", kindText},
	{"observacoes", kindText},
}

func scanClient(row interface{ Scan(...any) error }) (domain.Client, error) {
	var c domain.Client
	var criado string
	if err := row.Scan(&c.ID, &c.Nome, &c.CPFCNPJ, &c.Telefone, &c.Email, &c.Endereco, &c.Observacoes, &criado); err != nil {
		return c, err
	}
	c.CriadoEm = parseTime(criado)
	return c, nil
}

func (s *Store) ListClients(ctx context.Context, limit int) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.ListClients")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, "SELECT "+clientColumns+" FROM clientes ORDER BY id DESC LIMIT ?", clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list clientes: %w", err)
	}
	defer rows.Close()

	out := []domain.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cliente: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.GetClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("cliente.id", id))

	c, err := scanClient(s.db.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM clientes WHERE id = ?", id))
	if err != nil {
		return nil, notFoundOr(err, "cliente", id, "Cliente não encontrado")
	}
	return &c, nil
}

func (s *Store) FindClientByDocument(ctx context.Context, digits string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.FindClientByDocument")
	defer span.End()

	if digits == "" {
		return nil, nil
	}
	c, err := scanClient(s.db.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM clientes WHERE cpf_cnpj = ?", digits))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cliente by document: %w", err)
	}
	return &c, nil
}

func (s *Store) CreateClient(ctx context.Context, c *domain.Client) (int64, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.CreateClient")
	defer span.End()

	if c.CriadoEm.IsZero() {
		c.CriadoEm = s.now()
	}
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO clientes (nome, cpf_cnpj, telefone, email, endereco, observacoes, criado_em)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.Nome, c.CPFCNPJ, c.Telefone, c.Email, c.Endereco, c.Observacoes, formatTime(c.CriadoEm),
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
	c.ID = id
	return id, nil
}

func (s *Store) UpdateClient(ctx context.Context, id int64, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "SQLStore.UpdateClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("cliente.id", id))

	return s.updateRow(ctx, "clientes", id, updates, clientUpdatable)
}

func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "SQLStore.DeleteClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("cliente.id", id))

	return s.deleteRow(ctx, "clientes", id)
}
