package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Soluções
// ============================================================

const solutionSelect = `
	SELECT s.id, s.os_id, s.numero, s.data, s.idcliente, c.nome, s.descricao_problema, s.marca,
	       s.tipo, s.data_abertura, s.data_fechamento, s.diagnostico_ia, s.solucoes_ia,
	       s.criado_em, s.atualizado_em
	FROM solucoes s
	LEFT JOIN clientes c ON c.id = s.idcliente`

func scanSolution(row interface{ Scan(...any) error }) (domain.Solution, error) {
	var (
		sol                                domain.Solution
		data, abertura, criado, atualizado string
		nome, fechamento, diag, sols       sql.NullString
	)
	if err := row.Scan(&sol.ID, &sol.OSID, &sol.Numero, &data, &sol.IDCliente, &nome, &sol.DescricaoProblema,
		&sol.Marca, &sol.Tipo, &abertura, &fechamento, &diag, &sols, &criado, &atualizado); err != nil {
		return sol, err
	}
	sol.Data, _ = domain.ParseDate(data)
	sol.DataAbertura, _ = domain.ParseDate(abertura)
	if fechamento.Valid {
		if d, err := domain.ParseDate(fechamento.String); err == nil {
			sol.DataFechamento = &d
		}
	}
	sol.NomeCliente = nullablePtr(nome)
	sol.DiagnosticoIA = nullablePtr(diag)
	sol.SolucoesIA = nullablePtr(sols)
	sol.CriadoEm = parseTime(criado)
	sol.AtualizadoEm = parseTime(atualizado)
	return sol, nil
}

func nullablePtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func textArg(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func dateArg(d *domain.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func (s *Store) querySolutions(ctx context.Context, query string, args ...any) ([]domain.Solution, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query solucoes: %w", err)
	}
	defer rows.Close()

	out := []domain.Solution{}
	for rows.Next() {
		sol, err := scanSolution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan solucao: %w", err)
		}
		out = append(out, sol)
	}
	return out, rows.Err()
}

func (s *Store) ListSolutions(ctx context.Context) ([]domain.Solution, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.ListSolutions")
	defer span.End()

	return s.querySolutions(ctx, solutionSelect+" ORDER BY s.id ASC")
}

func (s *Store) ListSolutionsByOS(ctx context.Context, osID int64) ([]domain.Solution, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.ListSolutionsByOS")
	defer span.End()
	span.SetAttributes(attribute.Int64("os.id", osID))

	return s.querySolutions(ctx, solutionSelect+" WHERE s.os_id = ? ORDER BY s.id ASC", osID)
}

func (s *Store) GetSolution(ctx context.Context, id int64) (*domain.Solution, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.GetSolution")
	defer span.End()
	span.SetAttributes(attribute.Int64("solucao.id", id))

	sol, err := scanSolution(s.db.QueryRowContext(ctx, solutionSelect+" WHERE s.id = ?", id))
	if err != nil {
		return nil, notFoundOr(err, "solução", id, "Solução não encontrada")
	}
	return &sol, nil
}

func (s *Store) CreateSolution(ctx context.Context, sol *domain.Solution) (int64, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.CreateSolution")
	defer span.End()
	span.SetAttributes(attribute.Int64("os.id", sol.OSID))

	now := s.now()
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO solucoes (os_id, numero, data, idcliente, descricao_problema, marca, tipo,
			                      data_abertura, data_fechamento, diagnostico_ia, solucoes_ia, criado_em, atualizado_em)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sol.OSID, sol.Numero, sol.Data.String(), sol.IDCliente, sol.DescricaoProblema, sol.Marca, sol.Tipo,
			sol.DataAbertura.String(), dateArg(sol.DataFechamento), textArg(sol.DiagnosticoIA), textArg(sol.SolucoesIA),
			formatTime(now), formatTime(now),
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
	sol.ID = id
	sol.CriadoEm, sol.AtualizadoEm = now, now
	return id, nil
}

// UpdateSolution applies the non-nil fields of in and bumps atualizado_em.
func (s *Store) UpdateSolution(ctx context.Context, id int64, in *domain.SolutionInput) error {
	ctx, span := tracer.Start(ctx, "SQLStore.UpdateSolution")
	defer span.End()
	span.SetAttributes(attribute.Int64("solucao.id", id))

	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if in.OSID != nil {
		add("os_id", *in.OSID)
	}
	if in.IDCliente != nil {
		add("idcliente", *in.IDCliente)
	}
	if in.Numero != nil {
		add("numero", *in.Numero)
	}
	if in.Data != nil {
		add("data", in.Data.String())
	}
	if in.DescricaoProblema != nil {
		add("descricao_problema", *in.DescricaoProblema)
	}
	if in.Marca != nil {
		add("marca", *in.Marca)
	}
	if in.Tipo != nil {
		add("tipo", *in.Tipo)
	}
	if in.DataAbertura != nil {
		add("data_abertura", in.DataAbertura.String())
	}
	if in.DataFechamento != nil {
		add("data_fechamento", dateArg(in.DataFechamento))
	}
	if in.DiagnosticoIA != nil {
		add("diagnostico_ia", *in.DiagnosticoIA)
	}
	if in.SolucoesIA != nil {
		add("solucoes_ia", *in.SolucoesIA)
	}
	add("atualizado_em", formatTime(s.now()))
	args = append(args, id)

	query := "UPDATE solucoes SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return mapConstraintError(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &domain.ErrNotFound{Resource: "solução", ID: id, Message: "Solução não encontrada"}
		}
		return nil
	})
}

func (s *Store) DeleteSolution(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "SQLStore.DeleteSolution")
	defer span.End()
	span.SetAttributes(attribute.Int64("solucao.id", id))

	err := s.deleteRow(ctx, "solucoes", id)
	if nf, ok := err.(*domain.ErrNotFound); ok {
		nf.Message = "Solução não encontrada"
	}
	return err
}
