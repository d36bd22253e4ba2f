package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
)

// ============================================================
// Usuários
// ============================================================

func (s *Store) GetUserByUsername(ctx context.Context, usuario string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.GetUserByUsername")
	defer span.End()

	var u domain.User
	var criado string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, usuario, nome, senha_hash, criado_em FROM usuarios WHERE usuario = ?", usuario,
	).Scan(&u.ID, &u.Usuario, &u.Nome, &u.SenhaHash, &criado)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get usuario: %w", err)
	}
	u.CriadoEm = parseTime(criado)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) (int64, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.CreateUser")
	defer span.End()

	if u.CriadoEm.IsZero() {
		u.CriadoEm = s.now()
	}
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO usuarios (usuario, nome, senha_hash, criado_em) VALUES (?, ?, ?, ?)",
			u.Usuario, u.Nome, u.SenhaHash, formatTime(u.CriadoEm),
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
	u.ID = id
	return id, nil
}
