package main

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/oficina-assistant-go/internal/config"
	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/observability"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/sqlstore"
	"github.com/boddenberg/oficina-assistant-go/internal/service"

	"github.com/spf13/cobra"
)

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and list the applied versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = config.LoadDotEnv(".env")
		cfg := config.Load()
		logger := observability.NewLogger(cfg.LogLevel)
		defer logger.Sync()

		// Open runs the migrations.
		store, err := sqlstore.Open(cfg.DatabasePath, logger)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		versions, err := store.AppliedMigrations(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d migrações aplicadas %v\n", cfg.DatabasePath, len(versions), versions)
		return nil
	},
}

// --- usuario ---

var usuarioCmd = &cobra.Command{
	Use:   "usuario",
	Short: "Manage operator accounts",
}

var usuarioCriarCmd = &cobra.Command{
	Use:   "criar",
	Short: "Create an operator account",
	Long: `Create an operator account used by POST /auth/login.

Example:
  oficina usuario criar --usuario admin --senha s3nh4forte --nome "Administrador"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		usuario, _ := cmd.Flags().GetString("usuario")
		nome, _ := cmd.Flags().GetString("nome")
		senha, _ := cmd.Flags().GetString("senha")

		_ = config.LoadDotEnv(".env")
		cfg := config.Load()
		logger := observability.NewLogger(cfg.LogLevel)
		defer logger.Sync()

		store, err := sqlstore.Open(cfg.DatabasePath, logger)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()

		auth := service.NewAuthService(store, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
		info, err := auth.CreateUser(cmd.Context(), &domain.CreateUserRequest{
			Usuario: usuario,
			Nome:    nome,
			Senha:   senha,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "usuário %q criado (id %d)\n", info.Usuario, info.ID)
		return nil
	},
}

func init() {
	usuarioCriarCmd.Flags().String("usuario", "", "login do operador")
	usuarioCriarCmd.Flags().String("nome", "", "nome de exibição (padrão: o login)")
	usuarioCriarCmd.Flags().String("senha", "", "senha (mínimo 6 caracteres)")
	_ = usuarioCriarCmd.MarkFlagRequired("usuario")
	_ = usuarioCriarCmd.MarkFlagRequired("senha")
	usuarioCmd.AddCommand(usuarioCriarCmd)
}
