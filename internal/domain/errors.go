package domain

import (
	"errors"
	"fmt"
)

// Error types shared by the store, the services and the HTTP layer.
// Error() is user-facing PT-BR text: the handler copies it into "erro".

// notFoundMessages maps a table or resource name to its PT-BR message.
var notFoundMessages = map[string]string{
	"clientes":         "Cliente não encontrado",
	"cliente":          "Cliente não encontrado",
	"ordens_servico":   "Ordem de serviço não encontrada",
	"ordem de serviço": "Ordem de serviço não encontrada",
	"produtos":         "Produto não encontrado",
	"produto":          "Produto não encontrado",
	"solucoes":         "Solução não encontrada",
	"solução":          "Solução não encontrada",
}

// ErrNotFound indicates a row does not exist. Resource is a table or
// resource name; Message overrides the derived text.
type ErrNotFound struct {
	Resource string
	ID       int64
	Message  string
}

func (e *ErrNotFound) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if msg, ok := notFoundMessages[e.Resource]; ok {
		return msg
	}
	return fmt.Sprintf("Registro não encontrado: %s %d", e.Resource, e.ID)
}

// IsNotFound reports whether err wraps an *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// ErrExternalService wraps a failed call to an upstream API (the LLM).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("falha no serviço externo %s: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("tempo esgotado: %s", e.Operation)
}

// ErrCircuitOpen is returned while the breaker for Service is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("serviço %s temporariamente indisponível", e.Service)
}

// ErrValidation indicates bad input. Detail, when set, is returned in the
// "mensagem" field.
type ErrValidation struct {
	Field   string
	Message string
	Detail  string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Campo inválido: %s", e.Field)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Não autorizado"
}

// ErrConflict indicates a unique constraint was hit (duplicate CPF/CNPJ, product code,
// a second solution for the same OS).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}
