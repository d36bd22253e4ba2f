package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ============================================================
// Cadastro: clientes, ordens de serviço, produtos, soluções
// ============================================================

// Client is a repair-shop customer (table clientes).
type Client struct {
	ID          int64     `json:"id"`
	Nome        string    `json:"nome"`
	CPFCNPJ     string    `json:"cpf_cnpj"`
	Telefone    string    `json:"telefone"`
	Email       string    `json:"email"`
	Endereco    string    `json:"endereco"`
	Observacoes string    `json:"observacoes"`
	CriadoEm    time.Time `json:"criado_em"`
}

// OrderStatus is the lifecycle status of a service order. Any value may follow any other.
type OrderStatus string

const (
	StatusAguardando OrderStatus = "aguardando"
	StatusEmReparo   OrderStatus = "em_reparo"
	StatusPronto     OrderStatus = "pronto"
	StatusEntregue   OrderStatus = "entregue"
	StatusCancelado  OrderStatus = "cancelado"
)

// OrderStatuses lists every valid status in display order.
var OrderStatuses = []OrderStatus{StatusAguardando, StatusEmReparo, StatusPronto, StatusEntregue, StatusCancelado}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	for _, st := range OrderStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Label returns the human-readable status.
func (s OrderStatus) Label() string {
	switch s {
	case StatusAguardando:
		return "Aguardando"
	case StatusEmReparo:
		return "Em reparo"
	case StatusPronto:
		return "Pronto"
	case StatusEntregue:
		return "Entregue"
	case StatusCancelado:
		return "Cancelado"
	}
	return string(s)
}

// ServiceOrder is an OS (table ordens_servico).
type ServiceOrder struct {
	ID               int64       `json:"id"`
	Numero           string      `json:"numero"`
	ClienteID        int64       `json:"cliente_id"`
	ClienteNome      string      `json:"cliente_nome,omitempty"`
	TipoAparelho     string      `json:"tipo_aparelho"`
	MarcaModelo      string      `json:"marca_modelo"`
	ProblemaRelatado string      `json:"problema_relatado"`
	Status           OrderStatus `json:"status"`
	ValorOrcamento   float64     `json:"valor_orcamento"`
	CriadoEm         time.Time   `json:"criado_em"`
}

// FormatOrderNumber renders the canonical order number, e.g. 7 -> "#OS0007".
func FormatOrderNumber(id int64) string {
	return fmt.Sprintf("#OS%04d", id)
}

// Product is an inventory item (table produtos).
type Product struct {
	ID            int64   `json:"id"`
	Codigo        string  `json:"codigo"`
	Nome          string  `json:"nome"`
	Categoria     string  `json:"categoria"`
	Quantidade    int     `json:"quantidade"`
	EstoqueMinimo int     `json:"estoque_minimo"`
	PrecoCusto    float64 `json:"preco_custo"`
	PrecoVenda    float64 `json:"preco_venda"`
}

// LowStock reports whether the quantity is at or below the minimum threshold.
func (p Product) LowStock() bool {
	return p.Quantidade <= p.EstoqueMinimo
}

// Solution documents how an OS was solved (table solucoes). One per OS.
type Solution struct {
	ID                int64     `json:"id"`
	OSID              int64     `json:"os_id"`
	Numero            string    `json:"numero"`
	Data              Date      `json:"data"`
	IDCliente         int64     `json:"idcliente"`
	NomeCliente       *string   `json:"nome_cliente"`
	DescricaoProblema string    `json:"descricao_problema"`
	Marca             string    `json:"marca"`
	Tipo              string    `json:"tipo"`
	DataAbertura      Date      `json:"data_abertura"`
	DataFechamento    *Date     `json:"data_fechamento"`
	DiagnosticoIA     *string   `json:"diagnostico_ia"`
	SolucoesIA        *string   `json:"solucoes_ia"`
	CriadoEm          time.Time `json:"criado_em"`
	AtualizadoEm      time.Time `json:"atualizado_em"`
}

// SolutionInput carries the writable fields of a Solution. Nil means "not sent".
type SolutionInput struct {
	OSID              *int64  `json:"os_id"`
	Numero            *string `json:"numero"`
	Data              *Date   `json:"data"`
	IDCliente         *int64  `json:"idcliente"`
	DescricaoProblema *string `json:"descricao_problema"`
	Marca             *string `json:"marca"`
	Tipo              *string `json:"tipo"`
	DataAbertura      *Date   `json:"data_abertura"`
	DataFechamento    *Date   `json:"data_fechamento"`
	DiagnosticoIA     *string `json:"diagnostico_ia"`
	SolucoesIA        *string `json:"solucoes_ia"`
}

// User is an operator allowed to log in (table usuarios).
type User struct {
	ID        int64     `json:"id"`
	Usuario   string    `json:"usuario"`
	Nome      string    `json:"nome"`
	SenhaHash string    `json:"-"`
	CriadoEm  time.Time `json:"criado_em"`
}

// ============================================================
// Date: calendar date serialized as YYYY-MM-DD
// ============================================================

// DateLayout is the wire format of Date.
const DateLayout = "2006-01-02"

// Date is a calendar date. It accepts YYYY-MM-DD or RFC3339 on input.
type Date struct {
	time.Time
}

// ParseDate parses YYYY-MM-DD or RFC3339.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("data inválida %q: use AAAA-MM-DD", s)
	}
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("data deve ser texto: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
