package assistant

import (
	"strings"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
)

// Payload kinds returned in ConsultaData.Tipo.
const (
	PayloadOS           = "os"
	PayloadCliente      = "cliente"
	PayloadOrdens       = "ordens_status"
	PayloadFinanceiro   = "financeiro"
	PayloadEstoqueBaixo = "estoque_baixo"
)

// ExtractData pulls a structured payload out of a query so the frontend can
// render a widget next to the free-text answer. It returns nil when nothing
// specific was asked about.
func ExtractData(text string, snap *domain.ContextSnapshot) *domain.ConsultaData {
	if snap == nil {
		return nil
	}
	u := newUtterance(text)

	if numero, ok := extractOrderNumber(u.folded); ok {
		for i := range snap.Ordens {
			if strings.EqualFold(snap.Ordens[i].Numero, numero) {
				o := snap.Ordens[i]
				return &domain.ConsultaData{Tipo: PayloadOS, OS: &o}
			}
		}
	}

	onlyClients := func(t domain.EntityType) bool { return t == domain.EntityCliente }
	m := byExactName(u, snap, onlyClients)
	if m == nil {
		m = fuzzyClient(u, snap)
	}
	if m != nil {
		return &domain.ConsultaData{Tipo: PayloadCliente, Cliente: m.Client, Ordens: snap.OrdersByClient(m.ID)}
	}

	if st, ok := detectStatus(u); ok {
		ordens := []domain.ServiceOrder{}
		for _, o := range snap.Ordens {
			if o.Status == st {
				ordens = append(ordens, o)
			}
		}
		return &domain.ConsultaData{Tipo: PayloadOrdens, Status: st, Ordens: ordens}
	}

	if financeCategory.in(u) {
		totals := snap.Totais
		return &domain.ConsultaData{Tipo: PayloadFinanceiro, Financeiro: &totals}
	}

	if lowStockPhrases.in(u) {
		produtos := []domain.Product{}
		for _, p := range snap.Produtos {
			if p.LowStock() {
				produtos = append(produtos, p)
			}
		}
		return &domain.ConsultaData{Tipo: PayloadEstoqueBaixo, Produtos: produtos}
	}
	return nil
}
