package assistant

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
)

// Resolution stages, reported in Match.Stage.
const (
	StageOrderNumber  = "numero_os"
	StageProductCode  = "codigo_produto"
	StageFuzzyProduct = "produto_aproximado"
	StageFuzzyClient  = "cliente_aproximado"
	StageOrderContext = "os_contexto"
	StageExactName    = "nome_exato"
)

const (
	fuzzyMinScore = 3.0
	orderMinScore = 2.0
)

// Match is a single record resolved from free text. Exactly one of Client,
// Order or Product is set, matching Tipo.
type Match struct {
	Tipo    domain.EntityType
	ID      int64
	Nome    string
	Score   float64
	Stage   string
	Client  *domain.Client
	Order   *domain.ServiceOrder
	Product *domain.Product
}

// Ref returns the reference stored in the conversation state.
func (m *Match) Ref() *domain.EntityRef {
	return &domain.EntityRef{Tipo: m.Tipo, ID: m.ID, Descricao: m.Describe()}
}

// Describe renders the record the way confirmation prompts name it.
func (m *Match) Describe() string {
	switch {
	case m.Client != nil:
		d := "cliente " + m.Client.Nome
		if m.Client.CPFCNPJ != "" {
			d += " (CPF/CNPJ " + m.Client.CPFCNPJ + ")"
		}
		return d
	case m.Order != nil:
		d := "OS " + m.Order.Numero
		if m.Order.ClienteNome != "" {
			d += " de " + m.Order.ClienteNome
		}
		if m.Order.TipoAparelho != "" {
			d += " (" + strings.TrimSpace(m.Order.TipoAparelho+" "+m.Order.MarcaModelo) + ")"
		}
		return d
	case m.Product != nil:
		d := "produto " + m.Product.Nome
		if m.Product.Codigo != "" {
			d += " (código " + m.Product.Codigo + ")"
		}
		return d
	}
	return string(m.Tipo)
}

func clientMatch(c domain.Client, score float64, stage string) *Match {
	return &Match{Tipo: domain.EntityCliente, ID: c.ID, Nome: c.Nome, Score: score, Stage: stage, Client: &c}
}

func orderMatch(o domain.ServiceOrder, score float64, stage string) *Match {
	return &Match{Tipo: domain.EntityOS, ID: o.ID, Nome: o.Numero, Score: score, Stage: stage, Order: &o}
}

func productMatch(p domain.Product, score float64, stage string) *Match {
	return &Match{Tipo: domain.EntityProduto, ID: p.ID, Nome: p.Nome, Score: score, Stage: stage, Product: &p}
}

// orderNumberRe finds "os 5", "#OS0005", "o.s. 12", "ordem de servico 12" and
// "ordem nº 7" in folded text.
var orderNumberRe = regexp.MustCompile(`(?:\bo\.?s\.?|\bordem(?:\s+de\s+servico)?)\s*(?:n[o.º°]?\s*|numero\s+)?#?\s*(\d{1,6})\b`)

// extractOrderNumber returns the normalized order number found in folded text.
func extractOrderNumber(folded string) (string, bool) {
	m := orderNumberRe.FindStringSubmatch(folded)
	if m == nil {
		return "", false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return "", false
	}
	return domain.FormatOrderNumber(n), true
}

// hintedEntity returns the entity type the utterance names explicitly, or ""
// when it names none or more than one.
func hintedEntity(u utterance) domain.EntityType {
	var found domain.EntityType
	for _, h := range entityHints {
		if h.phrases.in(u) {
			if found != "" {
				return ""
			}
			found = h.entity
		}
	}
	return found
}

// queryTokens drops stop words and tokens of length <= minLen.
func queryTokens(u utterance, minLen int) []string {
	var out []string
	for _, w := range u.words {
		if len(w) <= minLen || stopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// fuzzyScore sums token lengths found in name (and code, weighted 1.5), with
// bonuses when every token is in the name and when the joined phrase is.
func fuzzyScore(tokens []string, name, code string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var score float64
	all := true
	for _, t := range tokens {
		inName := strings.Contains(name, t)
		if inName {
			score += float64(len(t))
		} else {
			all = false
		}
		if code != "" && strings.Contains(code, t) {
			score += float64(len(t)) * 1.5
		}
	}
	if all {
		score += 100
	}
	if strings.Contains(name, strings.Join(tokens, " ")) {
		score += 50
	}
	return score
}

// Resolve maps free text to a single record of snap. Stages run in a fixed
// order and the first one that finds a record wins.
func Resolve(text string, snap *domain.ContextSnapshot) (*Match, bool) {
	if snap == nil {
		return nil, false
	}
	return resolve(newUtterance(text), snap)
}

func resolve(u utterance, snap *domain.ContextSnapshot) (*Match, bool) {
	hint := hintedEntity(u)
	allow := func(t domain.EntityType) bool { return hint == "" || hint == t }

	type stage func() *Match
	stages := []stage{
		func() *Match {
			if !allow(domain.EntityOS) {
				return nil
			}
			return byOrderNumber(u, snap)
		},
		func() *Match {
			if !allow(domain.EntityProduto) {
				return nil
			}
			return byProductCode(u, snap)
		},
		func() *Match {
			if !allow(domain.EntityProduto) {
				return nil
			}
			return fuzzyProduct(u, snap)
		},
		func() *Match {
			if !allow(domain.EntityCliente) {
				return nil
			}
			return fuzzyClient(u, snap)
		},
		func() *Match {
			if !allow(domain.EntityOS) {
				return nil
			}
			return orderByContext(u, snap)
		},
		func() *Match { return byExactName(u, snap, allow) },
	}
	for _, s := range stages {
		if m := s(); m != nil {
			return m, true
		}
	}
	return nil, false
}

func byOrderNumber(u utterance, snap *domain.ContextSnapshot) *Match {
	numero, ok := extractOrderNumber(u.folded)
	if !ok {
		return nil
	}
	for _, o := range snap.Ordens {
		if strings.EqualFold(o.Numero, numero) {
			return orderMatch(o, 0, StageOrderNumber)
		}
	}
	return nil
}

func byProductCode(u utterance, snap *domain.ContextSnapshot) *Match {
	var best *domain.Product
	bestLen := 0
	for i, p := range snap.Produtos {
		code := fold(strings.TrimSpace(p.Codigo))
		if len(code) < 2 || !strings.Contains(u.folded, code) {
			continue
		}
		if len(code) > bestLen {
			best, bestLen = &snap.Produtos[i], len(code)
		}
	}
	if best == nil {
		return nil
	}
	return productMatch(*best, float64(bestLen), StageProductCode)
}

func fuzzyProduct(u utterance, snap *domain.ContextSnapshot) *Match {
	tokens := queryTokens(u, 2)
	best, bestScore := -1, 0.0
	for i, p := range snap.Produtos {
		if s := fuzzyScore(tokens, fold(p.Nome), fold(p.Codigo)); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < fuzzyMinScore {
		return nil
	}
	return productMatch(snap.Produtos[best], bestScore, StageFuzzyProduct)
}

func fuzzyClient(u utterance, snap *domain.ContextSnapshot) *Match {
	tokens := queryTokens(u, 2)
	best, bestScore := -1, 0.0
	for i, c := range snap.Clientes {
		if s := fuzzyScore(tokens, fold(c.Nome), ""); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < fuzzyMinScore {
		return nil
	}
	return clientMatch(snap.Clientes[best], bestScore, StageFuzzyClient)
}

// orderByContext scores orders by their client's name (x2) and number (x3).
func orderByContext(u utterance, snap *domain.ContextSnapshot) *Match {
	tokens := queryTokens(u, 1)
	if len(tokens) == 0 {
		return nil
	}
	joined := strings.Join(tokens, " ")
	best, bestScore := -1, 0.0
	for i, o := range snap.Ordens {
		name := fold(o.ClienteNome)
		if name == "" {
			if c, ok := snap.ClientByID(o.ClienteID); ok {
				name = fold(c.Nome)
			}
		}
		numero := fold(o.Numero)

		var score float64
		all := name != ""
		for _, t := range tokens {
			inName := name != "" && strings.Contains(name, t)
			if inName {
				score += float64(len(t)) * 2
			} else {
				all = false
			}
			if strings.Contains(numero, t) {
				score += float64(len(t)) * 3
			}
		}
		if all {
			score += 200
		}
		if name != "" && strings.Contains(name, joined) {
			score += 100
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < orderMinScore {
		return nil
	}
	return orderMatch(snap.Ordens[best], bestScore, StageOrderContext)
}

func byExactName(u utterance, snap *domain.ContextSnapshot, allow func(domain.EntityType) bool) *Match {
	if allow(domain.EntityCliente) {
		for _, c := range snap.Clientes {
			if name := fold(strings.TrimSpace(c.Nome)); len(name) >= 3 && strings.Contains(u.folded, name) {
				return clientMatch(c, float64(len(name)), StageExactName)
			}
		}
	}
	if allow(domain.EntityProduto) {
		for _, p := range snap.Produtos {
			if name := fold(strings.TrimSpace(p.Nome)); len(name) >= 3 && strings.Contains(u.folded, name) {
				return productMatch(p, float64(len(name)), StageExactName)
			}
		}
	}
	return nil
}
