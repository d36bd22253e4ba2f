package assistant

import "github.com/boddenberg/oficina-assistant-go/internal/domain"

// ============================================================
// Conversa casual
// ============================================================

// chitchatRule is one canned-reply table. maxWords > 0 only lets short messages
// match, so "bom dia, quais OS estão prontas?" is still treated as a query.
type chitchatRule struct {
	name     string
	phrases  phraseList
	maxWords int
	reply    string
}

// chitchatRules are checked in this order; the first hit wins.
var chitchatRules = []chitchatRule{
	{
		name:     "saudacao",
		phrases:  phrases("oi", "olá", "ola", "bom dia", "boa tarde", "boa noite", "e aí", "eae", "opa", "salve", "hello", "hey"),
		maxWords: 3,
		reply:    "Olá! Sou o assistente da oficina. Posso consultar clientes, ordens de serviço e estoque, ou cadastrar e alterar registros. Como posso ajudar?",
	},
	{
		name:     "identidade",
		phrases:  phrases("quem é você", "quem e vc", "qual seu nome", "qual é o seu nome", "você é um robô", "você é uma ia", "o que é você"),
		maxWords: 8,
		reply:    "Sou o assistente virtual da assistência técnica. Respondo perguntas sobre os dados da oficina e ajudo a cadastrar, editar e excluir registros.",
	},
	{
		name: "capacidades",
		phrases: phrases("o que você faz", "o que você pode fazer", "o que você sabe fazer", "o que vc faz",
			"quais suas funções", "quais são suas funções", "como você pode me ajudar", "como pode me ajudar", "para que você serve"),
		maxWords: 10,
		reply: "Posso: consultar OS por número (ex.: \"status da OS 12\"), listar ordens por status, mostrar dados de clientes, " +
			"informar faturamento e produtos com estoque baixo, além de cadastrar clientes, OS e produtos, editar campos e excluir registros.",
	},
	{
		name:     "agradecimento",
		phrases:  phrases("obrigado", "obrigada", "muito obrigado", "valeu", "agradeço", "brigado", "thanks"),
		maxWords: 5,
		reply:    "Por nada! Se precisar de mais alguma coisa, é só chamar.",
	},
	{
		name:     "confirmacao",
		phrases:  phrases("ok", "certo", "entendi", "beleza", "blz", "tá bom", "ta bom", "show", "perfeito", "legal", "joia", "combinado"),
		maxWords: 3,
		reply:    "Certo! Posso ajudar com mais alguma coisa?",
	},
	{
		name:     "despedida",
		phrases:  phrases("tchau", "até logo", "até mais", "até amanhã", "falou", "adeus", "bye", "fui"),
		maxWords: 4,
		reply:    "Até logo! Bom trabalho na oficina.",
	},
	{
		name:     "ajuda",
		phrases:  phrases("ajuda", "help", "socorro", "me ajuda", "me ajude", "preciso de ajuda", "como funciona", "como usar"),
		maxWords: 5,
		reply: "Alguns exemplos: \"quais OS estão prontas?\", \"dados do cliente Maria\", \"cadastrar cliente\", " +
			"\"nova OS\", \"mude o status da OS 3 para pronto\", \"exclua o produto Teclado\", \"produtos com estoque baixo\".",
	},
}

// ============================================================
// Exclusão / edição
// ============================================================

var deleteVerbs = phrases(
	"exclua", "excluir", "exclui", "excluam",
	"apague", "apagar", "apaga",
	"delete", "deletar", "deleta", "delete o", "deleta a",
	"remova", "remover", "remove",
)

var editVerbs = phrases(
	"altere", "alterar", "altera",
	"mude", "mudar", "muda",
	"edite", "editar", "edita",
	"atualize", "atualizar", "atualiza",
	"modifique", "modificar", "modifica",
	"troque", "trocar",
	"corrija", "corrigir", "corrige",
	"marque", "marcar", "marca como",
)

// ============================================================
// Criação
// ============================================================

var createVerbs = []string{
	"cadastrar", "cadastre", "cadastra",
	"criar", "crie", "cria",
	"adicionar", "adicione", "adiciona",
	"registrar", "registre", "registra",
	"incluir", "inclua", "inclui",
	"abrir", "abra", "abre",
}

// creationPhrases builds verb [article] [novo/nova] noun combinations plus the
// bare "novo <noun>" forms.
func creationPhrases(nouns, articles, adjectives []string) phraseList {
	var items []string
	for _, n := range nouns {
		for _, adj := range adjectives {
			items = append(items, adj+" "+n)
		}
		for _, v := range createVerbs {
			items = append(items, v+" "+n)
			for _, a := range articles {
				items = append(items, v+" "+a+" "+n)
			}
			for _, adj := range adjectives {
				items = append(items, v+" "+adj+" "+n)
				for _, a := range articles {
					items = append(items, v+" "+a+" "+adj+" "+n)
				}
			}
		}
	}
	return phrases(items...)
}

// createTables are checked in order: client, order, product.
var createTables = []struct {
	entity  domain.EntityType
	phrases phraseList
}{
	{domain.EntityCliente, creationPhrases([]string{"cliente"}, []string{"um", "o"}, []string{"novo"})},
	{domain.EntityOS, creationPhrases([]string{"os", "o.s", "ordem de serviço", "ordem"}, []string{"uma", "a"}, []string{"nova"})},
	{domain.EntityProduto, creationPhrases([]string{"produto", "peça", "item"}, []string{"um", "o", "uma", "a"}, []string{"novo", "nova"})},
}

// ============================================================
// Vocabulário de confirmação
// ============================================================

var cancelWords = phrases(
	"cancelar", "cancela", "cancele", "cancelo",
	"desistir", "desisto", "deixa pra la", "deixa para lá",
	"esquece", "esqueça", "parar", "pare", "sair", "abortar",
	"não quero mais",
)

// negativeWords only cancel at the confirmation gate.
var negativeWords = phrases("não", "nao", "n", "negativo", "nunca")

var affirmWords = phrases(
	"sim", "s", "confirmo", "confirmar", "confirma", "confirmado",
	"pode", "pode sim", "pode salvar", "salvar", "salva", "salve",
	"ok", "isso", "isso mesmo", "correto", "certo", "claro", "positivo", "yes", "bora",
)

// ============================================================
// Resolução de entidades
// ============================================================

// stopWords are dropped before fuzzy scoring: articles, prepositions,
// command verbs and domain nouns that never belong to a name.
var stopWords = func() map[string]bool {
	list := []string{
		"o", "a", "os", "as", "um", "uma", "uns", "umas",
		"de", "do", "da", "dos", "das", "em", "no", "na", "nos", "nas",
		"para", "pra", "por", "pelo", "pela", "com", "sem", "e", "ou", "que",
		"esse", "essa", "este", "esta", "isso", "aquele", "aquela",
		"meu", "minha", "seu", "sua", "favor", "porfavor", "agora", "ja",
		"cliente", "clientes", "produto", "produtos", "peca", "pecas", "item", "itens",
		"ordem", "ordens", "servico", "servicos", "registro", "cadastro",
		"nome", "telefone", "fone", "celular", "email", "endereco", "status", "valor",
		"quantidade", "estoque", "preco", "codigo", "dados", "informacoes",
		"qual", "quais", "quanto", "quantos", "quantas", "como", "onde", "quando",
		"tem", "temos", "sao", "estao", "mostre", "mostrar", "liste", "listar", "ver",
		"me", "todos", "todas", "sobre", "aberta", "abertas",
	}
	for _, groups := range []phraseList{deleteVerbs, editVerbs} {
		for _, p := range groups {
			list = append(list, words(p)...)
		}
	}
	list = append(list, createVerbs...)
	m := make(map[string]bool, len(list))
	for _, w := range list {
		m[fold(w)] = true
	}
	return m
}()

// entityHints name an entity type explicitly. "os" on its own is usually the
// plural article, so orders are hinted by "ordem" or a feminine article + "os".
var entityHints = []struct {
	entity  domain.EntityType
	phrases phraseList
}{
	{domain.EntityCliente, phrases("cliente", "clientes")},
	{domain.EntityProduto, phrases("produto", "produtos", "peça", "peças", "item")},
	{domain.EntityOS, phrases("ordem", "ordem de serviço", "a os", "da os", "na os", "uma os", "essa os", "esta os", "o.s")},
}

// ============================================================
// Status de OS
// ============================================================

// statusPhrases maps free text to an order status. Longer phrases come first
// so "em reparo" is not read as something else.
var statusPhrases = []struct {
	status  domain.OrderStatus
	phrases phraseList
}{
	{domain.StatusEmReparo, phrases("em reparo", "em conserto", "em andamento", "reparando", "consertando", "em manutenção", "em_reparo")},
	{domain.StatusAguardando, phrases("aguardando", "aguardando peça", "em espera", "esperando", "pendente", "pendentes", "na fila")},
	{domain.StatusPronto, phrases("pronto", "pronta", "prontos", "prontas", "concluído", "concluída", "concluídos", "concluídas", "finalizado", "finalizada", "finalizadas", "consertado", "consertada")},
	{domain.StatusEntregue, phrases("entregue", "entregues", "retirado", "retirada", "retiradas")},
	{domain.StatusCancelado, phrases("cancelado", "cancelada", "cancelados", "canceladas")},
}

func detectStatus(u utterance) (domain.OrderStatus, bool) {
	for _, s := range statusPhrases {
		if s.phrases.in(u) {
			return s.status, true
		}
	}
	return "", false
}

// ============================================================
// Categorias de contexto para o prompt
// ============================================================

var (
	clientCategory = phrases("cliente", "clientes", "telefone", "contato", "email", "cpf", "cnpj", "endereço", "quem")
	orderCategory  = phrases("os", "ordem", "ordens", "serviço", "serviços", "reparo", "conserto", "aparelho", "aparelhos",
		"status", "pronto", "prontas", "entregue", "aguardando", "orçamento", "notebook", "celular", "defeito", "problema")
	productCategory = phrases("produto", "produtos", "estoque", "peça", "peças", "item", "itens", "preço", "quantidade", "código")
	financeCategory = phrases("faturamento", "faturei", "faturou", "faturamos", "receita", "financeiro", "lucro",
		"ganho", "ganhos", "dinheiro", "valor total", "quanto ganhei", "quanto recebi")
)

var lowStockPhrases = phrases("estoque baixo", "baixo estoque", "acabando", "repor", "reposição", "em falta", "faltando", "estoque mínimo", "abaixo do mínimo")
