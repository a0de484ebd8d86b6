package load

import (
	"context"
	"encoding/json"
	"time"

	"github.com/z316data/salespipe/internal/models"
	"github.com/z316data/salespipe/internal/pipeline"
	"github.com/z316data/salespipe/internal/warehouse"
)

// Transformer turns an enriched record into a destination row and
// loads it. One implementation per record type; selection happens by
// classification, never by payload inspection.
type Transformer interface {
	RecordType() models.RecordType
	Load(ctx context.Context, record models.EnrichedRecord) error
}

// pdvTransformer loads point-of-sale orders.
type pdvTransformer struct {
	wh warehouse.Warehouse
}

func (t *pdvTransformer) RecordType() models.RecordType { return models.RecordPDV }

func (t *pdvTransformer) Load(ctx context.Context, record models.EnrichedRecord) error {
	var body struct {
		Retorno struct {
			Pedido struct {
				ID             flexInt         `json:"id"`
				Numero         flexInt         `json:"numero"`
				Data           flexString      `json:"data"`
				TotalProdutos  flexFloat       `json:"totalProdutos"`
				TotalVenda     flexFloat       `json:"totalVenda"`
				Frete          flexFloat       `json:"frete"`
				Desconto       flexString      `json:"desconto"`
				FormaPagamento flexString      `json:"formaPagamento"`
				Situacao       flexString      `json:"situacao"`
				Contato        json.RawMessage `json:"contato"`
				Itens          json.RawMessage `json:"itens"`
				Parcelas       json.RawMessage `json:"parcelas"`
			} `json:"pedido"`
		} `json:"retorno"`
	}
	if err := json.Unmarshal(record.Payload, &body); err != nil {
		return pipeline.Validationf("decode pdv payload for %s: %v", record.SourceID, err)
	}

	pedido := body.Retorno.Pedido
	if pedido.ID == 0 {
		return &pipeline.SchemaMismatchError{RecordType: "pdv", Field: "id"}
	}
	if pedido.Numero == 0 {
		return &pipeline.SchemaMismatchError{RecordType: "pdv", Field: "numero"}
	}

	row := models.PDVRow{
		SourceID:       record.SourceID,
		OrderID:        int64(pedido.ID),
		Numero:         int64(pedido.Numero),
		Data:           parseBRDate(string(pedido.Data)),
		TotalProdutos:  float64(pedido.TotalProdutos),
		TotalVenda:     float64(pedido.TotalVenda),
		Frete:          float64(pedido.Frete),
		Desconto:       string(pedido.Desconto),
		FormaPagamento: string(pedido.FormaPagamento),
		Situacao:       string(pedido.Situacao),
		Contato:        pedido.Contato,
		Itens:          pedido.Itens,
		Parcelas:       pedido.Parcelas,
		UpdatedAt:      time.Now().UTC(),
	}
	return t.wh.UpsertPDV(ctx, row)
}

// pesquisaTransformer loads order search results.
type pesquisaTransformer struct {
	wh warehouse.Warehouse
}

func (t *pesquisaTransformer) RecordType() models.RecordType { return models.RecordPesquisa }

type pesquisaPedido struct {
	ID                 flexString `json:"id"`
	Numero             flexString `json:"numero"`
	NumeroEcommerce    flexString `json:"numero_ecommerce"`
	DataPedido         flexString `json:"data_pedido"`
	DataPrevista       flexString `json:"data_prevista"`
	Nome               flexString `json:"nome"`
	Valor              flexFloat  `json:"valor"`
	IDVendedor         flexString `json:"id_vendedor"`
	NomeVendedor       flexString `json:"nome_vendedor"`
	Situacao           flexString `json:"situacao"`
	CodigoRastreamento flexString `json:"codigo_rastreamento"`
	URLRastreamento    flexString `json:"url_rastreamento"`
}

func (t *pesquisaTransformer) Load(ctx context.Context, record models.EnrichedRecord) error {
	var body struct {
		Retorno struct {
			Pedidos []struct {
				Pedido pesquisaPedido `json:"pedido"`
			} `json:"pedidos"`
		} `json:"retorno"`
	}
	if err := json.Unmarshal(record.Payload, &body); err != nil {
		return pipeline.Validationf("decode pesquisa payload for %s: %v", record.SourceID, err)
	}

	// The search was issued for a single order number; take the first
	// non-empty result as the logical row for this source_id.
	var pedido *pesquisaPedido
	for i := range body.Retorno.Pedidos {
		if body.Retorno.Pedidos[i].Pedido.ID != "" {
			pedido = &body.Retorno.Pedidos[i].Pedido
			break
		}
	}
	if pedido == nil {
		return &pipeline.SchemaMismatchError{RecordType: "pesquisa", Field: "pedidos"}
	}
	if pedido.Numero == "" {
		return &pipeline.SchemaMismatchError{RecordType: "pesquisa", Field: "numero"}
	}
	if pedido.DataPedido == "" {
		return &pipeline.SchemaMismatchError{RecordType: "pesquisa", Field: "data_pedido"}
	}

	row := models.PesquisaRow{
		SourceID:           record.SourceID,
		Numero:             string(pedido.Numero),
		NumeroEcommerce:    string(pedido.NumeroEcommerce),
		DataPedido:         parseBRDate(string(pedido.DataPedido)),
		DataPrevista:       parseBRDate(string(pedido.DataPrevista)),
		Nome:               string(pedido.Nome),
		Valor:              float64(pedido.Valor),
		IDVendedor:         string(pedido.IDVendedor),
		NomeVendedor:       string(pedido.NomeVendedor),
		Situacao:           string(pedido.Situacao),
		CodigoRastreamento: string(pedido.CodigoRastreamento),
		URLRastreamento:    string(pedido.URLRastreamento),
		UpdatedAt:          time.Now().UTC(),
	}
	return t.wh.UpsertPesquisa(ctx, row)
}

// produtoTransformer loads product catalog entries.
type produtoTransformer struct {
	wh warehouse.Warehouse
}

func (t *produtoTransformer) RecordType() models.RecordType { return models.RecordProduto }

func (t *produtoTransformer) Load(ctx context.Context, record models.EnrichedRecord) error {
	var body struct {
		Retorno struct {
			Produto struct {
				ID               flexInt    `json:"id"`
				Nome             flexString `json:"nome"`
				Codigo           flexString `json:"codigo"`
				Unidade          flexString `json:"unidade"`
				Preco            flexFloat  `json:"preco"`
				PrecoPromocional flexFloat  `json:"preco_promocional"`
				PrecoCusto       flexFloat  `json:"preco_custo"`
				NCM              flexString `json:"ncm"`
				Origem           flexString `json:"origem"`
				GTIN             flexString `json:"gtin"`
				Localizacao      flexString `json:"localizacao"`
				PesoLiquido      flexFloat  `json:"peso_liquido"`
				PesoBruto        flexFloat  `json:"peso_bruto"`
				EstoqueMinimo    flexFloat  `json:"estoque_minimo"`
				EstoqueMaximo    flexFloat  `json:"estoque_maximo"`
				Categoria        flexString `json:"categoria"`
				Marca            flexString `json:"marca"`
				Situacao         flexString `json:"situacao"`
				Tipo             flexString `json:"tipo"`
			} `json:"produto"`
		} `json:"retorno"`
	}
	if err := json.Unmarshal(record.Payload, &body); err != nil {
		return pipeline.Validationf("decode produto payload for %s: %v", record.SourceID, err)
	}

	produto := body.Retorno.Produto
	if produto.ID == 0 {
		return &pipeline.SchemaMismatchError{RecordType: "produto", Field: "id"}
	}
	if produto.Codigo == "" {
		return &pipeline.SchemaMismatchError{RecordType: "produto", Field: "codigo"}
	}

	row := models.ProdutoRow{
		SourceID:         record.SourceID,
		Nome:             string(produto.Nome),
		Codigo:           string(produto.Codigo),
		Unidade:          string(produto.Unidade),
		Preco:            float64(produto.Preco),
		PrecoPromocional: float64(produto.PrecoPromocional),
		PrecoCusto:       float64(produto.PrecoCusto),
		NCM:              string(produto.NCM),
		Origem:           string(produto.Origem),
		GTIN:             string(produto.GTIN),
		Localizacao:      string(produto.Localizacao),
		PesoLiquido:      float64(produto.PesoLiquido),
		PesoBruto:        float64(produto.PesoBruto),
		EstoqueMinimo:    float64(produto.EstoqueMinimo),
		EstoqueMaximo:    float64(produto.EstoqueMaximo),
		Categoria:        string(produto.Categoria),
		Marca:            string(produto.Marca),
		Situacao:         string(produto.Situacao),
		Tipo:             string(produto.Tipo),
		UpdatedAt:        time.Now().UTC(),
	}
	return t.wh.UpsertProduto(ctx, row)
}
