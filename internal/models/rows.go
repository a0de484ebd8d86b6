package models

import (
	"encoding/json"
	"time"
)

// PDVRow is the destination shape for point-of-sale orders. Nested
// structures (contact, items, installments) are kept as JSON columns.
type PDVRow struct {
	SourceID       string          `json:"source_id"`
	OrderID        int64           `json:"order_id"`
	Numero         int64           `json:"numero"`
	Data           *time.Time      `json:"data,omitempty"`
	TotalProdutos  float64         `json:"total_produtos"`
	TotalVenda     float64         `json:"total_venda"`
	Frete          float64         `json:"frete"`
	Desconto       string          `json:"desconto"`
	FormaPagamento string          `json:"forma_pagamento"`
	Situacao       string          `json:"situacao"`
	Contato        json.RawMessage `json:"contato,omitempty"`
	Itens          json.RawMessage `json:"itens,omitempty"`
	Parcelas       json.RawMessage `json:"parcelas,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PesquisaRow is the destination shape for order search results.
type PesquisaRow struct {
	SourceID           string     `json:"source_id"`
	Numero             string     `json:"numero"`
	NumeroEcommerce    string     `json:"numero_ecommerce"`
	DataPedido         *time.Time `json:"data_pedido,omitempty"`
	DataPrevista       *time.Time `json:"data_prevista,omitempty"`
	Nome               string     `json:"nome"`
	Valor              float64    `json:"valor"`
	IDVendedor         string     `json:"id_vendedor"`
	NomeVendedor       string     `json:"nome_vendedor"`
	Situacao           string     `json:"situacao"`
	CodigoRastreamento string     `json:"codigo_rastreamento"`
	URLRastreamento    string     `json:"url_rastreamento"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ProdutoRow is the destination shape for product catalog entries.
type ProdutoRow struct {
	SourceID         string    `json:"source_id"`
	Nome             string    `json:"nome"`
	Codigo           string    `json:"codigo"`
	Unidade          string    `json:"unidade"`
	Preco            float64   `json:"preco"`
	PrecoPromocional float64   `json:"preco_promocional"`
	PrecoCusto       float64   `json:"preco_custo"`
	NCM              string    `json:"ncm"`
	Origem           string    `json:"origem"`
	GTIN             string    `json:"gtin"`
	Localizacao      string    `json:"localizacao"`
	PesoLiquido      float64   `json:"peso_liquido"`
	PesoBruto        float64   `json:"peso_bruto"`
	EstoqueMinimo    float64   `json:"estoque_minimo"`
	EstoqueMaximo    float64   `json:"estoque_maximo"`
	Categoria        string    `json:"categoria"`
	Marca            string    `json:"marca"`
	Situacao         string    `json:"situacao"`
	Tipo             string    `json:"tipo"`
	UpdatedAt        time.Time `json:"updated_at"`
}
