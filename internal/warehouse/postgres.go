package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/z316data/salespipe/internal/models"
)

// Postgres implements Warehouse over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse warehouse config: %w", err)
	}

	config.MaxConns = 16
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (w *Postgres) Close() {
	w.pool.Close()
}

func (w *Postgres) UpsertPDV(ctx context.Context, row models.PDVRow) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		INSERT INTO pdv (
			source_id, order_id, numero, data, total_produtos, total_venda,
			frete, desconto, forma_pagamento, situacao, contato, itens,
			parcelas, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (source_id) DO UPDATE SET
			order_id = EXCLUDED.order_id,
			numero = EXCLUDED.numero,
			data = EXCLUDED.data,
			total_produtos = EXCLUDED.total_produtos,
			total_venda = EXCLUDED.total_venda,
			frete = EXCLUDED.frete,
			desconto = EXCLUDED.desconto,
			forma_pagamento = EXCLUDED.forma_pagamento,
			situacao = EXCLUDED.situacao,
			contato = EXCLUDED.contato,
			itens = EXCLUDED.itens,
			parcelas = EXCLUDED.parcelas,
			updated_at = EXCLUDED.updated_at
	`

	_, err := w.pool.Exec(ctx, query,
		row.SourceID, row.OrderID, row.Numero, row.Data, row.TotalProdutos,
		row.TotalVenda, row.Frete, row.Desconto, row.FormaPagamento,
		row.Situacao, row.Contato, row.Itens, row.Parcelas, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pdv row %s: %w", row.SourceID, err)
	}
	return nil
}

func (w *Postgres) UpsertPesquisa(ctx context.Context, row models.PesquisaRow) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		INSERT INTO pesquisa (
			source_id, numero, numero_ecommerce, data_pedido, data_prevista,
			nome, valor, id_vendedor, nome_vendedor, situacao,
			codigo_rastreamento, url_rastreamento, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (source_id) DO UPDATE SET
			numero = EXCLUDED.numero,
			numero_ecommerce = EXCLUDED.numero_ecommerce,
			data_pedido = EXCLUDED.data_pedido,
			data_prevista = EXCLUDED.data_prevista,
			nome = EXCLUDED.nome,
			valor = EXCLUDED.valor,
			id_vendedor = EXCLUDED.id_vendedor,
			nome_vendedor = EXCLUDED.nome_vendedor,
			situacao = EXCLUDED.situacao,
			codigo_rastreamento = EXCLUDED.codigo_rastreamento,
			url_rastreamento = EXCLUDED.url_rastreamento,
			updated_at = EXCLUDED.updated_at
	`

	_, err := w.pool.Exec(ctx, query,
		row.SourceID, row.Numero, row.NumeroEcommerce, row.DataPedido,
		row.DataPrevista, row.Nome, row.Valor, row.IDVendedor,
		row.NomeVendedor, row.Situacao, row.CodigoRastreamento,
		row.URLRastreamento, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pesquisa row %s: %w", row.SourceID, err)
	}
	return nil
}

func (w *Postgres) UpsertProduto(ctx context.Context, row models.ProdutoRow) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		INSERT INTO produto (
			source_id, nome, codigo, unidade, preco, preco_promocional,
			preco_custo, ncm, origem, gtin, localizacao, peso_liquido,
			peso_bruto, estoque_minimo, estoque_maximo, categoria, marca,
			situacao, tipo, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (source_id) DO UPDATE SET
			nome = EXCLUDED.nome,
			codigo = EXCLUDED.codigo,
			unidade = EXCLUDED.unidade,
			preco = EXCLUDED.preco,
			preco_promocional = EXCLUDED.preco_promocional,
			preco_custo = EXCLUDED.preco_custo,
			ncm = EXCLUDED.ncm,
			origem = EXCLUDED.origem,
			gtin = EXCLUDED.gtin,
			localizacao = EXCLUDED.localizacao,
			peso_liquido = EXCLUDED.peso_liquido,
			peso_bruto = EXCLUDED.peso_bruto,
			estoque_minimo = EXCLUDED.estoque_minimo,
			estoque_maximo = EXCLUDED.estoque_maximo,
			categoria = EXCLUDED.categoria,
			marca = EXCLUDED.marca,
			situacao = EXCLUDED.situacao,
			tipo = EXCLUDED.tipo,
			updated_at = EXCLUDED.updated_at
	`

	_, err := w.pool.Exec(ctx, query,
		row.SourceID, row.Nome, row.Codigo, row.Unidade, row.Preco,
		row.PrecoPromocional, row.PrecoCusto, row.NCM, row.Origem, row.GTIN,
		row.Localizacao, row.PesoLiquido, row.PesoBruto, row.EstoqueMinimo,
		row.EstoqueMaximo, row.Categoria, row.Marca, row.Situacao, row.Tipo,
		row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert produto row %s: %w", row.SourceID, err)
	}
	return nil
}
