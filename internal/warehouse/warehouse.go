// Package warehouse is the destination boundary: three typed tables
// (pdv, pesquisa, produto), each keyed by source_id and loaded with
// insert-or-replace semantics so repeated deliveries of the same
// logical record converge to one row.
package warehouse

import (
	"context"

	"github.com/z316data/salespipe/internal/models"
)

// Warehouse upserts destination rows by natural key.
type Warehouse interface {
	UpsertPDV(ctx context.Context, row models.PDVRow) error
	UpsertPesquisa(ctx context.Context, row models.PesquisaRow) error
	UpsertProduto(ctx context.Context, row models.ProdutoRow) error
	Close()
}
