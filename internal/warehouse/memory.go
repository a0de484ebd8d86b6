package warehouse

import (
	"context"
	"sync"

	"github.com/z316data/salespipe/internal/models"
)

// Memory is an in-process Warehouse used by tests. Upsert semantics
// match the SQL implementation: one row per source_id per table.
type Memory struct {
	mu       sync.RWMutex
	pdv      map[string]models.PDVRow
	pesquisa map[string]models.PesquisaRow
	produto  map[string]models.ProdutoRow
}

func NewMemory() *Memory {
	return &Memory{
		pdv:      make(map[string]models.PDVRow),
		pesquisa: make(map[string]models.PesquisaRow),
		produto:  make(map[string]models.ProdutoRow),
	}
}

func (w *Memory) UpsertPDV(ctx context.Context, row models.PDVRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pdv[row.SourceID] = row
	return nil
}

func (w *Memory) UpsertPesquisa(ctx context.Context, row models.PesquisaRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pesquisa[row.SourceID] = row
	return nil
}

func (w *Memory) UpsertProduto(ctx context.Context, row models.ProdutoRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.produto[row.SourceID] = row
	return nil
}

func (w *Memory) Close() {}

// PDVRows returns a copy of the pdv table keyed by source_id.
func (w *Memory) PDVRows() map[string]models.PDVRow {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]models.PDVRow, len(w.pdv))
	for k, v := range w.pdv {
		out[k] = v
	}
	return out
}

// PesquisaRows returns a copy of the pesquisa table keyed by source_id.
func (w *Memory) PesquisaRows() map[string]models.PesquisaRow {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]models.PesquisaRow, len(w.pesquisa))
	for k, v := range w.pesquisa {
		out[k] = v
	}
	return out
}

// ProdutoRows returns a copy of the produto table keyed by source_id.
func (w *Memory) ProdutoRows() map[string]models.ProdutoRow {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]models.ProdutoRow, len(w.produto))
	for k, v := range w.produto {
		out[k] = v
	}
	return out
}
