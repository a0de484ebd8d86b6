package cli

import (
	"encoding/json"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/z316data/salespipe/internal/cli/output"
	"github.com/z316data/salespipe/internal/ingest"
)

var (
	seedCount int
	seedTipo  string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Ingest generated webhook payloads for local runs",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 10, "number of payloads to generate")
	seedCmd.Flags().StringVar(&seedTipo, "tipo", "inclusao_pedido",
		"webhook tipo to generate (inclusao_pedido, venda_pdv, consulta_produto)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	defer store.Close()

	bus, err := connectBus()
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := bus.EnsureStreams(ctx); err != nil {
		return err
	}

	stage := ingest.New(store, bus, log)
	faker := gofakeit.New(0)

	for i := 0; i < seedCount; i++ {
		payload, err := json.Marshal(map[string]any{
			"versao": "2",
			"cnpj":   faker.Numerify("##############"),
			"tipo":   seedTipo,
			"dados": map[string]any{
				"id": faker.Number(100000, 999999),
			},
		})
		if err != nil {
			return err
		}

		ref, err := stage.Ingest(ctx, payload, "")
		if err != nil {
			return fmt.Errorf("seed payload %d: %w", i+1, err)
		}
		output.Info("seeded %s", ref)
	}
	output.Success("%d payloads seeded", seedCount)
	return nil
}
