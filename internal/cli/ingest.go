package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/z316data/salespipe/internal/cli/output"
	"github.com/z316data/salespipe/internal/ingest"
	"github.com/z316data/salespipe/internal/models"
)

var ingestEventType string

var ingestCmd = &cobra.Command{
	Use:   "ingest [payload-file]",
	Short: "Ingest a webhook payload into the landing store",
	Long: `Validates a webhook payload and lands it write-once. Reads the
payload from the given file, or from stdin when no file is given.
Re-ingesting the same payload is a no-op that reports the existing
object.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestEventType, "event-type", "",
		"expected event type (order-created, pdv-sale, product-query); derived from the payload when empty")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var payload []byte
	var err error
	if len(args) == 1 {
		payload, err = os.ReadFile(args[0])
	} else {
		payload, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

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
	ref, err := stage.Ingest(ctx, payload, models.EventType(ingestEventType))
	if err != nil {
		return err
	}

	output.Success("landed %s", ref)
	return nil
}
