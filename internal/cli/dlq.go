package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/z316data/salespipe/internal/cli/output"
	"github.com/z316data/salespipe/internal/dlq"
)

var dlqStage string

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay dead-lettered objects",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-letter envelopes",
	RunE:  runDLQList,
}

var dlqRequeueCmd = &cobra.Command{
	Use:   "requeue <ref>...",
	Short: "Republish the trigger for dead-lettered objects",
	Long: `Republishes the original notification for each given object
reference so its stage processes it again. The envelope stays in the
dead-letter area until overwritten by a newer failure.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDLQRequeue,
}

func init() {
	dlqCmd.PersistentFlags().StringVar(&dlqStage, "stage", "", "filter by stage (enrich, load)")
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqRequeueCmd)
	rootCmd.AddCommand(dlqCmd)
}

func runDLQList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	defer store.Close()

	deadletter := dlq.New(store, nil, log)
	envelopes, err := deadletter.List(ctx, dlqStage)
	if err != nil {
		return err
	}

	if len(envelopes) == 0 {
		output.Info("dead-letter area is empty")
		return nil
	}

	table := output.NewTable("STAGE", "REF", "CLASS", "ATTEMPTS", "FAILED AT", "ERROR")
	for _, env := range envelopes {
		table.AddRow(env.Stage, env.Ref, env.ErrorClass,
			fmt.Sprintf("%d", env.Attempts),
			env.FailedAt.Format(time.RFC3339), env.Error)
	}
	table.Render(cmd.OutOrStdout())
	return nil
}

func runDLQRequeue(cmd *cobra.Command, args []string) error {
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

	deadletter := dlq.New(store, bus, log)
	envelopes, err := deadletter.List(ctx, dlqStage)
	if err != nil {
		return err
	}

	byRef := make(map[string]dlq.Envelope, len(envelopes))
	for _, env := range envelopes {
		byRef[env.Ref] = env
	}

	for _, ref := range args {
		env, ok := byRef[ref]
		if !ok {
			return fmt.Errorf("no dead-letter envelope for %s", ref)
		}
		if err := deadletter.Requeue(ctx, env); err != nil {
			return fmt.Errorf("requeue %s: %w", ref, err)
		}
		output.Success("requeued %s (stage %s)", ref, env.Stage)
	}
	return nil
}
