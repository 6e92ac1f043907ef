package cli

import (
	"github.com/spf13/cobra"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/reconcile"
)

var (
	queueState  string
	queueCheck  bool
	queueRegion string
)

var queueCmd = &cobra.Command{
	Use:   "queue <spec.yaml>",
	Short: "Reconcile an SQS FIFO queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueue,
}

func init() {
	queueCmd.Flags().StringVar(&queueState, "state", "present", "Target state (present, absent)")
	queueCmd.Flags().BoolVar(&queueCheck, "check", false, "Report what would change without changing anything")
	queueCmd.Flags().StringVar(&queueRegion, "region", "", "AWS region (default: from environment)")
}

func runQueue(cmd *cobra.Command, args []string) error {
	state, err := ir.ParseState(queueState)
	if err != nil {
		return err
	}

	var queue ir.FifoQueue
	if err := loadSpec(args[0], &queue); err != nil {
		return err
	}
	if err := queue.Validate(state); err != nil {
		return err
	}

	ctx := cmd.Context()
	clients, err := newClients(ctx, queueRegion)
	if err != nil {
		return err
	}

	r := reconcile.NewQueueReconciler(clients.SQS, queueCheck)
	var changed bool
	if state == ir.Present {
		changed, err = r.Present(ctx, &queue)
	} else {
		changed, err = r.Absent(ctx, &queue)
	}
	if err != nil {
		return err
	}
	return printOutcome(changed, nil)
}
