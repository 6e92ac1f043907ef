package cli

import (
	"github.com/spf13/cobra"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/reconcile"
)

var (
	eventSourceState  string
	eventSourceCheck  bool
	eventSourceRegion string
)

var eventSourceCmd = &cobra.Command{
	Use:   "event-source <spec.yaml>",
	Short: "Reconcile an SQS event source mapping",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventSource,
}

func init() {
	eventSourceCmd.Flags().StringVar(&eventSourceState, "state", "present", "Target state (present, absent)")
	eventSourceCmd.Flags().BoolVar(&eventSourceCheck, "check", false, "Report what would change without changing anything")
	eventSourceCmd.Flags().StringVar(&eventSourceRegion, "region", "", "AWS region (default: from environment)")
}

func runEventSource(cmd *cobra.Command, args []string) error {
	state, err := ir.ParseState(eventSourceState)
	if err != nil {
		return err
	}

	var es ir.EventSource
	if err := loadSpec(args[0], &es); err != nil {
		return err
	}
	es.Normalize()
	if err := es.Validate(state); err != nil {
		return err
	}

	ctx := cmd.Context()
	clients, err := newClients(ctx, eventSourceRegion)
	if err != nil {
		return err
	}

	r := reconcile.NewEventSourceReconciler(clients.Lambda, eventSourceCheck)
	var changed bool
	if state == ir.Present {
		changed, err = r.Present(ctx, &es)
	} else {
		changed, err = r.Absent(ctx, &es)
	}
	if err != nil {
		return err
	}
	return printOutcome(changed, nil)
}
