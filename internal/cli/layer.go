package cli

import (
	"github.com/spf13/cobra"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/reconcile"
)

var (
	layerState  string
	layerCheck  bool
	layerRegion string
)

var layerCmd = &cobra.Command{
	Use:   "layer <spec.yaml>",
	Short: "Reconcile a Lambda layer",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayer,
}

func init() {
	layerCmd.Flags().StringVar(&layerState, "state", "present", "Target state (present, absent)")
	layerCmd.Flags().BoolVar(&layerCheck, "check", false, "Report what would change without changing anything")
	layerCmd.Flags().StringVar(&layerRegion, "region", "", "AWS region (default: from environment)")
}

func runLayer(cmd *cobra.Command, args []string) error {
	state, err := ir.ParseState(layerState)
	if err != nil {
		return err
	}

	var layer ir.Layer
	if err := loadSpec(args[0], &layer); err != nil {
		return err
	}
	if err := layer.Validate(state); err != nil {
		return err
	}

	ctx := cmd.Context()
	clients, err := newClients(ctx, layerRegion)
	if err != nil {
		return err
	}

	r := reconcile.NewLayerReconciler(clients.Lambda, clients.Region, layerCheck)
	if state == ir.Present {
		changed, result, err := r.Present(ctx, &layer)
		if err != nil {
			return err
		}
		return printOutcome(changed, result)
	}
	changed, err := r.Absent(ctx, &layer)
	if err != nil {
		return err
	}
	return printOutcome(changed, nil)
}
