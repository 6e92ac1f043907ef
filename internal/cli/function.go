package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/reconcile"
)

var (
	functionState  string
	functionCheck  bool
	functionRegion string
)

var functionCmd = &cobra.Command{
	Use:   "function <spec.yaml>",
	Short: "Reconcile a Lambda function",
	Args:  cobra.ExactArgs(1),
	RunE:  runFunction,
}

func init() {
	functionCmd.Flags().StringVar(&functionState, "state", "present", "Target state (present, absent)")
	functionCmd.Flags().BoolVar(&functionCheck, "check", false, "Report what would change without changing anything")
	functionCmd.Flags().StringVar(&functionRegion, "region", "", "AWS region (default: from environment)")
}

func runFunction(cmd *cobra.Command, args []string) error {
	state, err := ir.ParseState(functionState)
	if err != nil {
		return err
	}

	var fn ir.Function
	if err := loadSpec(args[0], &fn); err != nil {
		return err
	}
	fn.Normalize()
	if state == ir.Present {
		if err := fn.Validate(); err != nil {
			return err
		}
	} else if fn.FunctionName == "" {
		return fmt.Errorf("function_name is required")
	}

	ctx := cmd.Context()
	clients, err := newClients(ctx, functionRegion)
	if err != nil {
		return err
	}

	r := reconcile.NewFunctionReconciler(clients.Lambda, clients.STS, functionCheck)
	var (
		changed bool
		result  *ir.FunctionResult
	)
	if state == ir.Present {
		changed, result, err = r.Present(ctx, &fn)
	} else {
		changed, result, err = r.Absent(ctx, &fn)
	}
	if err != nil {
		return err
	}
	return printOutcome(changed, result)
}
