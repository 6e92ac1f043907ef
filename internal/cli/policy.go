package cli

import (
	"github.com/spf13/cobra"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/reconcile"
)

var (
	policyState  string
	policyCheck  bool
	policyRegion string
)

var policyCmd = &cobra.Command{
	Use:   "policy <spec.yaml>",
	Short: "Reconcile a Lambda invoke permission",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicy,
}

func init() {
	policyCmd.Flags().StringVar(&policyState, "state", "present", "Target state (present, absent)")
	policyCmd.Flags().BoolVar(&policyCheck, "check", false, "Report what would change without changing anything")
	policyCmd.Flags().StringVar(&policyRegion, "region", "", "AWS region (default: from environment)")
}

func runPolicy(cmd *cobra.Command, args []string) error {
	state, err := ir.ParseState(policyState)
	if err != nil {
		return err
	}

	var policy ir.Policy
	if err := loadSpec(args[0], &policy); err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	clients, err := newClients(ctx, policyRegion)
	if err != nil {
		return err
	}

	r := reconcile.NewPolicyReconciler(clients.Lambda, clients.STS, clients.Region, policyCheck)
	var (
		changed bool
		result  *ir.PolicyResult
	)
	if state == ir.Present {
		changed, result, err = r.Present(ctx, &policy)
	} else {
		changed, result, err = r.Absent(ctx, &policy)
	}
	if err != nil {
		return err
	}
	return printOutcome(changed, result)
}
