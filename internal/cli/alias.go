package cli

import (
	"github.com/spf13/cobra"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/reconcile"
)

var (
	aliasState  string
	aliasCheck  bool
	aliasRegion string
)

var aliasCmd = &cobra.Command{
	Use:   "alias <spec.yaml>",
	Short: "Reconcile a Lambda function alias",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlias,
}

func init() {
	aliasCmd.Flags().StringVar(&aliasState, "state", "present", "Target state (present, absent)")
	aliasCmd.Flags().BoolVar(&aliasCheck, "check", false, "Report what would change without changing anything")
	aliasCmd.Flags().StringVar(&aliasRegion, "region", "", "AWS region (default: from environment)")
}

func runAlias(cmd *cobra.Command, args []string) error {
	state, err := ir.ParseState(aliasState)
	if err != nil {
		return err
	}

	var alias ir.Alias
	if err := loadSpec(args[0], &alias); err != nil {
		return err
	}
	if err := alias.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	clients, err := newClients(ctx, aliasRegion)
	if err != nil {
		return err
	}

	r := reconcile.NewAliasReconciler(clients.Lambda, clients.STS, clients.Region, aliasCheck)
	var (
		changed bool
		result  *ir.AliasResult
	)
	if state == ir.Present {
		changed, result, err = r.Present(ctx, &alias)
	} else {
		changed, result, err = r.Absent(ctx, &alias)
	}
	if err != nil {
		return err
	}
	return printOutcome(changed, result)
}
