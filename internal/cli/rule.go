package cli

import (
	"github.com/spf13/cobra"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/reconcile"
)

var (
	ruleState  string
	ruleCheck  bool
	ruleRegion string
)

var ruleCmd = &cobra.Command{
	Use:   "rule <spec.yaml>",
	Short: "Reconcile a scheduled rule targeting a Lambda function",
	Args:  cobra.ExactArgs(1),
	RunE:  runRule,
}

func init() {
	ruleCmd.Flags().StringVar(&ruleState, "state", "enabled", "Target state (enabled, disabled, absent)")
	ruleCmd.Flags().BoolVar(&ruleCheck, "check", false, "Report what would change without changing anything")
	ruleCmd.Flags().StringVar(&ruleRegion, "region", "", "AWS region (default: from environment)")
}

func runRule(cmd *cobra.Command, args []string) error {
	state, err := ir.ParseState(ruleState, ir.Enabled, ir.Disabled, ir.Absent)
	if err != nil {
		return err
	}

	var rule ir.Rule
	if err := loadSpec(args[0], &rule); err != nil {
		return err
	}
	if err := rule.Validate(state); err != nil {
		return err
	}

	ctx := cmd.Context()
	clients, err := newClients(ctx, ruleRegion)
	if err != nil {
		return err
	}

	r := reconcile.NewRuleReconciler(clients.Events, clients.STS, clients.Region, ruleCheck)
	var (
		changed bool
		result  *ir.RuleResult
	)
	if state == ir.Absent {
		changed, result, err = r.Absent(ctx, &rule)
	} else {
		changed, result, err = r.Apply(ctx, &rule, state)
	}
	if err != nil {
		return err
	}
	return printOutcome(changed, result)
}
