package reconcile

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/google/uuid"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/logging"
)

// RuleReconciler converges a scheduled EventBridge rule whose sole target is
// a Lambda function. The rule document and its target list are separate API
// surfaces, so a pass may change either or both.
type RuleReconciler struct {
	Events    RuleAPI
	Identity  IdentityAPI
	Region    string
	CheckMode bool
}

func NewRuleReconciler(api RuleAPI, identity IdentityAPI, region string, checkMode bool) *RuleReconciler {
	return &RuleReconciler{Events: api, Identity: identity, Region: region, CheckMode: checkMode}
}

// Apply converges the rule toward the enabled or disabled state.
func (r *RuleReconciler) Apply(ctx context.Context, rule *ir.Rule, state ir.State) (bool, *ir.RuleResult, error) {
	ruleState := eventbridgetypes.RuleStateEnabled
	if state == ir.Disabled {
		ruleState = eventbridgetypes.RuleStateDisabled
	}

	remote, err := r.describeRule(ctx, rule.RuleName)
	if err != nil {
		return false, nil, err
	}

	changed := false
	ruleArn := ""
	if remote != nil {
		ruleArn = aws.ToString(remote.Arn)
	}

	if remote == nil ||
		aws.ToString(remote.ScheduleExpression) != rule.ScheduleExpression ||
		aws.ToString(remote.Description) != rule.Description ||
		remote.State != ruleState {
		changed = true
		logging.Debug("putting rule", "name", rule.RuleName, "state", string(ruleState), "check_mode", r.CheckMode)
		if !r.CheckMode {
			out, err := r.Events.PutRule(ctx, &eventbridge.PutRuleInput{
				Name:               aws.String(rule.RuleName),
				ScheduleExpression: aws.String(rule.ScheduleExpression),
				Description:        aws.String(rule.Description),
				State:              ruleState,
			})
			if err != nil {
				return false, nil, fmt.Errorf("putting rule %s: %w", rule.RuleName, err)
			}
			ruleArn = aws.ToString(out.RuleArn)
		}
	}

	targetChanged, err := r.ensureTarget(ctx, rule, remote != nil)
	if err != nil {
		return false, nil, err
	}
	changed = changed || targetChanged

	return changed, &ir.RuleResult{
		RuleName:           rule.RuleName,
		ScheduleExpression: rule.ScheduleExpression,
		State:              string(ruleState),
		Description:        rule.Description,
		RuleArn:            ruleArn,
	}, nil
}

// Absent removes the rule and its targets if the rule exists.
func (r *RuleReconciler) Absent(ctx context.Context, rule *ir.Rule) (bool, *ir.RuleResult, error) {
	remote, err := r.describeRule(ctx, rule.RuleName)
	if err != nil {
		return false, nil, err
	}
	if remote == nil {
		return false, nil, nil
	}

	if !r.CheckMode {
		// Targets must go first; DeleteRule refuses while any remain.
		targets, err := r.listTargets(ctx, rule.RuleName)
		if err != nil {
			return false, nil, err
		}
		if len(targets) > 0 {
			ids := make([]string, 0, len(targets))
			for _, target := range targets {
				ids = append(ids, aws.ToString(target.Id))
			}
			_, err := r.Events.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
				Rule: aws.String(rule.RuleName),
				Ids:  ids,
			})
			if err != nil {
				return false, nil, fmt.Errorf("removing targets of rule %s: %w", rule.RuleName, err)
			}
		}
		_, err = r.Events.DeleteRule(ctx, &eventbridge.DeleteRuleInput{Name: aws.String(rule.RuleName)})
		if err != nil {
			return false, nil, fmt.Errorf("deleting rule %s: %w", rule.RuleName, err)
		}
	}
	logging.Info("deleted rule", "name", rule.RuleName, "check_mode", r.CheckMode)
	return true, &ir.RuleResult{
		RuleName:           rule.RuleName,
		ScheduleExpression: aws.ToString(remote.ScheduleExpression),
		State:              string(remote.State),
		Description:        aws.ToString(remote.Description),
		RuleArn:            aws.ToString(remote.Arn),
	}, nil
}

// ensureTarget makes the function an invocation target of the rule. Listing
// targets of a rule that does not exist yet is skipped; the target is then
// known to be missing.
func (r *RuleReconciler) ensureTarget(ctx context.Context, rule *ir.Rule, ruleExists bool) (bool, error) {
	functionArn, err := r.functionArn(ctx, rule.FunctionName)
	if err != nil {
		return false, err
	}

	if ruleExists {
		targets, err := r.listTargets(ctx, rule.RuleName)
		if err != nil {
			return false, err
		}
		for _, target := range targets {
			if aws.ToString(target.Arn) == functionArn {
				return false, nil
			}
		}
	}

	logging.Debug("putting rule target", "rule", rule.RuleName, "target", functionArn, "check_mode", r.CheckMode)
	if !r.CheckMode {
		_, err := r.Events.PutTargets(ctx, &eventbridge.PutTargetsInput{
			Rule: aws.String(rule.RuleName),
			Targets: []eventbridgetypes.Target{{
				Id:  aws.String(uuid.NewString()),
				Arn: aws.String(functionArn),
			}},
		})
		if err != nil {
			return false, fmt.Errorf("putting target of rule %s: %w", rule.RuleName, err)
		}
	}
	return true, nil
}

func (r *RuleReconciler) describeRule(ctx context.Context, name string) (*eventbridge.DescribeRuleOutput, error) {
	out, err := r.Events.DescribeRule(ctx, &eventbridge.DescribeRuleInput{Name: aws.String(name)})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("describing rule %s: %w", name, err)
	}
	return out, nil
}

func (r *RuleReconciler) listTargets(ctx context.Context, name string) ([]eventbridgetypes.Target, error) {
	out, err := r.Events.ListTargetsByRule(ctx, &eventbridge.ListTargetsByRuleInput{Rule: aws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("listing targets of rule %s: %w", name, err)
	}
	return out.Targets, nil
}

// functionArn expands a bare function name into a full ARN; names already in
// ARN form pass through.
func (r *RuleReconciler) functionArn(ctx context.Context, name string) (string, error) {
	if len(name) > 4 && name[:4] == "arn:" {
		return name, nil
	}
	account, err := accountID(ctx, r.Identity)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("arn:aws:lambda:%s:%s:function:%s", r.Region, account, name), nil
}
