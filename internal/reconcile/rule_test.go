package reconcile

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamctl/lamctl/internal/ir"
)

const testRuleArn = "arn:aws:events:us-east-1:123456789012:rule/nightly"

type fakeRuleAPI struct {
	remote  *eventbridge.DescribeRuleOutput
	targets []eventbridgetypes.Target

	putRuleCalls       int
	putTargetsCalls    int
	removeTargetsCalls int
	deleteCalls        int

	lastPutRule    *eventbridge.PutRuleInput
	lastPutTargets *eventbridge.PutTargetsInput
	lastRemove     *eventbridge.RemoveTargetsInput
}

func (f *fakeRuleAPI) DescribeRule(ctx context.Context, params *eventbridge.DescribeRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.DescribeRuleOutput, error) {
	if f.remote == nil {
		return nil, &eventbridgetypes.ResourceNotFoundException{}
	}
	return f.remote, nil
}

func (f *fakeRuleAPI) PutRule(ctx context.Context, params *eventbridge.PutRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutRuleOutput, error) {
	f.putRuleCalls++
	f.lastPutRule = params
	return &eventbridge.PutRuleOutput{RuleArn: aws.String(testRuleArn)}, nil
}

func (f *fakeRuleAPI) ListTargetsByRule(ctx context.Context, params *eventbridge.ListTargetsByRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.ListTargetsByRuleOutput, error) {
	return &eventbridge.ListTargetsByRuleOutput{Targets: f.targets}, nil
}

func (f *fakeRuleAPI) PutTargets(ctx context.Context, params *eventbridge.PutTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutTargetsOutput, error) {
	f.putTargetsCalls++
	f.lastPutTargets = params
	return &eventbridge.PutTargetsOutput{}, nil
}

func (f *fakeRuleAPI) RemoveTargets(ctx context.Context, params *eventbridge.RemoveTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error) {
	f.removeTargetsCalls++
	f.lastRemove = params
	return &eventbridge.RemoveTargetsOutput{}, nil
}

func (f *fakeRuleAPI) DeleteRule(ctx context.Context, params *eventbridge.DeleteRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.DeleteRuleOutput, error) {
	f.deleteCalls++
	return &eventbridge.DeleteRuleOutput{}, nil
}

func testRule() *ir.Rule {
	return &ir.Rule{
		RuleName:           "nightly",
		ScheduleExpression: "cron(0 2 * * ? *)",
		Description:        "nightly batch",
		FunctionName:       "demo",
	}
}

func remoteRule(rule *ir.Rule, state eventbridgetypes.RuleState) *eventbridge.DescribeRuleOutput {
	return &eventbridge.DescribeRuleOutput{
		Name:               aws.String(rule.RuleName),
		Arn:                aws.String(testRuleArn),
		ScheduleExpression: aws.String(rule.ScheduleExpression),
		Description:        aws.String(rule.Description),
		State:              state,
	}
}

func functionTarget() eventbridgetypes.Target {
	return eventbridgetypes.Target{
		Id:  aws.String("target-1"),
		Arn: aws.String(testFunctionArn),
	}
}

func TestRuleApplyCreatesMissing(t *testing.T) {
	api := &fakeRuleAPI{}
	r := NewRuleReconciler(api, fakeIdentity{}, "us-east-1", false)

	changed, result, err := r.Apply(context.Background(), testRule(), ir.Enabled)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, api.putRuleCalls)
	assert.Equal(t, eventbridgetypes.RuleStateEnabled, api.lastPutRule.State)
	require.Equal(t, 1, api.putTargetsCalls)
	require.Len(t, api.lastPutTargets.Targets, 1)
	assert.Equal(t, testFunctionArn, aws.ToString(api.lastPutTargets.Targets[0].Arn))
	assert.NotEmpty(t, aws.ToString(api.lastPutTargets.Targets[0].Id))
	assert.Equal(t, testRuleArn, result.RuleArn)
}

func TestRuleApplyInSync(t *testing.T) {
	rule := testRule()
	api := &fakeRuleAPI{
		remote:  remoteRule(rule, eventbridgetypes.RuleStateEnabled),
		targets: []eventbridgetypes.Target{functionTarget()},
	}
	r := NewRuleReconciler(api, fakeIdentity{}, "us-east-1", false)

	changed, result, err := r.Apply(context.Background(), rule, ir.Enabled)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, api.putRuleCalls)
	assert.Zero(t, api.putTargetsCalls)
	assert.Equal(t, "ENABLED", result.State)
}

func TestRuleApplyStateDrift(t *testing.T) {
	rule := testRule()
	api := &fakeRuleAPI{
		remote:  remoteRule(rule, eventbridgetypes.RuleStateEnabled),
		targets: []eventbridgetypes.Target{functionTarget()},
	}
	r := NewRuleReconciler(api, fakeIdentity{}, "us-east-1", false)

	changed, result, err := r.Apply(context.Background(), rule, ir.Disabled)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, api.putRuleCalls)
	assert.Equal(t, eventbridgetypes.RuleStateDisabled, api.lastPutRule.State)
	assert.Zero(t, api.putTargetsCalls)
	assert.Equal(t, "DISABLED", result.State)
}

func TestRuleApplyAddsMissingTarget(t *testing.T) {
	rule := testRule()
	api := &fakeRuleAPI{remote: remoteRule(rule, eventbridgetypes.RuleStateEnabled)}
	r := NewRuleReconciler(api, fakeIdentity{}, "us-east-1", false)

	changed, _, err := r.Apply(context.Background(), rule, ir.Enabled)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Zero(t, api.putRuleCalls)
	assert.Equal(t, 1, api.putTargetsCalls)
}

func TestRuleApplyCheckModeNeverMutates(t *testing.T) {
	api := &fakeRuleAPI{}
	r := NewRuleReconciler(api, fakeIdentity{}, "us-east-1", true)

	changed, _, err := r.Apply(context.Background(), testRule(), ir.Enabled)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Zero(t, api.putRuleCalls)
	assert.Zero(t, api.putTargetsCalls)
}

func TestRuleAbsentRemovesTargetsThenRule(t *testing.T) {
	rule := testRule()
	api := &fakeRuleAPI{
		remote:  remoteRule(rule, eventbridgetypes.RuleStateEnabled),
		targets: []eventbridgetypes.Target{functionTarget()},
	}
	r := NewRuleReconciler(api, fakeIdentity{}, "us-east-1", false)

	changed, result, err := r.Absent(context.Background(), rule)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, api.removeTargetsCalls)
	assert.Equal(t, []string{"target-1"}, api.lastRemove.Ids)
	assert.Equal(t, 1, api.deleteCalls)
	assert.Equal(t, testRuleArn, result.RuleArn)
}

func TestRuleAbsentAlreadyGone(t *testing.T) {
	api := &fakeRuleAPI{}
	r := NewRuleReconciler(api, fakeIdentity{}, "us-east-1", false)

	changed, result, err := r.Absent(context.Background(), testRule())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, result)
	assert.Zero(t, api.deleteCalls)
}

func TestRuleAbsentCheckMode(t *testing.T) {
	rule := testRule()
	api := &fakeRuleAPI{
		remote:  remoteRule(rule, eventbridgetypes.RuleStateEnabled),
		targets: []eventbridgetypes.Target{functionTarget()},
	}
	r := NewRuleReconciler(api, fakeIdentity{}, "us-east-1", true)

	changed, _, err := r.Absent(context.Background(), rule)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Zero(t, api.removeTargetsCalls)
	assert.Zero(t, api.deleteCalls)
}
