package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/google/uuid"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/logging"
)

// PolicyReconciler converges a single service-principal invoke permission on
// a Lambda function. The Lambda policy API returns the whole resource policy
// as a JSON document, so drift detection parses the document and looks for a
// statement granting exactly the requested permission.
type PolicyReconciler struct {
	Lambda    PolicyAPI
	Identity  IdentityAPI
	Region    string
	CheckMode bool
}

func NewPolicyReconciler(api PolicyAPI, identity IdentityAPI, region string, checkMode bool) *PolicyReconciler {
	return &PolicyReconciler{Lambda: api, Identity: identity, Region: region, CheckMode: checkMode}
}

// policyStatement is the subset of an IAM policy statement inspected when
// matching an existing invoke grant.
type policyStatement struct {
	Sid       string          `json:"Sid"`
	Effect    string          `json:"Effect"`
	Action    string          `json:"Action"`
	Resource  string          `json:"Resource"`
	Principal struct {
		Service string `json:"Service"`
	} `json:"Principal"`
	Condition struct {
		ArnLike struct {
			SourceArn string `json:"AWS:SourceArn"`
		} `json:"ArnLike"`
	} `json:"Condition"`
}

type policyDocument struct {
	Statement []policyStatement `json:"Statement"`
}

func (r *PolicyReconciler) Present(ctx context.Context, policy *ir.Policy) (bool, *ir.PolicyResult, error) {
	functionArn, err := r.functionArn(ctx, policy)
	if err != nil {
		return false, nil, err
	}

	existing, err := r.matchStatement(ctx, policy, functionArn)
	if err != nil {
		return false, nil, err
	}
	if existing != nil {
		return false, &ir.PolicyResult{
			StatementID: existing.Sid,
			FunctionArn: functionArn,
			Principal:   policy.PrincipalService,
			SourceArn:   policy.SourceArn,
		}, nil
	}

	sid := "lamctl-" + uuid.NewString()
	logging.Debug("adding invoke permission", "function", policy.FunctionName, "sid", sid, "check_mode", r.CheckMode)
	if !r.CheckMode {
		input := &lambda.AddPermissionInput{
			FunctionName: aws.String(policy.FunctionName),
			StatementId:  aws.String(sid),
			Action:       aws.String("lambda:InvokeFunction"),
			Principal:    aws.String(policy.PrincipalService),
			SourceArn:    aws.String(policy.SourceArn),
		}
		if policy.Qualifier != "" {
			input.Qualifier = aws.String(policy.Qualifier)
		}
		if _, err := r.Lambda.AddPermission(ctx, input); err != nil {
			return false, nil, fmt.Errorf("adding permission to %s: %w", policy.FunctionName, err)
		}
	}
	return true, &ir.PolicyResult{
		StatementID: sid,
		FunctionArn: functionArn,
		Principal:   policy.PrincipalService,
		SourceArn:   policy.SourceArn,
	}, nil
}

// Absent removes the matching invoke permission if one exists.
func (r *PolicyReconciler) Absent(ctx context.Context, policy *ir.Policy) (bool, *ir.PolicyResult, error) {
	functionArn, err := r.functionArn(ctx, policy)
	if err != nil {
		return false, nil, err
	}

	existing, err := r.matchStatement(ctx, policy, functionArn)
	if err != nil {
		return false, nil, err
	}
	if existing == nil {
		return false, nil, nil
	}

	if !r.CheckMode {
		input := &lambda.RemovePermissionInput{
			FunctionName: aws.String(policy.FunctionName),
			StatementId:  aws.String(existing.Sid),
		}
		if policy.Qualifier != "" {
			input.Qualifier = aws.String(policy.Qualifier)
		}
		if _, err := r.Lambda.RemovePermission(ctx, input); err != nil {
			return false, nil, fmt.Errorf("removing permission %s from %s: %w", existing.Sid, policy.FunctionName, err)
		}
	}
	logging.Info("removed invoke permission", "function", policy.FunctionName, "sid", existing.Sid, "check_mode", r.CheckMode)
	return true, &ir.PolicyResult{
		StatementID: existing.Sid,
		FunctionArn: functionArn,
		Principal:   policy.PrincipalService,
		SourceArn:   policy.SourceArn,
	}, nil
}

// matchStatement fetches the function policy and returns the statement that
// already grants the requested permission, or nil when none does. A function
// with no policy at all counts as no match.
func (r *PolicyReconciler) matchStatement(ctx context.Context, policy *ir.Policy, functionArn string) (*policyStatement, error) {
	input := &lambda.GetPolicyInput{FunctionName: aws.String(policy.FunctionName)}
	if policy.Qualifier != "" {
		input.Qualifier = aws.String(policy.Qualifier)
	}
	out, err := r.Lambda.GetPolicy(ctx, input)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching policy of %s: %w", policy.FunctionName, err)
	}

	var doc policyDocument
	if err := json.Unmarshal([]byte(aws.ToString(out.Policy)), &doc); err != nil {
		return nil, fmt.Errorf("parsing policy of %s: %w", policy.FunctionName, err)
	}
	for i := range doc.Statement {
		st := &doc.Statement[i]
		if st.Action == "lambda:InvokeFunction" &&
			st.Effect == "Allow" &&
			st.Principal.Service == policy.PrincipalService &&
			st.Resource == functionArn &&
			st.Condition.ArnLike.SourceArn == policy.SourceArn {
			return st, nil
		}
	}
	return nil, nil
}

// functionArn builds the qualified function ARN the policy statements name
// as their Resource.
func (r *PolicyReconciler) functionArn(ctx context.Context, policy *ir.Policy) (string, error) {
	account, err := accountID(ctx, r.Identity)
	if err != nil {
		return "", err
	}
	arn := fmt.Sprintf("arn:aws:lambda:%s:%s:function:%s", r.Region, account, policy.FunctionName)
	if policy.Qualifier != "" {
		arn += ":" + policy.Qualifier
	}
	return arn, nil
}
