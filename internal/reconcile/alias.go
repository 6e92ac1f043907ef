package reconcile

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/logging"
)

// AliasReconciler converges a Lambda function alias. Alias attributes are
// flat, so drift detection is plain field equality.
type AliasReconciler struct {
	Lambda    AliasAPI
	Identity  IdentityAPI
	Region    string
	CheckMode bool
}

func NewAliasReconciler(api AliasAPI, identity IdentityAPI, region string, checkMode bool) *AliasReconciler {
	return &AliasReconciler{Lambda: api, Identity: identity, Region: region, CheckMode: checkMode}
}

func (r *AliasReconciler) Present(ctx context.Context, alias *ir.Alias) (bool, *ir.AliasResult, error) {
	remote, err := r.getAlias(ctx, alias)
	if err != nil {
		return false, nil, err
	}

	changed := remote == nil ||
		aws.ToString(remote.Name) != alias.Name ||
		aws.ToString(remote.FunctionVersion) != alias.Version ||
		aws.ToString(remote.Description) != alias.Description

	logging.Debug("reconciling alias", "function", alias.FunctionName, "name", alias.Name, "changed", changed, "check_mode", r.CheckMode)

	if changed && !r.CheckMode {
		if remote == nil {
			out, err := r.Lambda.CreateAlias(ctx, &lambda.CreateAliasInput{
				FunctionName:    aws.String(alias.FunctionName),
				Name:            aws.String(alias.Name),
				FunctionVersion: aws.String(alias.Version),
				Description:     aws.String(alias.Description),
			})
			if err != nil {
				return false, nil, fmt.Errorf("creating alias %s: %w", alias.Name, err)
			}
			return true, aliasResult(alias, aws.ToString(out.AliasArn)), nil
		}
		out, err := r.Lambda.UpdateAlias(ctx, &lambda.UpdateAliasInput{
			FunctionName:    aws.String(alias.FunctionName),
			Name:            aws.String(alias.Name),
			FunctionVersion: aws.String(alias.Version),
			Description:     aws.String(alias.Description),
		})
		if err != nil {
			return false, nil, fmt.Errorf("updating alias %s: %w", alias.Name, err)
		}
		return true, aliasResult(alias, aws.ToString(out.AliasArn)), nil
	}

	// Unchanged, or check mode: the ARN is synthesized from the calling
	// account instead of fetching again.
	arn, err := r.synthesizeArn(ctx, alias)
	if err != nil {
		return changed, nil, err
	}
	return changed, aliasResult(alias, arn), nil
}

// Absent deletes the alias if it exists.
func (r *AliasReconciler) Absent(ctx context.Context, alias *ir.Alias) (bool, *ir.AliasResult, error) {
	remote, err := r.getAlias(ctx, alias)
	if err != nil {
		return false, nil, err
	}
	if remote == nil {
		return false, nil, nil
	}
	if !r.CheckMode {
		_, err := r.Lambda.DeleteAlias(ctx, &lambda.DeleteAliasInput{
			FunctionName: aws.String(alias.FunctionName),
			Name:         aws.String(alias.Name),
		})
		if err != nil {
			return false, nil, fmt.Errorf("deleting alias %s: %w", alias.Name, err)
		}
	}
	logging.Info("deleted alias", "function", alias.FunctionName, "name", alias.Name, "check_mode", r.CheckMode)
	return true, aliasResult(alias, aws.ToString(remote.AliasArn)), nil
}

func (r *AliasReconciler) getAlias(ctx context.Context, alias *ir.Alias) (*lambda.GetAliasOutput, error) {
	out, err := r.Lambda.GetAlias(ctx, &lambda.GetAliasInput{
		FunctionName: aws.String(alias.FunctionName),
		Name:         aws.String(alias.Name),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching alias %s: %w", alias.Name, err)
	}
	return out, nil
}

func (r *AliasReconciler) synthesizeArn(ctx context.Context, alias *ir.Alias) (string, error) {
	account, err := accountID(ctx, r.Identity)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("arn:aws:lambda:%s:%s:function:%s:%s", r.Region, account, alias.FunctionName, alias.Name), nil
}

func aliasResult(alias *ir.Alias, arn string) *ir.AliasResult {
	return &ir.AliasResult{
		AliasArn:        arn,
		Name:            alias.Name,
		FunctionName:    alias.FunctionName,
		FunctionVersion: alias.Version,
		Description:     alias.Description,
	}
}
