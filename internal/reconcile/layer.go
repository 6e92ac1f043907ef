package reconcile

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/logging"
)

// createdDateLayout matches the timestamp format the Lambda API reports for
// layer versions.
const createdDateLayout = "2006-01-02T15:04:05.000-0700"

// LayerReconciler converges a Lambda layer on a single version holding the
// local archive. Layer versions are immutable, so convergence publishes a
// new version when the content hash drifts and prunes the versions it
// supersedes.
type LayerReconciler struct {
	Lambda    LayerAPI
	Region    string
	CheckMode bool
}

func NewLayerReconciler(api LayerAPI, region string, checkMode bool) *LayerReconciler {
	return &LayerReconciler{Lambda: api, Region: region, CheckMode: checkMode}
}

func (r *LayerReconciler) Present(ctx context.Context, layer *ir.Layer) (bool, *ir.LayerResult, error) {
	zipBytes, err := os.ReadFile(layer.Path)
	if err != nil {
		return false, nil, fmt.Errorf("reading %s: %w", layer.Path, err)
	}
	localHash := codeSha256(zipBytes)

	versions, err := r.listVersions(ctx, layer.Name)
	if err != nil {
		return false, nil, err
	}
	var latest *lambdatypes.LayerVersionsListItem
	for i := range versions {
		if latest == nil || versions[i].Version > latest.Version {
			latest = &versions[i]
		}
	}

	if latest != nil {
		out, err := r.Lambda.GetLayerVersion(ctx, &lambda.GetLayerVersionInput{
			LayerName:     aws.String(layer.Name),
			VersionNumber: aws.Int64(latest.Version),
		})
		if err != nil {
			return false, nil, fmt.Errorf("fetching layer %s version %d: %w", layer.Name, latest.Version, err)
		}
		if out.Content != nil && aws.ToString(out.Content.CodeSha256) == localHash {
			return false, &ir.LayerResult{
				LayerArn:           aws.ToString(out.LayerArn),
				LayerVersionArn:    aws.ToString(out.LayerVersionArn),
				Description:        aws.ToString(out.Description),
				CreatedDate:        aws.ToString(out.CreatedDate),
				Version:            out.Version,
				CompatibleRuntimes: runtimeStrings(out.CompatibleRuntimes),
				LicenseInfo:        aws.ToString(out.LicenseInfo),
				CodeSha256:         aws.ToString(out.Content.CodeSha256),
				CodeSize:           out.Content.CodeSize,
			}, nil
		}
	}

	if r.CheckMode {
		return true, r.synthesizeVersion(layer, latest, localHash, int64(len(zipBytes))), nil
	}

	input := &lambda.PublishLayerVersionInput{
		LayerName: aws.String(layer.Name),
		Content:   &lambdatypes.LayerVersionContentInput{ZipFile: zipBytes},
	}
	if layer.Description != "" {
		input.Description = aws.String(layer.Description)
	}
	if len(layer.CompatibleRuntimes) > 0 {
		runtimes := make([]lambdatypes.Runtime, 0, len(layer.CompatibleRuntimes))
		for _, runtime := range layer.CompatibleRuntimes {
			runtimes = append(runtimes, lambdatypes.Runtime(runtime))
		}
		input.CompatibleRuntimes = runtimes
	}
	if layer.LicenseInfo != "" {
		input.LicenseInfo = aws.String(layer.LicenseInfo)
	}

	out, err := r.Lambda.PublishLayerVersion(ctx, input)
	if err != nil {
		return false, nil, fmt.Errorf("publishing layer %s: %w", layer.Name, err)
	}

	// Only the fresh version survives; everything it supersedes goes.
	for _, version := range versions {
		if err := r.deleteVersion(ctx, layer.Name, version.Version); err != nil {
			return false, nil, err
		}
	}
	logging.Info("published layer version", "name", layer.Name, "version", out.Version)

	result := &ir.LayerResult{
		LayerArn:           aws.ToString(out.LayerArn),
		LayerVersionArn:    aws.ToString(out.LayerVersionArn),
		Description:        aws.ToString(out.Description),
		CreatedDate:        aws.ToString(out.CreatedDate),
		Version:            out.Version,
		CompatibleRuntimes: runtimeStrings(out.CompatibleRuntimes),
		LicenseInfo:        aws.ToString(out.LicenseInfo),
	}
	if out.Content != nil {
		result.CodeSha256 = aws.ToString(out.Content.CodeSha256)
		result.CodeSize = out.Content.CodeSize
	}
	return true, result, nil
}

// Absent deletes every version of the layer.
func (r *LayerReconciler) Absent(ctx context.Context, layer *ir.Layer) (bool, error) {
	versions, err := r.listVersions(ctx, layer.Name)
	if err != nil {
		return false, err
	}
	if len(versions) == 0 {
		return false, nil
	}
	if !r.CheckMode {
		for _, version := range versions {
			if err := r.deleteVersion(ctx, layer.Name, version.Version); err != nil {
				return false, err
			}
		}
	}
	logging.Info("deleted layer", "name", layer.Name, "versions", len(versions), "check_mode", r.CheckMode)
	return true, nil
}

// synthesizeVersion predicts the version publishing would create. The
// account comes from the latest version's ARN when one exists; a first
// publish has no ARN to read it from.
func (r *LayerReconciler) synthesizeVersion(layer *ir.Layer, latest *lambdatypes.LayerVersionsListItem, hash string, size int64) *ir.LayerResult {
	account := "0"
	version := int64(1)
	if latest != nil {
		if parts := strings.Split(aws.ToString(latest.LayerVersionArn), ":"); len(parts) > 4 {
			account = parts[4]
		}
		version = latest.Version + 1
	}
	layerArn := fmt.Sprintf("arn:aws:lambda:%s:%s:layer:%s", r.Region, account, layer.Name)
	return &ir.LayerResult{
		LayerArn:           layerArn,
		LayerVersionArn:    fmt.Sprintf("%s:%d", layerArn, version),
		Description:        layer.Description,
		CreatedDate:        time.Now().UTC().Format(createdDateLayout),
		Version:            version,
		CompatibleRuntimes: layer.CompatibleRuntimes,
		LicenseInfo:        layer.LicenseInfo,
		CodeSha256:         hash,
		CodeSize:           size,
	}
}

// listVersions enumerates all versions of the layer across pages. A layer
// with no versions at all reports not-found; that counts as empty.
func (r *LayerReconciler) listVersions(ctx context.Context, name string) ([]lambdatypes.LayerVersionsListItem, error) {
	var versions []lambdatypes.LayerVersionsListItem
	var marker *string
	for {
		out, err := r.Lambda.ListLayerVersions(ctx, &lambda.ListLayerVersionsInput{
			LayerName: aws.String(name),
			Marker:    marker,
		})
		if err != nil {
			if IsNotFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("listing layer %s versions: %w", name, err)
		}
		versions = append(versions, out.LayerVersions...)
		if out.NextMarker == nil {
			return versions, nil
		}
		marker = out.NextMarker
	}
}

func (r *LayerReconciler) deleteVersion(ctx context.Context, name string, version int64) error {
	_, err := r.Lambda.DeleteLayerVersion(ctx, &lambda.DeleteLayerVersionInput{
		LayerName:     aws.String(name),
		VersionNumber: aws.Int64(version),
	})
	if err != nil {
		return fmt.Errorf("deleting layer %s version %d: %w", name, version, err)
	}
	return nil
}

func runtimeStrings(runtimes []lambdatypes.Runtime) []string {
	if len(runtimes) == 0 {
		return nil
	}
	out := make([]string, 0, len(runtimes))
	for _, runtime := range runtimes {
		out = append(out, string(runtime))
	}
	return out
}
