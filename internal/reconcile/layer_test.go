package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamctl/lamctl/internal/ir"
)

const testLayerArn = "arn:aws:lambda:us-east-1:123456789012:layer:deps"

type fakeLayerAPI struct {
	pages  [][]lambdatypes.LayerVersionsListItem
	hashes map[int64]string

	publishCalls int
	listCalls    int

	deletedVersions []int64
	lastPublish     *lambda.PublishLayerVersionInput
}

func (f *fakeLayerAPI) ListLayerVersions(ctx context.Context, params *lambda.ListLayerVersionsInput, optFns ...func(*lambda.Options)) (*lambda.ListLayerVersionsOutput, error) {
	f.listCalls++
	page := 0
	if params.Marker != nil {
		fmt.Sscanf(aws.ToString(params.Marker), "page-%d", &page)
	}
	if page >= len(f.pages) {
		return &lambda.ListLayerVersionsOutput{}, nil
	}
	out := &lambda.ListLayerVersionsOutput{LayerVersions: f.pages[page]}
	if page+1 < len(f.pages) {
		out.NextMarker = aws.String(fmt.Sprintf("page-%d", page+1))
	}
	return out, nil
}

func (f *fakeLayerAPI) GetLayerVersion(ctx context.Context, params *lambda.GetLayerVersionInput, optFns ...func(*lambda.Options)) (*lambda.GetLayerVersionOutput, error) {
	version := aws.ToInt64(params.VersionNumber)
	hash, ok := f.hashes[version]
	if !ok {
		return nil, &lambdatypes.ResourceNotFoundException{}
	}
	return &lambda.GetLayerVersionOutput{
		LayerArn:        aws.String(testLayerArn),
		LayerVersionArn: aws.String(fmt.Sprintf("%s:%d", testLayerArn, version)),
		Version:         version,
		Content: &lambdatypes.LayerVersionContentOutput{
			CodeSha256: aws.String(hash),
			CodeSize:   42,
		},
	}, nil
}

func (f *fakeLayerAPI) PublishLayerVersion(ctx context.Context, params *lambda.PublishLayerVersionInput, optFns ...func(*lambda.Options)) (*lambda.PublishLayerVersionOutput, error) {
	f.publishCalls++
	f.lastPublish = params
	version := int64(1)
	for v := range f.hashes {
		if v >= version {
			version = v + 1
		}
	}
	return &lambda.PublishLayerVersionOutput{
		LayerArn:           aws.String(testLayerArn),
		LayerVersionArn:    aws.String(fmt.Sprintf("%s:%d", testLayerArn, version)),
		Version:            version,
		Description:        params.Description,
		CompatibleRuntimes: params.CompatibleRuntimes,
		LicenseInfo:        params.LicenseInfo,
		CreatedDate:        aws.String("2026-01-01T00:00:00.000+0000"),
		Content: &lambdatypes.LayerVersionContentOutput{
			CodeSha256: aws.String(codeSha256(params.Content.ZipFile)),
			CodeSize:   int64(len(params.Content.ZipFile)),
		},
	}, nil
}

func (f *fakeLayerAPI) DeleteLayerVersion(ctx context.Context, params *lambda.DeleteLayerVersionInput, optFns ...func(*lambda.Options)) (*lambda.DeleteLayerVersionOutput, error) {
	f.deletedVersions = append(f.deletedVersions, aws.ToInt64(params.VersionNumber))
	return &lambda.DeleteLayerVersionOutput{}, nil
}

func layerVersionItem(version int64) lambdatypes.LayerVersionsListItem {
	return lambdatypes.LayerVersionsListItem{
		LayerVersionArn: aws.String(fmt.Sprintf("%s:%d", testLayerArn, version)),
		Version:         version,
	}
}

func writeLayerZip(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deps.zip")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func testLayer(t *testing.T) *ir.Layer {
	return &ir.Layer{
		Name:               "deps",
		Description:        "shared dependencies",
		CompatibleRuntimes: []string{"python3.12"},
		Path:               writeLayerZip(t, "layer archive bytes"),
	}
}

func TestLayerPresentPublishesFirstVersion(t *testing.T) {
	api := &fakeLayerAPI{}
	r := NewLayerReconciler(api, "us-east-1", false)

	changed, result, err := r.Present(context.Background(), testLayer(t))
	require.NoError(t, err)
	assert.True(t, changed)
	require.Equal(t, 1, api.publishCalls)
	assert.Empty(t, api.deletedVersions)

	assert.Equal(t, []byte("layer archive bytes"), api.lastPublish.Content.ZipFile)
	assert.Equal(t, "shared dependencies", aws.ToString(api.lastPublish.Description))
	assert.Equal(t, []lambdatypes.Runtime{"python3.12"}, api.lastPublish.CompatibleRuntimes)
	require.NotNil(t, result)
	assert.Equal(t, int64(1), result.Version)
	assert.Equal(t, codeSha256([]byte("layer archive bytes")), result.CodeSha256)
}

func TestLayerPresentMatchingHashIsIdempotent(t *testing.T) {
	layer := testLayer(t)
	api := &fakeLayerAPI{
		pages:  [][]lambdatypes.LayerVersionsListItem{{layerVersionItem(3)}},
		hashes: map[int64]string{3: codeSha256([]byte("layer archive bytes"))},
	}
	r := NewLayerReconciler(api, "us-east-1", false)

	changed, result, err := r.Present(context.Background(), layer)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, api.publishCalls)
	assert.Empty(t, api.deletedVersions)
	require.NotNil(t, result)
	assert.Equal(t, int64(3), result.Version)
}

func TestLayerPresentDriftPublishesAndPrunes(t *testing.T) {
	layer := testLayer(t)
	api := &fakeLayerAPI{
		pages: [][]lambdatypes.LayerVersionsListItem{
			{layerVersionItem(1)},
			{layerVersionItem(2)},
		},
		hashes: map[int64]string{1: "old-hash=", 2: "stale-hash="},
	}
	r := NewLayerReconciler(api, "us-east-1", false)

	changed, result, err := r.Present(context.Background(), layer)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, api.publishCalls)
	// Paged enumeration found both superseded versions; both are pruned.
	assert.ElementsMatch(t, []int64{1, 2}, api.deletedVersions)
	assert.Equal(t, int64(3), result.Version)
}

func TestLayerPresentCheckModeSynthesizes(t *testing.T) {
	layer := testLayer(t)
	api := &fakeLayerAPI{
		pages:  [][]lambdatypes.LayerVersionsListItem{{layerVersionItem(4)}},
		hashes: map[int64]string{4: "stale-hash="},
	}
	r := NewLayerReconciler(api, "us-east-1", true)

	changed, result, err := r.Present(context.Background(), layer)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Zero(t, api.publishCalls)
	assert.Empty(t, api.deletedVersions)

	require.NotNil(t, result)
	assert.Equal(t, int64(5), result.Version)
	assert.Equal(t, testLayerArn, result.LayerArn)
	assert.Equal(t, testLayerArn+":5", result.LayerVersionArn)
	assert.Equal(t, codeSha256([]byte("layer archive bytes")), result.CodeSha256)
}

func TestLayerPresentCheckModeFirstVersion(t *testing.T) {
	layer := testLayer(t)
	api := &fakeLayerAPI{}
	r := NewLayerReconciler(api, "us-east-1", true)

	changed, result, err := r.Present(context.Background(), layer)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, result)
	assert.Equal(t, int64(1), result.Version)
	// Without an existing version there is no ARN to read the account from.
	assert.Equal(t, "arn:aws:lambda:us-east-1:0:layer:deps", result.LayerArn)
}

func TestLayerAbsentDeletesAllVersions(t *testing.T) {
	api := &fakeLayerAPI{
		pages: [][]lambdatypes.LayerVersionsListItem{
			{layerVersionItem(1), layerVersionItem(2)},
			{layerVersionItem(3)},
		},
	}
	r := NewLayerReconciler(api, "us-east-1", false)

	changed, err := r.Absent(context.Background(), &ir.Layer{Name: "deps"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.ElementsMatch(t, []int64{1, 2, 3}, api.deletedVersions)
}

func TestLayerAbsentAlreadyGone(t *testing.T) {
	api := &fakeLayerAPI{}
	r := NewLayerReconciler(api, "us-east-1", false)

	changed, err := r.Absent(context.Background(), &ir.Layer{Name: "deps"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, api.deletedVersions)
}

func TestLayerAbsentCheckMode(t *testing.T) {
	api := &fakeLayerAPI{
		pages: [][]lambdatypes.LayerVersionsListItem{{layerVersionItem(1)}},
	}
	r := NewLayerReconciler(api, "us-east-1", true)

	changed, err := r.Absent(context.Background(), &ir.Layer{Name: "deps"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, api.deletedVersions)
}
