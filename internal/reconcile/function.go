package reconcile

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/logging"
)

// latestVersion is the pseudo-version of the unpublished function revision.
const latestVersion = "$LATEST"

// FunctionReconciler converges a Lambda function toward its desired state.
type FunctionReconciler struct {
	Lambda     FunctionAPI
	Identity   IdentityAPI
	CheckMode  bool
	CreateWait WaitPolicy
	UpdateWait WaitPolicy
}

func NewFunctionReconciler(api FunctionAPI, identity IdentityAPI, checkMode bool) *FunctionReconciler {
	return &FunctionReconciler{
		Lambda:     api,
		Identity:   identity,
		CheckMode:  checkMode,
		CreateWait: DefaultCreateWait,
		UpdateWait: DefaultUpdateWait,
	}
}

// Present creates the function if it does not exist, otherwise pushes
// whatever subset of code and configuration has drifted.
func (r *FunctionReconciler) Present(ctx context.Context, fn *ir.Function) (bool, *ir.FunctionResult, error) {
	role, err := r.resolveRole(ctx, fn.Role)
	if err != nil {
		return false, nil, err
	}

	logging.Debug("reconciling function", "name", fn.FunctionName, "qualifier", fn.Qualifier, "check_mode", r.CheckMode)

	remote, err := r.getFunction(ctx, fn.FunctionName, fn.Qualifier)
	if err != nil {
		return false, nil, err
	}
	if fn.Qualifier != "" && remote == nil {
		// Not found by qualifier; the unqualified $LATEST revision may
		// still exist.
		remote, err = r.getFunction(ctx, fn.FunctionName, "")
		if err != nil {
			return false, nil, err
		}
	}

	if remote == nil {
		return r.create(ctx, fn, role)
	}
	return r.update(ctx, fn, role, remote)
}

// Absent deletes the function if it exists.
func (r *FunctionReconciler) Absent(ctx context.Context, fn *ir.Function) (bool, *ir.FunctionResult, error) {
	remote, err := r.getFunction(ctx, fn.FunctionName, "")
	if err != nil {
		return false, nil, err
	}
	if remote == nil {
		return false, nil, nil
	}
	if !r.CheckMode {
		_, err := r.Lambda.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
			FunctionName: aws.String(fn.FunctionName),
		})
		if err != nil {
			return false, nil, fmt.Errorf("deleting function %s: %w", fn.FunctionName, err)
		}
	}
	logging.Info("deleted function", "name", fn.FunctionName, "check_mode", r.CheckMode)
	return true, makeResult(remote), nil
}

// resolveRole expands a bare role name to a role ARN using the calling
// account.
func (r *FunctionReconciler) resolveRole(ctx context.Context, role string) (string, error) {
	if strings.HasPrefix(role, "arn:aws:iam:") {
		return role, nil
	}
	account, err := accountID(ctx, r.Identity)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", account, role), nil
}

// getFunction fetches the function configuration, optionally by qualifier.
// A nil map means the function (or that revision of it) does not exist.
func (r *FunctionReconciler) getFunction(ctx context.Context, name, qualifier string) (map[string]any, error) {
	input := &lambda.GetFunctionConfigurationInput{FunctionName: aws.String(name)}
	if qualifier != "" {
		input.Qualifier = aws.String(qualifier)
	}
	out, err := r.Lambda.GetFunctionConfiguration(ctx, input)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching function %s: %w", name, err)
	}
	return dataFromGet(out), nil
}

func (r *FunctionReconciler) create(ctx context.Context, fn *ir.Function, role string) (bool, *ir.FunctionResult, error) {
	cfg := localConfig(fn, role)

	if r.CheckMode {
		result := makeResult(cfg)
		result.Version = "1"
		return true, result, nil
	}

	pkg, err := packageBytes(fn, false)
	if err != nil {
		return false, nil, err
	}

	input := &lambda.CreateFunctionInput{
		FunctionName: aws.String(fn.FunctionName),
		Runtime:      lambdatypes.Runtime(fn.Runtime),
		Role:         aws.String(role),
		Handler:      aws.String(fn.Handler),
		Description:  aws.String(fn.Description),
		Timeout:      aws.Int32(int32(fn.Timeout)),
		MemorySize:   aws.Int32(int32(fn.MemorySize)),
		Publish:      fn.Publish,
		Code:         functionCode(fn, pkg),
	}
	// The API rejects empty Layers and Environment rather than ignoring
	// them, so they are only set when non-empty.
	if len(fn.Layers) > 0 {
		input.Layers = fn.Layers
	}
	if len(fn.Environment) > 0 {
		input.Environment = &lambdatypes.Environment{Variables: fn.Environment}
	}

	out, err := r.Lambda.CreateFunction(ctx, input)
	if err != nil {
		return false, nil, fmt.Errorf("creating function %s: %w", fn.FunctionName, err)
	}
	if err := r.waitOnCreate(ctx, fn.FunctionName); err != nil {
		return false, nil, err
	}
	logging.Info("created function", "name", fn.FunctionName)
	return true, makeResult(dataFromCreate(out)), nil
}

func (r *FunctionReconciler) update(ctx context.Context, fn *ir.Function, role string, remote map[string]any) (bool, *ir.FunctionResult, error) {
	pkg, err := packageBytes(fn, r.CheckMode)
	if err != nil {
		return false, nil, err
	}

	cfg := localConfig(fn, role)
	if fn.PreserveEnvironment {
		// The caller opted out of managing environment drift; compare and
		// submit the observed variables instead.
		cfg["Environment"] = remote["Environment"]
	}
	remoteCfg := make(map[string]any, len(cfg))
	for key := range cfg {
		remoteCfg[key] = remote[key]
	}

	var codeChanged bool
	if fn.S3Bucket != "" {
		// No local bytes to hash against CodeSha256.
		codeChanged = true
	} else {
		remoteHash, _ := remote["CodeSha256"].(string)
		codeChanged = codeSha256(pkg) != remoteHash
	}
	configChanged := len(changedKeys(cfg, remoteCfg)) > 0

	version, _ := remote["Version"].(string)
	if fn.Publish && version == latestVersion {
		// Publishing only happens as a side effect of a code update call,
		// even when the code is byte-identical.
		codeChanged = true
	}
	if fn.Publish && configChanged && !codeChanged {
		// The publish flag is not honored on the configuration call.
		codeChanged = true
	}
	if fn.Publish && version != latestVersion && (codeChanged || configChanged) {
		// Publishing from a published base: both calls are needed so the
		// new version reflects code and configuration alike.
		codeChanged = true
		configChanged = true
	}

	logging.Debug("function drift", "name", fn.FunctionName, "code_changed", codeChanged, "config_changed", configChanged)

	configData, err := r.updateConfiguration(ctx, fn, cfg, configChanged)
	if err != nil {
		return false, nil, err
	}
	codeData, err := r.updateCode(ctx, fn, pkg, codeChanged)
	if err != nil {
		return false, nil, err
	}

	// The result reflects the hypothetical post-update state even in check
	// mode: the submitted (or would-be submitted) payloads overlay the
	// observed state.
	data := make(map[string]any, len(remote))
	maps.Copy(data, remote)
	maps.Copy(data, configData)
	maps.Copy(data, codeData)

	return codeChanged || configChanged, makeResult(data), nil
}

func (r *FunctionReconciler) updateConfiguration(ctx context.Context, fn *ir.Function, cfg map[string]any, changed bool) (map[string]any, error) {
	if !changed || r.CheckMode {
		return cfg, nil
	}

	input := &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(fn.FunctionName),
		Runtime:      lambdatypes.Runtime(cfg["Runtime"].(string)),
		Role:         aws.String(cfg["Role"].(string)),
		Handler:      aws.String(fn.Handler),
		Description:  aws.String(fn.Description),
		Timeout:      aws.Int32(int32(fn.Timeout)),
		MemorySize:   aws.Int32(int32(fn.MemorySize)),
	}
	if layers, ok := cfg["Layers"].([]string); ok && len(layers) > 0 {
		input.Layers = layers
	}
	if env, ok := cfg["Environment"].(map[string]any); ok {
		if vars, ok := env["Variables"].(map[string]string); ok && len(vars) > 0 {
			input.Environment = &lambdatypes.Environment{Variables: vars}
		}
	}

	out, err := r.Lambda.UpdateFunctionConfiguration(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("updating function %s configuration: %w", fn.FunctionName, err)
	}
	if err := r.waitOnUpdate(ctx, fn.FunctionName); err != nil {
		return nil, err
	}
	logging.Info("updated function configuration", "name", fn.FunctionName)
	return dataFromUpdateConfig(out), nil
}

func (r *FunctionReconciler) updateCode(ctx context.Context, fn *ir.Function, pkg []byte, changed bool) (map[string]any, error) {
	if !changed || r.CheckMode {
		return map[string]any{"FunctionName": fn.FunctionName}, nil
	}

	input := &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(fn.FunctionName),
		Publish:      fn.Publish,
	}
	if fn.S3Bucket != "" {
		input.S3Bucket = aws.String(fn.S3Bucket)
		input.S3Key = aws.String(fn.S3Key)
		input.S3ObjectVersion = aws.String(fn.S3ObjectVersion)
	} else {
		input.ZipFile = pkg
	}

	out, err := r.Lambda.UpdateFunctionCode(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("updating function %s code: %w", fn.FunctionName, err)
	}
	if err := r.waitOnUpdate(ctx, fn.FunctionName); err != nil {
		return nil, err
	}
	logging.Info("updated function code", "name", fn.FunctionName, "publish", fn.Publish)
	return dataFromUpdateCode(out), nil
}

// waitOnCreate blocks until the function's creation State leaves Pending.
func (r *FunctionReconciler) waitOnCreate(ctx context.Context, name string) error {
	_, err := WaitUntil(ctx, r.CreateWait,
		func(ctx context.Context) (string, error) {
			out, err := r.Lambda.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
				FunctionName: aws.String(name),
			})
			if err != nil {
				return "", err
			}
			return string(out.State), nil
		},
		func(state string) bool { return state != string(lambdatypes.StatePending) },
	)
	if err != nil {
		return fmt.Errorf("waiting for function %s creation: %w", name, err)
	}
	return nil
}

// waitOnUpdate blocks until the function's LastUpdateStatus leaves
// InProgress. A dependent mutation issued earlier is rejected by the API.
func (r *FunctionReconciler) waitOnUpdate(ctx context.Context, name string) error {
	_, err := WaitUntil(ctx, r.UpdateWait,
		func(ctx context.Context) (string, error) {
			out, err := r.Lambda.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
				FunctionName: aws.String(name),
			})
			if err != nil {
				return "", err
			}
			return string(out.LastUpdateStatus), nil
		},
		func(status string) bool { return status != string(lambdatypes.LastUpdateStatusInProgress) },
	)
	if err != nil {
		return fmt.Errorf("waiting for function %s update: %w", name, err)
	}
	return nil
}

// localConfig builds the desired configuration attribute map compared and
// submitted during reconciliation. Environment and Layers hold nil when
// empty; the mutating calls drop them entirely.
func localConfig(fn *ir.Function, role string) map[string]any {
	cfg := map[string]any{
		"FunctionName": fn.FunctionName,
		"Runtime":      fn.Runtime,
		"Role":         role,
		"Handler":      fn.Handler,
		"Description":  fn.Description,
		"Timeout":      int32(fn.Timeout),
		"MemorySize":   int32(fn.MemorySize),
		"Environment":  nil,
		"Layers":       nil,
	}
	if len(fn.Environment) > 0 {
		cfg["Environment"] = map[string]any{"Variables": fn.Environment}
	}
	if len(fn.Layers) > 0 {
		cfg["Layers"] = fn.Layers
	}
	return cfg
}

// functionCode builds the code payload for create.
func functionCode(fn *ir.Function, pkg []byte) *lambdatypes.FunctionCode {
	if fn.S3Bucket != "" {
		return &lambdatypes.FunctionCode{
			S3Bucket:        aws.String(fn.S3Bucket),
			S3Key:           aws.String(fn.S3Key),
			S3ObjectVersion: aws.String(fn.S3ObjectVersion),
		}
	}
	return &lambdatypes.FunctionCode{ZipFile: pkg}
}

// fnConfig is the common field set of the Lambda API payloads that carry a
// function configuration, used to project them onto attribute maps.
type fnConfig struct {
	FunctionName     *string
	Runtime          lambdatypes.Runtime
	Role             *string
	Handler          *string
	Description      *string
	Timeout          *int32
	MemorySize       *int32
	Environment      *lambdatypes.EnvironmentResponse
	Layers           []lambdatypes.Layer
	FunctionArn      *string
	CodeSha256       *string
	Version          *string
	LastModified     *string
	CodeSize         int64
	State            lambdatypes.State
	LastUpdateStatus lambdatypes.LastUpdateStatus
}

func (c fnConfig) data() map[string]any {
	data := map[string]any{
		"FunctionName": aws.ToString(c.FunctionName),
		"Runtime":      string(c.Runtime),
		"Role":         aws.ToString(c.Role),
		"Handler":      aws.ToString(c.Handler),
		"Description":  aws.ToString(c.Description),
		"Timeout":      aws.ToInt32(c.Timeout),
		"MemorySize":   aws.ToInt32(c.MemorySize),
		"Environment":  nil,
		"Layers":       nil,
	}
	if c.Environment != nil && len(c.Environment.Variables) > 0 {
		data["Environment"] = map[string]any{"Variables": c.Environment.Variables}
	}
	if len(c.Layers) > 0 {
		arns := make([]string, 0, len(c.Layers))
		for _, layer := range c.Layers {
			arns = append(arns, aws.ToString(layer.Arn))
		}
		data["Layers"] = arns
	}
	if c.CodeSha256 != nil {
		data["CodeSha256"] = aws.ToString(c.CodeSha256)
		data["FunctionArn"] = aws.ToString(c.FunctionArn)
		data["Version"] = aws.ToString(c.Version)
		data["LastModified"] = aws.ToString(c.LastModified)
		data["CodeSize"] = c.CodeSize
	}
	if c.State != "" {
		data["State"] = string(c.State)
	}
	if c.LastUpdateStatus != "" {
		data["LastUpdateStatus"] = string(c.LastUpdateStatus)
	}
	return data
}

func dataFromGet(out *lambda.GetFunctionConfigurationOutput) map[string]any {
	return fnConfig{
		FunctionName: out.FunctionName, Runtime: out.Runtime, Role: out.Role,
		Handler: out.Handler, Description: out.Description,
		Timeout: out.Timeout, MemorySize: out.MemorySize,
		Environment: out.Environment, Layers: out.Layers,
		FunctionArn: out.FunctionArn, CodeSha256: out.CodeSha256,
		Version: out.Version, LastModified: out.LastModified,
		CodeSize: out.CodeSize, State: out.State, LastUpdateStatus: out.LastUpdateStatus,
	}.data()
}

func dataFromCreate(out *lambda.CreateFunctionOutput) map[string]any {
	return fnConfig{
		FunctionName: out.FunctionName, Runtime: out.Runtime, Role: out.Role,
		Handler: out.Handler, Description: out.Description,
		Timeout: out.Timeout, MemorySize: out.MemorySize,
		Environment: out.Environment, Layers: out.Layers,
		FunctionArn: out.FunctionArn, CodeSha256: out.CodeSha256,
		Version: out.Version, LastModified: out.LastModified,
		CodeSize: out.CodeSize, State: out.State, LastUpdateStatus: out.LastUpdateStatus,
	}.data()
}

func dataFromUpdateConfig(out *lambda.UpdateFunctionConfigurationOutput) map[string]any {
	return fnConfig{
		FunctionName: out.FunctionName, Runtime: out.Runtime, Role: out.Role,
		Handler: out.Handler, Description: out.Description,
		Timeout: out.Timeout, MemorySize: out.MemorySize,
		Environment: out.Environment, Layers: out.Layers,
		FunctionArn: out.FunctionArn, CodeSha256: out.CodeSha256,
		Version: out.Version, LastModified: out.LastModified,
		CodeSize: out.CodeSize, State: out.State, LastUpdateStatus: out.LastUpdateStatus,
	}.data()
}

func dataFromUpdateCode(out *lambda.UpdateFunctionCodeOutput) map[string]any {
	return fnConfig{
		FunctionName: out.FunctionName, Runtime: out.Runtime, Role: out.Role,
		Handler: out.Handler, Description: out.Description,
		Timeout: out.Timeout, MemorySize: out.MemorySize,
		Environment: out.Environment, Layers: out.Layers,
		FunctionArn: out.FunctionArn, CodeSha256: out.CodeSha256,
		Version: out.Version, LastModified: out.LastModified,
		CodeSize: out.CodeSize, State: out.State, LastUpdateStatus: out.LastUpdateStatus,
	}.data()
}

// makeResult assembles the normalized result from a merged attribute map.
// Code metadata is included only when the remote code state was known.
func makeResult(data map[string]any) *ir.FunctionResult {
	result := &ir.FunctionResult{
		FunctionName: stringAttr(data, "FunctionName"),
		Runtime:      stringAttr(data, "Runtime"),
		Role:         stringAttr(data, "Role"),
		Handler:      stringAttr(data, "Handler"),
		Description:  stringAttr(data, "Description"),
		Environment:  map[string]string{},
	}
	if timeout, ok := data["Timeout"].(int32); ok {
		result.Timeout = int(timeout)
	}
	if memory, ok := data["MemorySize"].(int32); ok {
		result.MemorySize = int(memory)
	}
	if env, ok := data["Environment"].(map[string]any); ok {
		if vars, ok := env["Variables"].(map[string]string); ok {
			result.Environment = vars
		}
	}
	if layers, ok := data["Layers"].([]string); ok {
		result.Layers = layers
	}
	if _, ok := data["CodeSha256"]; ok {
		result.FunctionArn = stringAttr(data, "FunctionArn")
		result.CodeSha256 = stringAttr(data, "CodeSha256")
		result.Version = stringAttr(data, "Version")
		result.LastModified = stringAttr(data, "LastModified")
		if size, ok := data["CodeSize"].(int64); ok {
			result.CodeSize = size
		}
	}
	return result
}

func stringAttr(data map[string]any, key string) string {
	value, _ := data[key].(string)
	return value
}

// accountID resolves the calling AWS account from the caller identity.
func accountID(ctx context.Context, identity IdentityAPI) (string, error) {
	out, err := identity.GetCallerIdentity(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("resolving caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}
