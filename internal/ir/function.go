package ir

import "fmt"

// Function is the desired state of a Lambda function.
//
// Exactly one code source must be set: Code (inline source wrapped into a
// deterministic zip), LocalPath (a file on disk, used verbatim when it is
// already a zip), or S3Bucket/S3Key/S3ObjectVersion.
type Function struct {
	FunctionName        string            `yaml:"function_name"`
	Runtime             string            `yaml:"runtime"`
	Role                string            `yaml:"role"`
	Handler             string            `yaml:"handler"`
	Description         string            `yaml:"description"`
	Timeout             int               `yaml:"timeout"`
	MemorySize          int               `yaml:"memory_size"`
	Publish             bool              `yaml:"publish"`
	Qualifier           string            `yaml:"qualifier"`
	PreserveEnvironment bool              `yaml:"preserve_environment"`
	Environment         map[string]string `yaml:"environment"`
	Layers              []string          `yaml:"layers"`

	Code            string `yaml:"code"`
	LocalPath       string `yaml:"local_path"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Key           string `yaml:"s3_key"`
	S3ObjectVersion string `yaml:"s3_object_version"`
}

const (
	DefaultTimeout    = 3
	DefaultMemorySize = 128
)

// Normalize fills in defaults for fields left at their zero value.
func (f *Function) Normalize() {
	if f.Timeout == 0 {
		f.Timeout = DefaultTimeout
	}
	if f.MemorySize == 0 {
		f.MemorySize = DefaultMemorySize
	}
}

// Validate enforces the one-code-source invariant.
func (f *Function) Validate() error {
	if f.FunctionName == "" {
		return fmt.Errorf("function_name is required")
	}
	sources := 0
	if f.Code != "" {
		sources++
	}
	if f.LocalPath != "" {
		sources++
	}
	if f.S3Bucket != "" {
		sources++
	}
	if sources != 1 {
		return fmt.Errorf("function %s: exactly one of code, local_path or s3_bucket must be set", f.FunctionName)
	}
	if f.S3Bucket != "" && (f.S3Key == "" || f.S3ObjectVersion == "") {
		return fmt.Errorf("function %s: s3_bucket requires s3_key and s3_object_version", f.FunctionName)
	}
	return nil
}

// FunctionResult is the normalized reconciliation result for a function.
// The code metadata fields are only populated when the remote code state
// was known (an existing function, or a non-check-mode create/update).
type FunctionResult struct {
	FunctionName string            `json:"function_name"`
	Runtime      string            `json:"runtime"`
	Role         string            `json:"role"`
	Handler      string            `json:"handler"`
	Description  string            `json:"description"`
	Timeout      int               `json:"timeout"`
	MemorySize   int               `json:"memory_size"`
	Environment  map[string]string `json:"environment"`
	Layers       []string          `json:"layers,omitempty"`

	FunctionArn  string `json:"function_arn,omitempty"`
	CodeSize     int64  `json:"code_size,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	CodeSha256   string `json:"code_sha_256,omitempty"`
	Version      string `json:"version,omitempty"`
}
