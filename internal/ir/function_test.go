package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFunctionNormalizeDefaults(t *testing.T) {
	fn := &Function{FunctionName: "demo", Code: "pass"}
	fn.Normalize()
	assert.Equal(t, DefaultTimeout, fn.Timeout)
	assert.Equal(t, DefaultMemorySize, fn.MemorySize)
}

func TestFunctionNormalizeKeepsExplicitValues(t *testing.T) {
	fn := &Function{FunctionName: "demo", Code: "pass", Timeout: 60, MemorySize: 512}
	fn.Normalize()
	assert.Equal(t, 60, fn.Timeout)
	assert.Equal(t, 512, fn.MemorySize)
}

func TestFunctionValidateOneCodeSource(t *testing.T) {
	tests := []struct {
		name    string
		fn      Function
		wantErr bool
	}{
		{"inline code", Function{FunctionName: "f", Code: "pass"}, false},
		{"local path", Function{FunctionName: "f", LocalPath: "code.zip"}, false},
		{"s3 triplet", Function{FunctionName: "f", S3Bucket: "b", S3Key: "k", S3ObjectVersion: "v"}, false},
		{"no source", Function{FunctionName: "f"}, true},
		{"two sources", Function{FunctionName: "f", Code: "pass", LocalPath: "code.zip"}, true},
		{"s3 without key", Function{FunctionName: "f", S3Bucket: "b"}, true},
		{"missing name", Function{Code: "pass"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
