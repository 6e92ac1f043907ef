package ir

import "fmt"

// Alias is the desired state of a Lambda function alias.
type Alias struct {
	FunctionName string `yaml:"function_name"`
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	Description  string `yaml:"description"`
}

func (a *Alias) Validate() error {
	if a.FunctionName == "" || a.Name == "" || a.Version == "" {
		return fmt.Errorf("alias: function_name, name and version are required")
	}
	return nil
}

// AliasResult is the normalized reconciliation result for an alias.
type AliasResult struct {
	AliasArn        string `json:"alias_arn"`
	Name            string `json:"name"`
	FunctionName    string `json:"function_name"`
	FunctionVersion string `json:"function_version"`
	Description     string `json:"description"`
}

// EventSource is the desired state of an SQS event source mapping.
type EventSource struct {
	SourceArn   string `yaml:"source_arn"`
	FunctionArn string `yaml:"function_arn"`
	BatchSize   int    `yaml:"batch_size"`
}

const DefaultBatchSize = 1

func (e *EventSource) Normalize() {
	if e.BatchSize == 0 {
		e.BatchSize = DefaultBatchSize
	}
}

func (e *EventSource) Validate(state State) error {
	if e.SourceArn == "" {
		return fmt.Errorf("event source: source_arn is required")
	}
	if state == Present && e.FunctionArn == "" {
		return fmt.Errorf("event source: function_arn is required when state is present")
	}
	return nil
}

// FifoQueue is the desired state of an SQS FIFO queue. The retention and
// visibility values are integers here but cross the wire as decimal strings,
// matching the string-typed queue attribute API.
type FifoQueue struct {
	Name                   string `yaml:"name"`
	MessageRetentionPeriod int    `yaml:"message_retention_period"`
	VisibilityTimeout      int    `yaml:"visibility_timeout"`
}

func (q *FifoQueue) Validate(state State) error {
	if q.Name == "" {
		return fmt.Errorf("queue: name is required")
	}
	if state == Present && (q.MessageRetentionPeriod == 0 || q.VisibilityTimeout == 0) {
		return fmt.Errorf("queue %s: message_retention_period and visibility_timeout are required when state is present", q.Name)
	}
	return nil
}

// Layer is the desired state of a Lambda layer. A layer converges on its
// newest version only: publishing a fresh version deletes the versions it
// supersedes.
type Layer struct {
	Name               string   `yaml:"name"`
	Description        string   `yaml:"description"`
	CompatibleRuntimes []string `yaml:"compatible_runtimes"`
	Path               string   `yaml:"path"`
	LicenseInfo        string   `yaml:"license_info"`
}

func (l *Layer) Validate(state State) error {
	if l.Name == "" {
		return fmt.Errorf("layer: name is required")
	}
	if state == Present && l.Path == "" {
		return fmt.Errorf("layer %s: path is required when state is present", l.Name)
	}
	return nil
}

// LayerResult is the reconciliation result for a layer version.
type LayerResult struct {
	LayerArn           string   `json:"layer_arn"`
	LayerVersionArn    string   `json:"layer_version_arn"`
	Description        string   `json:"description"`
	CreatedDate        string   `json:"created_date"`
	Version            int64    `json:"version"`
	CompatibleRuntimes []string `json:"compatible_runtimes,omitempty"`
	LicenseInfo        string   `json:"license_info,omitempty"`
	CodeSha256         string   `json:"code_sha_256"`
	CodeSize           int64    `json:"code_size"`
}

// Policy is the desired state of a Lambda invoke permission granted to an
// AWS service principal.
type Policy struct {
	FunctionName     string `yaml:"function_name"`
	Qualifier        string `yaml:"qualifier"`
	PrincipalService string `yaml:"principal_service"`
	SourceArn        string `yaml:"source_arn"`
}

func (p *Policy) Validate() error {
	if p.FunctionName == "" || p.PrincipalService == "" || p.SourceArn == "" {
		return fmt.Errorf("policy: function_name, principal_service and source_arn are required")
	}
	return nil
}

// PolicyResult is the reconciliation result for an invoke permission.
type PolicyResult struct {
	StatementID string `json:"statement_id"`
	FunctionArn string `json:"function_arn"`
	Principal   string `json:"principal"`
	SourceArn   string `json:"source_arn"`
}

// Rule is the desired state of a scheduled EventBridge rule targeting a
// Lambda function.
type Rule struct {
	RuleName           string `yaml:"rule_name"`
	ScheduleExpression string `yaml:"schedule_expression"`
	Description        string `yaml:"description"`
	FunctionName       string `yaml:"function_name"`
}

func (r *Rule) Validate(state State) error {
	if r.RuleName == "" {
		return fmt.Errorf("rule: rule_name is required")
	}
	if state != Absent && (r.FunctionName == "" || r.ScheduleExpression == "") {
		return fmt.Errorf("rule %s: function_name and schedule_expression are required unless state is absent", r.RuleName)
	}
	return nil
}

// RuleResult is the reconciliation result for a scheduled rule.
type RuleResult struct {
	RuleName           string `json:"rule_name"`
	ScheduleExpression string `json:"schedule_expression"`
	State              string `json:"state"`
	Description        string `json:"description"`
	RuleArn            string `json:"rule_arn,omitempty"`
}
