package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lamctl/lamctl/providers/aws"
)

// loadSpec decodes the YAML desired-state file into spec, rejecting unknown
// keys so typos surface instead of silently defaulting.
func loadSpec(path string, spec any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(spec); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func newClients(ctx context.Context, region string) (*aws.Clients, error) {
	return aws.New(ctx, region)
}

// printOutcome writes the reconciliation outcome as JSON on stdout.
func printOutcome(changed bool, result any) error {
	out := struct {
		Changed bool `json:"changed"`
		Result  any  `json:"result,omitempty"`
	}{Changed: changed, Result: result}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
