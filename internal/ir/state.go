package ir

import "fmt"

// State selects the target state of a reconciled resource.
type State string

const (
	Present State = "present"
	Absent  State = "absent"

	// Rules additionally distinguish enabled from disabled; both converge
	// the rule to exist, differing only in the remote State attribute.
	Enabled  State = "enabled"
	Disabled State = "disabled"
)

// ParseState validates a state string against the allowed set.
func ParseState(s string, allowed ...State) (State, error) {
	if len(allowed) == 0 {
		allowed = []State{Present, Absent}
	}
	for _, a := range allowed {
		if State(s) == a {
			return a, nil
		}
	}
	return "", fmt.Errorf("invalid state %q, expected one of %v", s, allowed)
}
