package reconcile

import "reflect"

// Equal reports whether two attribute values match. Mappings are compared
// structurally over the union of their keys, so a key present on only one
// side counts as a difference, not just differing values. Everything else,
// including slices (where order matters), is compared by plain value
// equality.
func Equal(a, b any) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if aok || bok {
		if !aok || !bok {
			return false
		}
		for key := range am {
			if _, ok := bm[key]; !ok {
				return false
			}
		}
		for key := range bm {
			if _, ok := am[key]; !ok {
				return false
			}
			if !Equal(am[key], bm[key]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// changedKeys returns the keys of local whose values differ from remote.
// remote is expected to be a projection onto local's key set; a key missing
// from remote compares against nil.
func changedKeys(local, remote map[string]any) []string {
	var changed []string
	for key, value := range local {
		if !Equal(value, remote[key]) {
			changed = append(changed, key)
		}
	}
	return changed
}
