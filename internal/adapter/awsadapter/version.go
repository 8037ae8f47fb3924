package awsadapter

import "fmt"

// nextVersionedName finds the first "oracle-nonce-vN" name for which
// exists returns false, starting from v1. Mirrors the local adapter's
// secretVersionRe-based version scan without needing to list every
// existing secret first.
func nextVersionedName(exists func(name string) bool) string {
	for v := 1; ; v++ {
		name := fmt.Sprintf("oracle-nonce-v%d", v)
		if !exists(name) {
			return name
		}
	}
}
