package ociadapter

import "fmt"

// nextVersionedName finds the first "oracle-nonce-vN" name for which
// exists returns false, starting from v1.
func nextVersionedName(exists func(name string) bool) string {
	for v := 1; ; v++ {
		name := fmt.Sprintf("oracle-nonce-v%d", v)
		if !exists(name) {
			return name
		}
	}
}
