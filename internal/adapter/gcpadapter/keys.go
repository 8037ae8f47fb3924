package gcpadapter

import "strings"

// firestoreSafeKey replaces the one character Firestore document IDs
// can't contain that this package's composite keys could plausibly
// carry (a literal "/", if a ruleId or orgId ever embedded one).
func firestoreSafeKey(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}
