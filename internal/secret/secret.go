// Package secret formats secret values for safe external display.
package secret

import "strings"

// Mask obscures a secret value. Short values are replaced entirely; longer
// values keep the first and last two characters so an operator can still
// recognise which credential is in play.
func Mask(v string) string {
	n := len(v)

	switch {
	case n == 0:
		return ""
	case n <= 4:
		return strings.Repeat("*", n)
	default:
		return v[:2] + strings.Repeat("*", n-4) + v[n-2:]
	}
}
