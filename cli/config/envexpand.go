// Package config handles sluice.yaml loading.
package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} references with values from
// the environment. A set but empty variable takes the default.
//
// Unset variables without defaults expand to the empty string; required
// values (url, adapter target) fail later validation instead.
func ExpandEnv(input string) string {
	matches := envVarPattern.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	last := 0
	for _, m := range matches {
		b.WriteString(input[last:m[0]])
		last = m[1]

		if v := os.Getenv(input[m[2]:m[3]]); v != "" {
			b.WriteString(v)
		} else if m[4] >= 0 {
			b.WriteString(input[m[4]:m[5]])
		}
	}
	b.WriteString(input[last:])
	return b.String()
}
