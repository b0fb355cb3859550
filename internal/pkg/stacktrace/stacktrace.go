// Package stacktrace trims raw goroutine stacks down to the frames that
// belong to this module, for compact panic logs.
package stacktrace

import "strings"

const marker = "/internal/"

// InternalPaths returns the "internal/<pkg>/<file>.go:<line>" locations found
// in a raw stack trace as produced by runtime/debug.Stack.
func InternalPaths(stack []byte) []string {
	lines := strings.Split(string(stack), "\n")
	paths := make([]string, 0, len(lines)/2)

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, marker) {
			continue
		}

		file, rest, ok := strings.Cut(line, ".go:")
		if !ok {
			continue
		}
		lineNo, _, _ := strings.Cut(rest, " ")

		idx := strings.Index(file, marker)
		paths = append(paths, file[idx+1:]+".go:"+lineNo)
	}

	return paths
}
