// Package ghoutput publishes command results as GitHub Actions step outputs.
package ghoutput

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// EnvVar names the file GitHub Actions reads step outputs from.
const EnvVar = "GITHUB_OUTPUT"

// Path returns the step output file, or "" outside of GitHub Actions.
func Path() string {
	return strings.TrimSpace(os.Getenv(EnvVar))
}

// Write appends values to the output file at path, sorted by key. An empty path or value set is a no-op.
// Multi-line values use the delimiter form so they survive verbatim.
func Write(path string, values map[string]string) error {
	if path == "" || len(values) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open step output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	keys := make([]string, 0, len(values))
	for k := range values {
		if strings.TrimSpace(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		writeValue(&b, key, values[key])
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write step outputs: %w", err)
	}
	return nil
}

func writeValue(b *strings.Builder, key, value string) {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	if !strings.Contains(value, "\n") {
		fmt.Fprintf(b, "%s=%s\n", key, value)
		return
	}
	delim := "EOF_" + uuid.NewString()
	fmt.Fprintf(b, "%s<<%s\n%s\n%s\n", key, delim, strings.TrimSuffix(value, "\n"), delim)
}
