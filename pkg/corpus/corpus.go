// Package corpus loads and normalises training text.
package corpus

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
)

// Load reads path and normalises it.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Normalize(string(data)), nil
}

// Normalize lower-cases text and collapses whitespace inside each line,
// keeping the line structure.
func Normalize(text string) string {
	lines := strings.Split(strings.ToLower(text), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}

// Lines returns the non-empty lines of text; each is trained on as a
// separate source text.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Hash is a short content fingerprint recorded in manifests.
func Hash(text string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(text)))[:16]
}
