// Package idgen provides short, URL-safe task IDs backed by nanoid.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultPrefix is prepended to IDs of tasks outside any project.
var DefaultPrefix = "tk-"

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// maxProjectPrefix bounds the project part of a prefix.
const maxProjectPrefix = 12

// Generate returns a new unique ID using the default prefix.
func Generate() (string, error) {
	return GenerateWithPrefix(DefaultPrefix)
}

// ForProject returns a new ID prefixed with a slug of projectID, e.g.
// "web-3hT9xQ2LkP" for project "Web". An empty or unusable project name
// falls back to DefaultPrefix.
func ForProject(projectID string) (string, error) {
	slug := projectSlug(projectID)
	if slug == "" {
		return Generate()
	}
	return GenerateWithPrefix(slug + "-")
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// projectSlug keeps the lowercase ASCII letters and digits of name.
func projectSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == maxProjectPrefix {
				break
			}
		}
	}
	return b.String()
}
