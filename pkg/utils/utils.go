// Package utils provides utility functions for cla-bot.
package utils

import (
	"fmt"
	"strings"
	"unicode"
)

// SanitizeSlug returns a normalized version of the given organization slug.
// Slugs are matched case-insensitively, so they are stored lowercased.
func SanitizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// ValidateLogin returns an error if the given login is not a valid GitHub
// account name.
func ValidateLogin(login string) error {
	if login == "" {
		return fmt.Errorf("login cannot be empty")
	}

	if len(login) > 39 {
		return fmt.Errorf("login cannot be longer than 39 characters")
	}

	if strings.HasPrefix(login, "-") || strings.HasSuffix(login, "-") {
		return fmt.Errorf("login cannot start or end with a hyphen")
	}

	for _, r := range login {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
			return fmt.Errorf("login can only contain letters, numbers, and hyphens")
		}
	}

	return nil
}
