// Package validate provides centralized input validation and sanitization
// utilities for the AgriNet forum API. It includes protection against SQL
// injection and XSS in user-generated text.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrSQLKeyword        = errors.New("string contains SQL keywords")
	ErrEmpty             = errors.New("string is empty")
)

// Common SQL keywords to detect potential SQL injection attempts
// This is a basic defense layer; parameterized queries are the primary defense
var sqlKeywords = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "EXEC", "EXECUTE", "UNION",
	"--", "/*", "*/", ";--", "xp_", "sp_",
}

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength        int            // Minimum length (0 = no minimum)
	MaxLength        int            // Maximum length (0 = no maximum)
	AllowedPattern   *regexp.Regexp // Optional regex pattern for allowed characters
	CheckSQLKeywords bool           // Whether to check for SQL keywords
	AllowEmpty       bool           // Whether empty strings are allowed
	TrimSpace        bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Character count, not byte count
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	if constraints.CheckSQLKeywords {
		if err := checkSQLKeywords(s); err != nil {
			return "", err
		}
	}

	return s, nil
}

// checkSQLKeywords checks if the string contains common SQL keywords.
// This is a basic heuristic check; parameterized queries are the real defense.
func checkSQLKeywords(s string) error {
	upper := strings.ToUpper(s)
	for _, keyword := range sqlKeywords {
		if strings.Contains(upper, keyword) {
			return fmt.Errorf("%w: contains %q", ErrSQLKeyword, keyword)
		}
	}
	return nil
}

// SanitizeHTML escapes HTML special characters to prevent XSS attacks.
// This should be called on all user-generated text that will be displayed in HTML.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// SanitizeString performs both validation and HTML sanitization.
// Returns the sanitized string and an error if validation fails.
func SanitizeString(s string, constraints StringConstraints) (string, error) {
	validated, err := String(s, constraints)
	if err != nil {
		return "", err
	}
	return SanitizeHTML(validated), nil
}

// communityPattern allows letters, numbers, spaces, ampersand, dash, and
// period, covering tags like "Disease & Pests".
var communityPattern = regexp.MustCompile(`^[A-Za-z0-9 &\-\.]+$`)

// QuestionText validates a farmer's question:
// - Required (not empty)
// - Max 2000 characters
//
// Not HTML-escaped: the stored question must round-trip byte-for-byte
// ("peas & beans" stays "peas & beans") and is a substring-match target
// for ranking. Escaping is a render-time concern for the UI layer.
func QuestionText(question string) (string, error) {
	return String(question, StringConstraints{
		MinLength:        1,
		MaxLength:        2000,
		CheckSQLKeywords: false, // farming questions legitimately mention "crop selection" etc.
		AllowEmpty:       false,
		TrimSpace:        true,
	})
}

// CommunityName validates a community tag:
// - 1-100 characters
// - Letters, numbers, spaces, ampersand, dash, period only
//
// Not HTML-escaped: the tag is matched byte-for-byte against stored
// entries, and escaping "&" would break tags like "Disease & Pests".
// The allowed pattern already excludes markup characters.
func CommunityName(name string) (string, error) {
	return String(name, StringConstraints{
		MinLength:        1,
		MaxLength:        100,
		AllowedPattern:   communityPattern,
		CheckSQLKeywords: false,
		AllowEmpty:       false,
		TrimSpace:        true,
	})
}

// KeywordList validates raw comma-separated keyword input:
// - Optional (can be empty)
// - Max 500 characters
//
// Not HTML-escaped: tokens feed substring matching against stored text,
// where entity escapes would silently break matches.
func KeywordList(raw string) (string, error) {
	return String(raw, StringConstraints{
		MinLength:  0,
		MaxLength:  500,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}
