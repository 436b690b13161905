package config

import (
	"fmt"
	"strings"

	"github.com/amr9/crossloadgen/pkg/models"
)

// ValidationError represents a single validation error with context and suggestions.
type ValidationError struct {
	Field      string // Field path (e.g., "wave.rps")
	Value      string // The actual value provided (if any)
	Message    string // Error description
	Expected   string // Expected format/type
	Hint       string // Helpful suggestion
	DidYouMean string // Typo correction suggestion
}

// ValidationResult holds all validation errors.
type ValidationResult struct {
	Errors []ValidationError
}

func (v *ValidationResult) Add(err ValidationError) {
	v.Errors = append(v.Errors, err)
}

func (v *ValidationResult) HasErrors() bool {
	return len(v.Errors) > 0
}

// FormatErrors formats all errors into a user-friendly string.
func (v *ValidationResult) FormatErrors() string {
	if !v.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\nConfiguration errors:\n")

	for i, err := range v.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %s\n", i+1, err.Field))

		if err.Value != "" {
			sb.WriteString(fmt.Sprintf("     |- Value: %q\n", truncate(err.Value, 50)))
		}

		sb.WriteString(fmt.Sprintf("     |- Error: %s\n", err.Message))

		if err.Expected != "" {
			sb.WriteString(fmt.Sprintf("     |- Expected: %s\n", err.Expected))
		}

		if err.DidYouMean != "" {
			sb.WriteString(fmt.Sprintf("     |- Did you mean: %q?\n", err.DidYouMean))
		}

		if err.Hint != "" {
			sb.WriteString(fmt.Sprintf("     `- Hint: %s\n", err.Hint))
		}
	}

	return sb.String()
}

var validUIDModes = []string{string(models.UIDModeFixed), string(models.UIDModeRandom), string(models.UIDModePool)}
var validVariants = []string{string(models.VariantStandard), string(models.VariantStandardPlusStatic)}

var fieldHints = map[string]string{
	"target.base_url": "Provide the full target base URL including protocol (e.g., https://crossword.example.com)",
	"target.series":   "The tenant/set identifier used on the date-picker and crossword endpoints",
	"uid.mode":        "One of: fixed, random, pool",
	"wave.rps":        "Requests per second as a positive integer (e.g., 50)",
	"wave.duration":   "Wave duration in whole seconds (e.g., 60)",
	"replay.file":     "Path to a JSONL trace file",
	"replay.speed":    "Positive float speed factor (e.g., 2.0 for 2x)",
}

// levenshteinDistance calculates the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min3(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// FindClosestMatch finds the closest matching option from a list of valid ones.
func FindClosestMatch(input string, validOptions []string) string {
	if input == "" {
		return ""
	}

	bestMatch := ""
	bestDistance := 100

	for _, option := range validOptions {
		distance := levenshteinDistance(input, option)
		if distance < bestDistance && distance <= len(option)/2+1 {
			bestDistance = distance
			bestMatch = option
		}
	}

	if strings.EqualFold(input, bestMatch) {
		return ""
	}

	return bestMatch
}

func GetHint(field string) string {
	return fieldHints[field]
}

// ValidateEnum checks a value against a closed set and suggests a correction.
func ValidateEnum(value string, valid []string) (bool, string) {
	for _, v := range valid {
		if strings.EqualFold(value, v) {
			return true, ""
		}
	}
	return false, FindClosestMatch(value, valid)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
