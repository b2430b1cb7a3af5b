package security

import (
	"regexp"
	"unicode"
)

// MinPasswordLength is the shortest password accepted for a portal account.
const MinPasswordLength = 6

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9\-._@+]+$`)

// CheckPasswordPolicy returns one human-readable reason per rule the
// password breaks, or nil when it satisfies all of them.
func CheckPasswordPolicy(password string) []string {
	var (
		reasons                      []string
		hasDigit, hasLower, hasUpper bool
		hasSymbol                    bool
	)
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case !unicode.IsLetter(r):
			hasSymbol = true
		}
	}

	if len([]rune(password)) < MinPasswordLength {
		reasons = append(reasons, "password must be at least 6 characters")
	}
	if !hasSymbol {
		reasons = append(reasons, "password must contain at least one non alphanumeric character")
	}
	if !hasDigit {
		reasons = append(reasons, "password must contain at least one digit")
	}
	if !hasLower {
		reasons = append(reasons, "password must contain at least one lowercase letter")
	}
	if !hasUpper {
		reasons = append(reasons, "password must contain at least one uppercase letter")
	}
	return reasons
}

// ValidUsername reports whether the username only uses the allowed characters.
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}
