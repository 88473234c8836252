package security

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// MaxPasswordBytes is bcrypt's input limit; longer secrets cannot be hashed.
const MaxPasswordBytes = 72

// PasswordSpecialChars is the set counted as special characters.
const PasswordSpecialChars = "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~"

// Password rule identifiers reported when a password fails the policy.
const (
	RuleMinLength = "min_length"
	RuleMaxLength = "max_length"
	RuleUpper     = "uppercase"
	RuleLower     = "lowercase"
	RuleDigit     = "digit"
	RuleSpecial   = "special"
)

// CheckPasswordPolicy returns the rules password fails, in a fixed order; empty means acceptable.
// Used for account passwords and success passwords alike.
func CheckPasswordPolicy(password string) []string {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSpecialChars, r):
			special = true
		}
	}
	var failed []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		failed = append(failed, RuleMinLength)
	}
	if len(password) > MaxPasswordBytes {
		failed = append(failed, RuleMaxLength)
	}
	if !upper {
		failed = append(failed, RuleUpper)
	}
	if !lower {
		failed = append(failed, RuleLower)
	}
	if !digit {
		failed = append(failed, RuleDigit)
	}
	if !special {
		failed = append(failed, RuleSpecial)
	}
	return failed
}
