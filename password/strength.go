package password

import "unicode"

// Policy describes the password-strength requirements enforced before any
// account write happens.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy is the strength policy applied to organization registration.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      12,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: false,
	}
}

// Check reports whether plain satisfies the policy. Problems lists every
// failed requirement so a caller can surface all of them at once.
func (p Policy) Check(plain string) (valid bool, problems []string) {
	runes := []rune(plain)
	if len(runes) < p.MinLength {
		problems = append(problems, "too short")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range runes {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if p.RequireUpper && !hasUpper {
		problems = append(problems, "missing uppercase letter")
	}
	if p.RequireLower && !hasLower {
		problems = append(problems, "missing lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		problems = append(problems, "missing digit")
	}
	if p.RequireSpecial && !hasSpecial {
		problems = append(problems, "missing special character")
	}

	return len(problems) == 0, problems
}
