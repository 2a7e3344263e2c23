package services

import (
	"strings"
	"unicode"
)

const minPasswordLen = 8

const msgWeakPassword = "Password must contain at least 8 characters, including lower-case, upper-case and a number"

// emailProblem returns the message to show when email is not an address in
// one of the allowed domains, or "" when it is acceptable. With no allowed
// domains any well-formed address is accepted.
func emailProblem(email string, allowedDomains []string) string {
	local, domain, ok := strings.Cut(email, "@")
	domain = strings.ToLower(domain)

	valid := ok && local != "" && domain != "" &&
		!strings.Contains(domain, "@") &&
		!strings.ContainsFunc(email, func(r rune) bool { return r == ' ' || unicode.IsControl(r) })
	if valid && len(allowedDomains) == 0 && strings.Contains(domain, ".") {
		return ""
	}
	if valid {
		for _, d := range allowedDomains {
			if domain == strings.ToLower(d) {
				return ""
			}
		}
	}

	if len(allowedDomains) == 0 {
		return "Please use a valid email address"
	}
	return "Please use an " + strings.Join(allowedDomains, " or ") + " email address"
}

// passwordProblem returns the message to show when password does not meet
// the strength policy, or "" when it does.
func passwordProblem(password string) string {
	if len(password) < minPasswordLen {
		return msgWeakPassword
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return msgWeakPassword
	}
	return ""
}
