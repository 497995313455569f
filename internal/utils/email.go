package utils

import (
	"net/mail"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"golang.org/x/net/publicsuffix"
)

// NormalizeEmail returns the lowercase bare address, or "" if the input is not an address.
func NormalizeEmail(email string) string {
	email = ExtractEmailAddress(email)
	if email == "" {
		return ""
	}
	validation := mailvalidate.ValidateEmailSyntax(email)
	if validation.IsValid && validation.CleanEmail != "" {
		return strings.ToLower(validation.CleanEmail)
	}
	if strings.Count(email, "@") != 1 {
		return ""
	}
	return strings.ToLower(email)
}

// ExtractEmailAddress strips a display name ("Name <a@b.com>") and surrounding whitespace.
func ExtractEmailAddress(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(value); err == nil {
		return addr.Address
	}
	if start, end := strings.LastIndex(value, "<"), strings.LastIndex(value, ">"); start >= 0 && end > start {
		value = value[start+1 : end]
	}
	return strings.Trim(strings.TrimSpace(value), "<>\"'")
}

func ExtractDomainFromEmail(email string) string {
	email = ExtractEmailAddress(email)
	if email == "" {
		return ""
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// RegistrableDomain reduces mail.eu.acme.co.uk to acme.co.uk.
func RegistrableDomain(domain string) string {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return ""
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return domain
	}
	return etld1
}
