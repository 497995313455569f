package analytics

import (
	"strings"

	"github.com/customeros/mailtrack/internal/utils"
)

const (
	ProviderGmail       = "Gmail"
	ProviderOutlook     = "Outlook"
	ProviderYahoo       = "Yahoo"
	ProviderEducational = "Educational"
	ProviderGovernment  = "Government"
	ProviderCorporate   = "Corporate"
	ProviderUnknown     = "Unknown"
)

// EmailProvider buckets a recipient address by mailbox provider. Rules are
// applied in order against the lowercased domain.
func EmailProvider(email string) string {
	domain := utils.ExtractDomainFromEmail(email)
	if domain == "" {
		return ProviderUnknown
	}
	switch {
	case strings.Contains(domain, "gmail"):
		return ProviderGmail
	case strings.Contains(domain, "outlook"), strings.Contains(domain, "hotmail"), strings.Contains(domain, "live"):
		return ProviderOutlook
	case strings.Contains(domain, "yahoo"):
		return ProviderYahoo
	case strings.Contains(domain, ".edu"):
		return ProviderEducational
	case strings.Contains(domain, ".gov"):
		return ProviderGovernment
	default:
		return ProviderCorporate
	}
}
