package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailProvider(t *testing.T) {
	cases := map[string]string{
		"a@gmail.com":       ProviderGmail,
		"a@googlemail.com":  ProviderCorporate,
		"a@outlook.com":     ProviderOutlook,
		"a@hotmail.co.uk":   ProviderOutlook,
		"a@live.com":        ProviderOutlook,
		"a@yahoo.fr":        ProviderYahoo,
		"a@cs.stanford.edu": ProviderEducational,
		"a@agency.gov":      ProviderGovernment,
		"a@acme.io":         ProviderCorporate,
		"Bob <b@GMAIL.com>": ProviderGmail,
		"not-an-address":    ProviderUnknown,
		"":                  ProviderUnknown,
	}
	for email, expected := range cases {
		assert.Equal(t, expected, EmailProvider(email), email)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, percent(5, 0, 1))
	assert.Equal(t, 100.0, percent(1, 1, 1))
	assert.Equal(t, 33.3, percent(1, 3, 1))
	assert.Equal(t, 66.67, percent(2, 3, 2))
}
