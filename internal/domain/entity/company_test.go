package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompanyFromDraftCarriesBrandAssets(t *testing.T) {
	draft := &CompanyDraft{
		Language:       "ar",
		CompanyName:    "Acme",
		Industry:       "retail",
		Goals:          []string{"awareness"},
		LogoRef:        "https://cdn.example.com/logo.png",
		BrandColors:    []string{"#112233", "#445566"},
		BrandFonts:     []string{"Cairo", "Inter"},
		Assets:         []string{"deck.pdf"},
		DesignPrefs:    "minimal, lots of whitespace",
		TargetAudience: "SMB owners",
	}

	company, err := NewCompanyFromDraft("tenant-1", "session-1", draft)
	require.NoError(t, err)

	assets, err := company.Brand()
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/logo.png", assets.LogoURL)
	assert.Equal(t, []string{"#112233", "#445566"}, assets.Colors)
	assert.Equal(t, "Cairo, Inter", assets.Typography)
	assert.Equal(t, "minimal, lots of whitespace", assets.DesignPrefs)
	assert.Equal(t, []string{"deck.pdf"}, assets.Assets)

	require.NotNil(t, company.SessionID)
	assert.Equal(t, "session-1", *company.SessionID)
	assert.Equal(t, "ar", company.Language)
}

func TestNewCompanyFromDraftDefaultsLanguage(t *testing.T) {
	company, err := NewCompanyFromDraft("tenant-1", "session-1", &CompanyDraft{CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "en", company.Language)
}
