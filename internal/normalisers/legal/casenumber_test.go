package legal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

func testRules(t *testing.T) *Rules {
	t.Helper()
	r, err := DefaultRules()
	require.NoError(t, err)
	return r
}

func TestCanonicalize_CourtForms(t *testing.T) {
	r := testRules(t)

	tests := []struct {
		raw    string
		number string
		court  string
	}{
		{"서울고등법원(인천)-2025-누-10220", "2025누10220", "서울고등법원(인천)"},
		{"원주지원-2023-가단-59850", "2023가단59850", "원주지원"},
		{"서울고등법원2025누6453", "2025누6453", "서울고등법원"},
		{"대법원2025다210731 (2025.5.15)", "2025다210731", "대법원"},
		{"수원지방법원-2024나70449", "2024나70449", "수원지방법원"},
		{"서울중앙지방법원-2024-가단-5506074(2025.5.13.)", "2024가단5506074", "서울중앙지방법원"},
		{"춘천지방법원-2025구합-30095", "2025구합30095", "춘천지방법원"},
		{"수원지방법원 안산지원-2024-가단-90439(2025.3.12.)", "2024가단90439", "수원지방법원안산지원"},
		{"의정부지방법원남양주지원2023가단42925 (2025.2.18)", "2023가단42925", "의정부지방법원남양주지원"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := r.Canonicalize(tt.raw)
			assert.Equal(t, tt.number, got.Number)
			assert.Equal(t, tt.court, got.Court)
			assert.Equal(t, domain.ProvenanceAsserted, got.CourtProvenance)
		})
	}
}

func TestCanonicalize_InfersFromSuffix(t *testing.T) {
	r := testRules(t)

	tests := []struct {
		raw      string
		court    string
		category string
	}{
		{"2021다252977", "대법원", "민사"},
		{"2024구합92890", "행정법원", "일반행정"},
		{"2025누6453", "고등법원", "일반행정"},
		{"2020헌마123", "헌법재판소", "헌법소원심판"},
		{"2019도 1234", "대법원", "형사"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := r.Canonicalize(tt.raw)
			assert.Equal(t, tt.court, got.Court)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, domain.ProvenanceInferred, got.CourtProvenance)
			assert.Equal(t, domain.ProvenanceInferred, got.CategoryProvenance)
		})
	}
}

func TestCanonicalize_UnknownShapes(t *testing.T) {
	r := testRules(t)

	got := r.Canonicalize("21-0123")
	assert.Equal(t, "21-0123", got.Number)
	assert.Empty(t, got.Court)
	assert.Equal(t, domain.ProvenanceUnknown, got.CourtProvenance)

	got = r.Canonicalize("2020쀍123")
	assert.Equal(t, "2020쀍123", got.Number)
	assert.Equal(t, "쀍", got.Suffix)
	assert.Equal(t, domain.ProvenanceUnknown, got.CourtProvenance)

	got = r.Canonicalize("춘천지방법원-20274-구합*318")
	assert.Equal(t, "춘천지방법원-20274-구합318", got.Number)
}

func TestCanonicalize_Idempotent(t *testing.T) {
	r := testRules(t)

	inputs := []string{
		"서울고등법원(인천)-2025-누-10220",
		"원주지원-2023-가단-59850",
		"서울고등법원2025누6453",
		"2024구합92890",
		"2021다252977",
		" 2021 다 252977 ",
		"대법원2025다210731 (2025.5.15)",
		"춘천지방법원-20274-구합*318",
		"21-0123",
		"X(2020.1.1)(2020.1.2)",
		"",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			once := r.Canonicalize(in).Number
			twice := r.Canonicalize(once).Number
			assert.Equal(t, once, twice)
		})
	}
}

func TestRules_LookupLongestSuffix(t *testing.T) {
	r := testRules(t)

	rule, ok := r.Lookup("가합")
	require.True(t, ok)
	assert.Equal(t, "지방법원", rule.Court)

	rule, ok = r.Lookup("헌바")
	require.True(t, ok)
	assert.Equal(t, "헌법재판소", rule.Court)

	_, ok = r.Lookup("쀍")
	assert.False(t, ok)
}

func TestLoadRules_Validation(t *testing.T) {
	_, err := LoadRules([]byte(`suffixes: [{suffix: 다}]`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = LoadRules([]byte(`suffixes: [{suffix: 다, court: a}, {suffix: 다, court: b}]`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
