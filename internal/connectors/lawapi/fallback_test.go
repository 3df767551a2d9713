package lawapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

func TestDocumentPagePath(t *testing.T) {
	tests := []struct {
		kind domain.DocumentKind
		want string
	}{
		{domain.KindCase, "/LSW/precInfoP.do?precSeq=608687&mode=0"},
		{domain.KindConstitutional, "/LSW/detcInfoP.do?detcSeq=608687"},
		{domain.KindInterpretation, "/LSW/expcInfoP.do?expcSeq=608687"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := documentPagePath(tt.kind, "608687")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := documentPagePath("statute", "1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFindFrame_ResolvesAgainstPageURL(t *testing.T) {
	doc, err := parseHTML([]byte(casePage))
	require.NoError(t, err)

	got, ok := findFrame(doc, "https://www.law.go.kr/LSW/precInfoP.do?precSeq=608687")
	require.True(t, ok)
	assert.Equal(t, "https://www.law.go.kr/LSW/precInfoR.do?precSeq=608687", got)
}

func TestFindFrame_NoFrame(t *testing.T) {
	doc, err := parseHTML([]byte(caseFrame))
	require.NoError(t, err)

	_, ok := findFrame(doc, "https://www.law.go.kr/")
	assert.False(t, ok)
}

func TestExtractMarkup_SectionsAndHeader(t *testing.T) {
	doc, err := parseHTML([]byte(caseFrame))
	require.NoError(t, err)

	got, err := extractMarkup(doc)
	require.NoError(t, err)

	assert.Equal(t, "손해배상(기)", got.Title)
	assert.Equal(t, "대법원", got.CourtName)
	assert.Equal(t, "2020.1.1.", got.DecisionDate)
	assert.Equal(t, "2019다12345", got.CaseNumber)
	assert.Contains(t, got.Sections["판시사항"], "국가배상책임의 성립 요건")
	assert.Contains(t, got.Sections["판시사항"], "과실의 판단 기준")
	assert.Equal(t, "공무원의 직무집행 중 과실", got.Sections["판결요지"])
	assert.Equal(t, "민법 제750조", got.Sections["참조조문"])
}

func TestExtractMarkup_EmptyPageIsMalformed(t *testing.T) {
	doc, err := parseHTML([]byte(`<html><body><div></div></body></html>`))
	require.NoError(t, err)

	_, err = extractMarkup(doc)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}
