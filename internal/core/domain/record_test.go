package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalRecord_EmbeddingText(t *testing.T) {
	r := &CanonicalRecord{SearchText: "손해배상 2019다12345", SummaryText: "요지"}
	text, tt := r.EmbeddingText()
	assert.Equal(t, "손해배상 2019다12345", text)
	assert.Equal(t, TextTypeSearch, tt)

	r.SearchText = "  "
	text, tt = r.EmbeddingText()
	assert.Equal(t, "요지", text)
	assert.Equal(t, TextTypeSummary, tt)
}

func TestCanonicalRecord_DecisionDateString(t *testing.T) {
	r := &CanonicalRecord{}
	assert.Equal(t, "", r.DecisionDateString())

	r.DecisionDate = time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2023-12-15", r.DecisionDateString())
}

func TestRecordFilter_Matches(t *testing.T) {
	r := &CanonicalRecord{
		CourtName:    "대법원",
		CategoryName: "민사",
		DecisionDate: time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, RecordFilter{}.IsZero())
	assert.True(t, RecordFilter{}.Matches(r))
	assert.True(t, RecordFilter{CourtName: "대법원"}.Matches(r))
	assert.False(t, RecordFilter{CourtName: "헌법재판소"}.Matches(r))
	assert.False(t, RecordFilter{CategoryName: "형사"}.Matches(r))
	assert.True(t, RecordFilter{From: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)}.Matches(r))
	assert.False(t, RecordFilter{From: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)}.Matches(r))
	assert.False(t, RecordFilter{To: time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)}.Matches(r))
	assert.False(t, RecordFilter{}.Matches(nil))
}

func TestRawFieldMap_Merge(t *testing.T) {
	detail := NewRawFieldMap(KindCase, FormatStructured)
	detail.Fields[FieldTitle] = "상세 제목"
	detail.Fields[FieldFullText] = "전문"

	listing := NewRawFieldMap(KindCase, FormatStructured)
	listing.Fields[FieldTitle] = "목록 제목"
	listing.Fields[FieldCourtName] = "대법원"

	merged := detail.Merge(listing)
	assert.Equal(t, "상세 제목", merged.Get(FieldTitle))
	assert.Equal(t, "대법원", merged.Get(FieldCourtName))
	assert.Equal(t, "전문", merged.Get(FieldFullText))
	assert.False(t, merged.Has(FieldSummaryText))
}

func TestEmbeddingEntry_Key(t *testing.T) {
	e := EmbeddingEntry{Kind: KindCase, SerialNumber: "1", ModelIdentifier: "m", TextType: TextTypeSearch}
	assert.Equal(t, "case:1:m:searchText", e.Key().String())
}

func TestPreview(t *testing.T) {
	short := "짧은 글"
	assert.Equal(t, short, Preview(short))

	long := strings.Repeat("가", PreviewLength+10)
	assert.Equal(t, PreviewLength, len([]rune(Preview(long))))
}
