package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKind_Target(t *testing.T) {
	assert.Equal(t, "prec", KindCase.Target())
	assert.Equal(t, "detc", KindConstitutional.Target())
	assert.Equal(t, "expc", KindInterpretation.Target())
	assert.Equal(t, "", DocumentKind("statute").Target())
	assert.False(t, DocumentKind("statute").Valid())
}

func TestParseDocumentKind(t *testing.T) {
	tests := []struct {
		in   string
		want DocumentKind
	}{
		{"case", KindCase},
		{"prec", KindCase},
		{" DETC ", KindConstitutional},
		{"interpretation", KindInterpretation},
		{"expc", KindInterpretation},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDocumentKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseDocumentKind("law")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseDocumentKinds(t *testing.T) {
	all, err := ParseDocumentKinds("all")
	require.NoError(t, err)
	assert.Equal(t, AllKinds(), all)

	empty, err := ParseDocumentKinds("")
	require.NoError(t, err)
	assert.Len(t, empty, 3)

	some, err := ParseDocumentKinds("prec,expc,prec")
	require.NoError(t, err)
	assert.Equal(t, []DocumentKind{KindCase, KindInterpretation}, some)

	_, err = ParseDocumentKinds("prec,nope")
	assert.Error(t, err)
}

func TestJobName(t *testing.T) {
	assert.Equal(t, "full:prec", JobName(SyncModeFull, KindCase))
	assert.Equal(t, "incremental:detc", JobName(SyncModeIncremental, KindConstitutional))
}
