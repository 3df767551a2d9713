package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTrip(t *testing.T) {
	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	c := &Cursor{Version: CursorVersion, Page: 7, Since: since, Display: 100}

	decoded, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	assert.Equal(t, 7, decoded.Page)
	assert.Equal(t, 100, decoded.Display)
	assert.True(t, since.Equal(decoded.Since))

	for _, bad := range []string{"", "not base64!", "bnVsbA==", (&Cursor{Version: 9, Page: 1, Display: 1}).Encode()} {
		_, err := DecodeCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}
