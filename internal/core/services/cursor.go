package services

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidCursor indicates a checkpoint cursor that cannot be decoded.
var ErrInvalidCursor = errors.New("invalid sync cursor")

// CursorVersion is the current cursor schema version.
const CursorVersion = 1

// Cursor is the page position saved in a sync checkpoint.
type Cursor struct {
	// Version is the schema version for future migrations.
	Version int `json:"v"`

	// Page is the last fully processed listing page.
	Page int `json:"page"`

	// Since is the listing date filter of the run, zero for full walks.
	Since time.Time `json:"since"`

	// Display is the page size the page numbers refer to.
	Display int `json:"display"`
}

// Encode serializes the cursor to a base64-encoded JSON string.
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor deserializes a cursor from a base64-encoded JSON string.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, ErrInvalidCursor
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, ErrInvalidCursor
	}
	if cursor.Version != CursorVersion || cursor.Page < 1 || cursor.Display < 1 {
		return nil, ErrInvalidCursor
	}
	return &cursor, nil
}
