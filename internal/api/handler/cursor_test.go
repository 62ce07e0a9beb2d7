package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhixter/arapointx-sub002/internal/api/storage"
)

func TestJobCursorRoundTrip(t *testing.T) {
	original := &storage.JobCursor{
		CreatedAt: time.Unix(0, 1724932800123456789),
		JobID:     "7b8a0f2e-4c1d-4f2a-9b3c-1d2e3f4a5b6c",
	}

	encoded, err := EncodeJobCursor(original)
	require.NoError(t, err)

	decoded, err := DecodeJobCursor(encoded)
	require.NoError(t, err)
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, original.JobID, decoded.JobID)
}

func TestDecodeJobCursor_Empty(t *testing.T) {
	cursor, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeJobCursor_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "not base64",
			input: "not-base64!!!",
		},
		{
			name:  "missing separator",
			input: base64.StdEncoding.EncodeToString([]byte("1724932800123456789")),
		},
		{
			name:  "too many parts",
			input: base64.StdEncoding.EncodeToString([]byte("1|2|3")),
		},
		{
			name:  "non-numeric timestamp",
			input: base64.StdEncoding.EncodeToString([]byte("abc|job-1")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJobCursor(tt.input)
			assert.Error(t, err)
		})
	}
}
