package connpager

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Cursor_String_DecodeCursor(t *testing.T) {
	tests := []struct {
		name   string
		cursor Cursor
		want   Cursor
	}{
		{
			name:   "ordered cursor",
			cursor: NewCursor([]any{"users"}, 30, "Bob"),
			want:   Cursor{"users", []any{int64(30), "Bob"}},
		},
		{
			name:   "row number cursor",
			cursor: NewRowNumberCursor(nil, 7),
			want:   Cursor{int64(7)},
		},
		{
			name:   "floats and nulls",
			cursor: NewCursor(nil, 1.5, nil, true),
			want:   Cursor{[]any{1.5, nil, true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.cursor.String()
			require.NotEmpty(t, token)

			got, err := DecodeCursor(token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, token, got.String(), "re-encoding must give the same token")
		})
	}
}

func Test_DecodeCursor_errors(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"empty token is no cursor", "", false},
		{"not base64", "!!!", true},
		{"not json", _encoder.EncodeToString([]byte("{")), true},
		{"not a list", _encoder.EncodeToString([]byte(`{"a":1}`)), true},
		{"list", _encoder.EncodeToString([]byte(`[1]`)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("%s: got error = %v, want error = %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func Test_Cursor_IsEmpty(t *testing.T) {
	assert.True(t, Cursor(nil).IsEmpty())
	assert.True(t, Cursor{}.IsEmpty())
	assert.Equal(t, "", Cursor(nil).String())
	assert.False(t, NewRowNumberCursor(nil, 0).IsEmpty())
}

func Test_decodeJSON_numbers(t *testing.T) {
	got, err := decodeJSON([]byte(`[1, -2, 1.25, 1e2, 12345678901234567890, {"a": [3]}]`))
	require.NoError(t, err)

	assert.Equal(t, []any{
		int64(1),
		int64(-2),
		1.25,
		float64(100),
		float64(12345678901234567890),
		map[string]any{"a": []any{int64(3)}},
	}, got)
}

func Test_asRowNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"int64", int64(5), 5, true},
		{"int", 5, 5, true},
		{"uint8", uint8(5), 5, true},
		{"zero", 0, 0, true},
		{"integral float", float64(5), 5, true},
		{"negative", -1, 0, false},
		{"fraction", 1.5, 0, false},
		{"nan", math.NaN(), 0, false},
		{"huge uint", uint64(math.MaxUint64), 0, false},
		{"string", "5", 0, false},
		{"list", []any{int64(5)}, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := asRowNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func Test_canonicalJSON(t *testing.T) {
	assert.Equal(t, canonicalJSON(int64(1)), canonicalJSON(1))
	assert.Equal(t, canonicalJSON(int64(1)), canonicalJSON(float64(1)))
	assert.NotEqual(t, canonicalJSON(1), canonicalJSON("1"))
	assert.Equal(t, `"users"`, canonicalJSON("users"))
}
