package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		limits  JSONLimits
		input   string
		want    interface{}
		wantErr bool
	}{
		{name: "object", limits: RequestLimits, input: `{"type":"ping"}`, want: map[string]interface{}{"type": "ping"}},
		{name: "scalar", limits: BroadcastLimits, input: `42`, want: float64(42)},
		{name: "too large", limits: JSONLimits{MaxSize: 4}, input: `{"type":"ping"}`, wantErr: true},
		{name: "truncated", limits: RequestLimits, input: `{"type":`, wantErr: true},
		{name: "too deep", limits: JSONLimits{MaxDepth: 32}, input: strings.Repeat("[", 40) + strings.Repeat("]", 40), wantErr: true},
		{name: "unlimited", limits: JSONLimits{}, input: strings.Repeat("[", 40) + strings.Repeat("]", 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeJSON([]byte(tt.input), tt.limits)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidJSON)
				return
			}
			require.NoError(t, err)
			if tt.want != nil {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDepth(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int
	}{
		{name: "scalar", value: "x", want: 0},
		{name: "empty object", value: map[string]interface{}{}, want: 0},
		{name: "flat array", value: []interface{}{1, 2}, want: 1},
		{name: "nested", value: map[string]interface{}{"a": map[string]interface{}{"b": []interface{}{1}}}, want: 3},
		{name: "uneven", value: []interface{}{1, []interface{}{[]interface{}{2}}, 3}, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Depth(tt.value))
		})
	}
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID(uuid.New().String(), "view_id"))
	assert.EqualError(t, ValidateID("", "view_id"), "view_id is required")
	assert.EqualError(t, ValidateID("abc", "view_id"), "view_id must be a UUID")
}
