package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"workspaces", false},
		{"session-persist:slack-1", false},
		{"windowBounds", false},
		{"", true},
		{"a/b", true},
		{"with space", true},
		{"nul\x00", true},
		{strings.Repeat("k", MaxKeyLength+1), true},
	}

	for _, tt := range tests {
		err := ValidateKey(tt.key)
		if tt.wantErr {
			assert.Error(t, err, tt.key)
		} else {
			assert.NoError(t, err, tt.key)
		}
	}
}

func TestValidatePartition(t *testing.T) {
	assert.NoError(t, ValidatePartition("persist:whatsapp-1"))
	assert.NoError(t, ValidatePartition("gmail.2"))
	assert.Error(t, ValidatePartition(""))
	assert.Error(t, ValidatePartition("persist/../x"))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("slack-1", "service_id", true))
	assert.NoError(t, ValidateID("", "service_id", false))
	assert.Error(t, ValidateID("", "service_id", true))
	assert.Error(t, ValidateID("slack:1", "service_id", true))
}

func TestValidateMessage(t *testing.T) {
	assert.NoError(t, ValidateMessage("on my way"))
	assert.Error(t, ValidateMessage(""))
	assert.Error(t, ValidateMessage("   \n"))
	assert.Error(t, ValidateMessage(strings.Repeat("x", MaxMessageSize+1)))
}

func TestJSONSizeValidator(t *testing.T) {
	v := NewJSONSizeValidator(32)

	assert.NoError(t, v.ValidateJSON([]byte(`{"isDarkMode":true}`)))
	assert.NoError(t, v.ValidateJSON([]byte(`null`)))
	assert.Error(t, v.ValidateJSON([]byte(`{"a":`)))
	assert.Error(t, v.ValidateJSON([]byte(`"`+strings.Repeat("x", 40)+`"`)))
}

func TestValidateJSONDepth(t *testing.T) {
	deep := strings.Repeat("[", MaxJSONDepth+2) + strings.Repeat("]", MaxJSONDepth+2)
	assert.Error(t, NewJSONSizeValidator(MaxJSONSize).ValidateJSON([]byte(deep)))

	shallow := strings.Repeat("[", 3) + strings.Repeat("]", 3)
	assert.NoError(t, DefaultJSONValidator().ValidateJSON([]byte(shallow)))
}
