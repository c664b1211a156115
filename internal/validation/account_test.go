package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		username string
		reason   string // пусто - валидно
	}{
		{username: "alice"},
		{username: "Bob_42"},
		{username: "carol.designer"},
		{username: "d-e"},
		{username: strings.Repeat("a", MaxUsernameLen)},
		{username: "", reason: "cannot be empty"},
		{username: "ab", reason: "characters long"},
		{username: strings.Repeat("a", MaxUsernameLen+1), reason: "characters long"},
		{username: "_hidden", reason: "must start with"},
		{username: "alice smith", reason: "may contain only"},
		{username: "алиса", reason: "may contain only"},
	}
	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "username", fe.Field)
			assert.Contains(t, fe.Reason, tt.reason)
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("correct-horse-battery"))
	assert.NoError(t, ValidatePassword(strings.Repeat("x", MinPasswordLen)))

	for _, bad := range []string{"", "short", strings.Repeat("x", MaxPasswordLen+1)} {
		err := ValidatePassword(bad)
		var fe *FieldError
		require.ErrorAs(t, err, &fe, "len %d", len(bad))
		assert.Equal(t, "password", fe.Field)
	}
	assert.EqualError(t, ValidatePassword(""), "invalid password: cannot be empty")
}
