package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithAttrs(t *testing.T) {
	assert.Equal(t, "plain message", withAttrs("plain message", nil))

	assert.Equal(t,
		"user registered user_id=42 email=pepe.rone@example.com",
		withAttrs("user registered", []any{"user_id", 42, "email", "pepe.rone@example.com"}),
	)

	assert.Equal(t, "odd pair key=(MISSING)", withAttrs("odd pair", []any{"key"}))
}
