package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsUnique(t *testing.T) {
	a := New()
	assert.True(t, Valid(a))
	assert.NotEqual(t, a, New())
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("6f1c2a9e-4b7d-4e51-9a3f-0d2c8b7e6a51"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-a-uuid"))
	assert.False(t, Valid("x-\n<script>"))
}
