package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandPatterns(t *testing.T) {
	assert.True(t, resetCommand.MatchString("/reset"))
	assert.True(t, resetCommand.MatchString("/R"))
	assert.True(t, searchCommand.MatchString("/search foo"))
	assert.True(t, searchCommand.MatchString("/S foo"))
	assert.False(t, searchCommand.MatchString("/search"))
	assert.False(t, resetCommand.MatchString("reset"))
}

func TestStripCommand(t *testing.T) {
	assert.Equal(t, "where is listen", stripCommand("/search  where is listen "))
	assert.Equal(t, "", stripCommand("/s"))
}

func TestCommandHint(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/serch foo", "/search <query>"},
		{"/searh", "/search <query>"},
		{"/rest", "/reset"},
		{"/deploy now", ""},
		{"/usr/bin/env", ""},
		{"plain question", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, commandHint(tt.text))
		})
	}
}
