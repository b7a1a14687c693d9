package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranscript_Alternates(t *testing.T) {
	tests := []struct {
		name string
		tr   Transcript
		want bool
	}{
		{"empty", nil, true},
		{"single user", Transcript{{RoleUser, "hi"}}, true},
		{"exchange", Transcript{{RoleUser, "hi"}, {RoleAssistant, "hello"}, {RoleUser, "more"}}, true},
		{"starts with assistant", Transcript{{RoleAssistant, "hello"}}, false},
		{"two users", Transcript{{RoleUser, "a"}, {RoleUser, "b"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tr.Alternates())
		})
	}
}

func TestTranscript_CloneIsIndependent(t *testing.T) {
	orig := Transcript{{RoleUser, "hi"}}
	c := orig.Clone()
	c[0].Content = "changed"
	assert.Equal(t, "hi", orig[0].Content)
	assert.Nil(t, Transcript(nil).Clone())
}

func TestTranscript_Truncate(t *testing.T) {
	tr := Transcript{{RoleUser, "a"}, {RoleAssistant, "b"}, {RoleUser, "c"}}
	assert.Len(t, tr.Truncate(2), 2)
	assert.Len(t, tr.Truncate(5), 3)
	assert.Empty(t, tr.Truncate(-1))
}
