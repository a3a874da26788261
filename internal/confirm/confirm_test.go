package confirm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("tty gone") }

func TestPromptAnswers(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"YES\n", true},
		{"  Yes \r\n", true},
		{"yes", true},
		{"y\n", false},
		{"no\n", false},
		{"yes please\n", false},
		{"\n", false},
		{"", false},
		{"no\nyes\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var out bytes.Buffer
			p := &Prompt{In: strings.NewReader(tt.input), Out: &out}
			assert.Equal(t, tt.want, p.Confirm())
			assert.Equal(t, DefaultQuestion, out.String())
		})
	}
}

func TestPromptCustomQuestion(t *testing.T) {
	var out bytes.Buffer
	p := &Prompt{In: strings.NewReader("yes\n"), Out: &out, Question: "Proceed? "}
	assert.True(t, p.Confirm())
	assert.Equal(t, "Proceed? ", out.String())
}

func TestPromptReadErrorDeclines(t *testing.T) {
	p := &Prompt{In: failingReader{}}
	assert.False(t, p.Confirm())

	assert.False(t, (&Prompt{}).Confirm(), "nil input must decline")
}

func TestAdapters(t *testing.T) {
	assert.True(t, Always(true).Confirm())
	assert.False(t, Always(false).Confirm())

	calls := 0
	var g Gate = Func(func() bool { calls++; return true })
	assert.True(t, g.Confirm())
	assert.Equal(t, 1, calls)
}
