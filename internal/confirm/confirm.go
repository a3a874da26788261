// Package confirm asks the operator whether deletion may proceed.
package confirm

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultQuestion is printed by Prompt when Question is empty
const DefaultQuestion = "Delete all duplicate files except the first of each group? Type 'yes' to confirm: "

// Gate decides once per run whether deletion proceeds
type Gate interface {
	Confirm() bool
}

// Prompt writes a question to Out and reads one line from In. Only the word
// "yes", in any case and with surrounding whitespace, confirms.
type Prompt struct {
	In       io.Reader
	Out      io.Writer
	Question string
}

// Confirm implements Gate. A read error or EOF before any input declines.
func (p *Prompt) Confirm() bool {
	q := p.Question
	if q == "" {
		q = DefaultQuestion
	}
	if p.Out != nil {
		fmt.Fprint(p.Out, q)
	}
	if p.In == nil {
		return false
	}

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return false
	}
	return Accepts(line)
}

// Accepts reports whether answer is an affirmative reply
func Accepts(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}

type always bool

func (a always) Confirm() bool { return bool(a) }

// Always returns a Gate with a fixed answer (used for -yes)
func Always(answer bool) Gate {
	return always(answer)
}

// Func adapts a function to a Gate
type Func func() bool

// Confirm calls f
func (f Func) Confirm() bool { return f() }
