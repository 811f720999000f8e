package console

import (
	"errors"
	"fmt"

	"github.com/mattn/go-shellwords"
)

var errBadCommandLine = errors.New("cannot parse command line")

// splitArgs splits a command line the way a shell would, without variable or
// command expansion. Quotes group words and a backslash escapes one character.
func splitArgs(line string) ([]string, error) {
	p := shellwords.NewParser()
	args, err := p.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadCommandLine, err)
	}
	// The parser stops at ; & | < > and reports where.
	if p.Position >= 0 {
		return nil, fmt.Errorf("%w: quote ; & | < and > to use them", errBadCommandLine)
	}
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}
