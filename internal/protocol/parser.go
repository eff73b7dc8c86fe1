package protocol

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// scanner walks a decoded message rune by rune. It mirrors the original
// implementation's Chars iterator: Next consumes and returns the next
// rune, ok is false at end of input.
type scanner struct {
	runes []rune
	pos   int
}

func newScanner(s string) *scanner {
	return &scanner{runes: []rune(s)}
}

func (s *scanner) next() (rune, bool) {
	if s.pos >= len(s.runes) {
		return 0, false
	}
	r := s.runes[s.pos]
	s.pos++
	return r, true
}

func (s *scanner) peek() (rune, bool) {
	if s.pos >= len(s.runes) {
		return 0, false
	}
	return s.runes[s.pos], true
}

// Parse turns one framed message (the bytes between delimiters, not
// including the delimiter) into a Command, or a protocol error string
// per spec §4.3's taxonomy.
func Parse(message []byte) (Command, error) {
	if !utf8.Valid(message) {
		return Command{}, fmt.Errorf("Non utf8 characters in command")
	}

	s := newScanner(strings.TrimSpace(string(message)))

	name, err := parseCommandName(s)
	if err != nil {
		return Command{}, err
	}

	args, err := parseArguments(s)
	if err != nil {
		return Command{}, err
	}

	return buildCommand(name, args)
}

func parseCommandName(s *scanner) (string, error) {
	var name strings.Builder
	for {
		r, ok := s.next()
		if !ok {
			break
		}
		switch r {
		case '\'', '\\':
			return "", fmt.Errorf("Malformed command")
		case ' ':
			return strings.ToUpper(name.String()), nil
		default:
			name.WriteRune(r)
		}
	}
	return strings.ToUpper(name.String()), nil
}

func parseArguments(s *scanner) ([]string, error) {
	var args []string
	for {
		arg, ok, err := parseArgument(s)
		if err != nil {
			return nil, err
		}
		if !ok {
			return args, nil
		}
		args = append(args, arg)
	}
}

// parseArgument skips leading spaces, then expects either end of input
// (ok=false) or a quoted string. Any other leading character is an
// error.
func parseArgument(s *scanner) (string, bool, error) {
	for {
		r, ok := s.peek()
		if !ok {
			return "", false, nil
		}
		if r == ' ' {
			s.next()
			continue
		}
		if r == '\'' {
			s.next()
			value, err := parseQuotedString(s)
			if err != nil {
				return "", false, err
			}
			return value, true, nil
		}
		return "", false, fmt.Errorf("Unqouted character: %c", r)
	}
}

func parseQuotedString(s *scanner) (string, error) {
	var value strings.Builder
	for {
		r, ok := s.next()
		if !ok {
			return "", fmt.Errorf("Missing end quote")
		}
		switch r {
		case '\'':
			return value.String(), nil
		case '\\':
			escaped, err := parseEscapedChar(s)
			if err != nil {
				return "", err
			}
			value.WriteRune(escaped)
		default:
			value.WriteRune(r)
		}
	}
}

func parseEscapedChar(s *scanner) (rune, error) {
	r, ok := s.next()
	if !ok {
		// Backslash was the last byte before the argument ran out of
		// input; treated the same as an unterminated quote (both are
		// "input ended before the argument closed") — see SPEC_FULL.md
		// §4 for why this folds into "Missing end quote" rather than
		// getting its own message.
		return 0, fmt.Errorf("Missing end quote")
	}
	switch r {
	case '\'':
		return '\'', nil
	case '\\':
		return '\\', nil
	default:
		return 0, fmt.Errorf("unescapeable character: %c", r)
	}
}

func buildCommand(name string, args []string) (Command, error) {
	switch name {
	case "PUSH":
		return buildPush(args)
	case "POP":
		return buildPop(args)
	case "BPOP":
		return buildBPop(args)
	case "QUIT":
		return buildNoArgs(args, "QUIT", Command{Verb: VerbQuit})
	case "BEGIN":
		return buildNoArgs(args, "BEGIN", Command{Verb: VerbBegin})
	case "COMMIT":
		return buildNoArgs(args, "COMMIT", Command{Verb: VerbCommit})
	case "ABORT":
		return buildNoArgs(args, "ABORT", Command{Verb: VerbAbort})
	default:
		return Command{}, fmt.Errorf("Unknown Command: %s", name)
	}
}

func buildPush(args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, fmt.Errorf("Incorrect number of arguments for PUSH")
	}
	return Command{Verb: VerbPush, Queue: args[0], Payload: args[1]}, nil
}

func buildPop(args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, fmt.Errorf("Incorrect number of arguments for POP")
	}
	return Command{Verb: VerbPop, Queue: args[0]}, nil
}

func buildBPop(args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, fmt.Errorf("Incorrect number of arguments for BPOP")
	}
	return Command{Verb: VerbBlockingPop, Queue: args[0]}, nil
}

func buildNoArgs(args []string, name string, cmd Command) (Command, error) {
	if len(args) != 0 {
		return Command{}, fmt.Errorf("Incorrect number of arguments for %s", name)
	}
	return cmd, nil
}

// Format renders cmd back into wire syntax, the inverse of Parse for
// every Command whose arguments don't require escaping beyond ' and \.
// Used by round-trip property tests (spec §8, property 7).
func Format(cmd Command) string {
	switch cmd.Verb {
	case VerbPush:
		return fmt.Sprintf("PUSH %s %s", quote(cmd.Queue), quote(cmd.Payload))
	case VerbPop:
		return fmt.Sprintf("POP %s", quote(cmd.Queue))
	case VerbBlockingPop:
		return fmt.Sprintf("BPOP %s", quote(cmd.Queue))
	case VerbQuit:
		return "QUIT"
	case VerbBegin:
		return "BEGIN"
	case VerbCommit:
		return "COMMIT"
	case VerbAbort:
		return "ABORT"
	default:
		return ""
	}
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		if r == '\'' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}
