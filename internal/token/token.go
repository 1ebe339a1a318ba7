package token

import "strings"

// Kind is a candidate meaning for a token.
type Kind string

const (
	KindInstruction Kind = "instruction"
	KindRegister    Kind = "register"
	KindDirective   Kind = "directive"
	KindLabel       Kind = "label"
	KindIdentifier  Kind = "identifier"
)

// Token is the classified span under a cursor. Start and End are byte
// offsets into the line, End exclusive. A leading '.' is not part of Text;
// Dot records it.
type Token struct {
	Text  string
	Start int
	End   int
	Dot   bool
	// Kinds lists candidate meanings in lookup priority order.
	Kinds []Kind
}

// Is reports whether k is among the token's candidates.
func (t Token) Is(k Kind) bool {
	for _, x := range t.Kinds {
		if x == k {
			return true
		}
	}
	return false
}

// DirectiveName returns the text as a directive would be spelled.
func (t Token) DirectiveName() string {
	if t.Dot {
		return "." + t.Text
	}
	return t.Text
}

func isIdent(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// layout records where the code part of a line ends and which byte ranges
// are string literals.
type layout struct {
	code    int
	strings [][2]int
	// open is set when the last string literal is unterminated.
	open bool
}

// scan finds the comment start and string literals of line. Comment leaders
// inside string literals are ignored; an unterminated string runs to the end
// of the line.
func scan(line string, d Dialect) layout {
	l := layout{code: len(line)}
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '"' || c == '\'' {
			start := i
			i++
			for i < len(line) && line[i] != c {
				if line[i] == '\\' {
					i++
				}
				i++
			}
			end := i + 1
			if end > len(line) {
				end = len(line)
				l.open = true
			}
			l.strings = append(l.strings, [2]int{start, end})
			continue
		}
		for _, leader := range d.CommentLeaders {
			if strings.HasPrefix(line[i:], leader) {
				l.code = i
				return l
			}
		}
	}
	return l
}

func (l layout) inString(i int) bool {
	for _, s := range l.strings {
		if i >= s[0] && i < s[1] {
			return true
		}
	}
	return false
}

// cursorInString reports whether a cursor between bytes col-1 and col sits
// inside a string literal.
func (l layout) cursorInString(col int) bool {
	for i, s := range l.strings {
		if s[0] < col && col < s[1] {
			return true
		}
		if l.open && i == len(l.strings)-1 && s[0] < col && col == s[1] {
			return true
		}
	}
	return false
}

func skipSpace(line string, i, limit int) int {
	for i < limit && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return i
}

func identEnd(line string, i, limit int) int {
	for i < limit && isIdent(line[i]) {
		i++
	}
	return i
}

// dotAt reports whether line[i] is a '.' that starts a word rather than
// separating parts of one, as in "fence.i".
func dotAt(line string, i int) bool {
	return i >= 0 && i < len(line) && line[i] == '.' && (i == 0 || !isIdent(line[i-1]))
}

// statement locates the mnemonic of line: the first word after any label
// definitions. The returned span includes a leading '.'.
func statement(line string, l layout) (start, end int, ok bool) {
	i := skipSpace(line, 0, l.code)
	for i < l.code {
		wordStart := i
		if line[i] == '.' {
			i++
		}
		j := identEnd(line, i, l.code)
		if j == i {
			return 0, 0, false
		}
		k := skipSpace(line, j, l.code)
		if k < l.code && line[k] == ':' {
			i = skipSpace(line, k+1, l.code)
			continue
		}
		return wordStart, j, true
	}
	return 0, 0, false
}
