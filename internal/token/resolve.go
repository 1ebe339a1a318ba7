package token

// Resolve classifies the token covering byte offset col of line. It reports
// false when col lands on whitespace, punctuation, a comment or a string.
func Resolve(line string, col int, d Dialect) (Token, bool) {
	if col < 0 || col >= len(line) {
		return Token{}, false
	}
	l := scan(line, d)
	if col >= l.code || l.inString(col) {
		return Token{}, false
	}

	var start, end int
	switch c := line[col]; {
	case isIdent(c):
		start = col
		for start > 0 && isIdent(line[start-1]) {
			start--
		}
		if start > 0 && d.isSigil(line[start-1]) {
			start--
		}
		end = identEnd(line, col, l.code)
	case d.isSigil(c) && col+1 < l.code && isIdent(line[col+1]):
		start = col
		end = identEnd(line, col+1, l.code)
	case dotAt(line, col) && col+1 < l.code && isIdent(line[col+1]):
		start = col + 1
		end = identEnd(line, start, l.code)
	default:
		return Token{}, false
	}

	tok := Token{
		Text:  line[start:end],
		Start: start,
		End:   end,
		Dot:   dotAt(line, start-1),
	}
	sigil := d.isSigil(line[start])

	head := start
	if tok.Dot {
		head = start - 1
	}
	mStart, _, ok := statement(line, l)
	first := ok && head == mStart

	// A colon after an operand is a segment override such as %fs:0x28 or
	// es:[bx]; only a word ahead of the mnemonic defines a label.
	if k := skipSpace(line, end, l.code); k < l.code && line[k] == ':' {
		switch {
		case !ok || head < mStart:
			tok.Kinds = []Kind{KindLabel}
		default:
			tok.Kinds = []Kind{KindRegister, KindLabel}
		}
		return tok, true
	}

	switch {
	case tok.Dot:
		tok.Kinds = []Kind{KindDirective}
	case sigil:
		tok.Kinds = []Kind{KindRegister}
	case first:
		tok.Kinds = []Kind{KindInstruction, KindDirective}
	case ok && head > mStart:
		tok.Kinds = []Kind{KindRegister, KindIdentifier}
	default:
		tok.Kinds = []Kind{KindIdentifier}
	}
	return tok, true
}

// Statement returns the mnemonic of line: the first word after any label
// definitions, classified as Resolve would classify it.
func Statement(line string, d Dialect) (Token, bool) {
	l := scan(line, d)
	start, end, ok := statement(line, l)
	if !ok {
		return Token{}, false
	}
	tok := Token{Start: start, End: end}
	if line[start] == '.' {
		tok.Start++
		tok.Dot = true
		tok.Kinds = []Kind{KindDirective}
	} else {
		tok.Kinds = []Kind{KindInstruction, KindDirective}
	}
	tok.Text = line[tok.Start:end]
	return tok, true
}

// ActiveOperand returns the zero-based index of the operand at byte offset
// col: the number of top-level commas between the mnemonic and col. Commas
// nested in brackets, inside strings or inside comments do not count. It
// reports false when there is no mnemonic, col precedes it or col is in a
// comment. A cursor on the mnemonic itself is on operand 0.
func ActiveOperand(line string, col int, d Dialect) (int, bool) {
	if col > len(line) {
		col = len(line)
	}
	l := scan(line, d)
	mStart, mEnd, ok := statement(line, l)
	if !ok || col < mStart || col > l.code {
		return 0, false
	}
	if col < mEnd {
		return 0, true
	}
	idx, depth := 0, 0
	for i := mEnd; i < col; i++ {
		if l.inString(i) {
			continue
		}
		switch line[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				idx++
			}
		}
	}
	return idx, true
}

// Prefix returns the partial word ending at byte offset col, including a
// leading sigil or word-starting '.'. It is empty inside comments and
// strings.
func Prefix(line string, col int, d Dialect) string {
	if col > len(line) {
		col = len(line)
	}
	if col <= 0 {
		return ""
	}
	l := scan(line, d)
	if col > l.code || l.cursorInString(col) {
		return ""
	}
	i := col
	for i > 0 && isIdent(line[i-1]) {
		i--
	}
	if i > 0 && (d.isSigil(line[i-1]) || dotAt(line, i-1)) {
		i--
	}
	return line[i:col]
}

// InCode reports whether byte offset col of line is outside comments and
// string literals. The end of the line counts as code unless a comment or an
// unterminated string runs to it.
func InCode(line string, col int, d Dialect) bool {
	if col < 0 {
		return false
	}
	if col > len(line) {
		col = len(line)
	}
	l := scan(line, d)
	if col > l.code {
		return false
	}
	return !l.cursorInString(col)
}
