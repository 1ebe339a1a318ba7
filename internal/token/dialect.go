// Package token classifies the text under a cursor in one line of assembly.
package token

import (
	"strings"

	"asmlsp/internal/schema"
)

// Dialect is the lexical convention of one or more assemblers.
type Dialect struct {
	// CommentLeaders start a comment running to the end of the line.
	CommentLeaders []string
	// Sigils are register prefix characters.
	Sigils string
}

var dialects = map[schema.Assembler]Dialect{
	schema.AsmGAS:  {CommentLeaders: []string{"#", "//"}, Sigils: "%$"},
	schema.AsmNASM: {CommentLeaders: []string{";"}},
	schema.AsmMASM: {CommentLeaders: []string{";"}},
	schema.AsmFASM: {CommentLeaders: []string{";"}},
	schema.AsmCA65: {CommentLeaders: []string{";"}},
	schema.AsmAVR:  {CommentLeaders: []string{";"}},
	schema.AsmGo:   {CommentLeaders: []string{"//"}},
	schema.AsmMARS: {CommentLeaders: []string{"#"}, Sigils: "$"},
}

// DialectFor returns the union of the dialects of asms. With no assemblers
// every dialect is included.
func DialectFor(asms ...schema.Assembler) Dialect {
	if len(asms) == 0 {
		asms = schema.Assemblers
	}
	var d Dialect
	for _, a := range schema.UniqueAssemblers(asms) {
		src := dialects[a]
		for _, l := range src.CommentLeaders {
			if !containsString(d.CommentLeaders, l) {
				d.CommentLeaders = append(d.CommentLeaders, l)
			}
		}
		for _, s := range src.Sigils {
			if !strings.ContainsRune(d.Sigils, s) {
				d.Sigils += string(s)
			}
		}
	}
	return d
}

func (d Dialect) isSigil(c byte) bool {
	return c < 0x80 && strings.IndexByte(d.Sigils, c) >= 0
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
