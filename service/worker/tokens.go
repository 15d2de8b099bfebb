package worker

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	numberCode
	wordCode
	symbolCode
)

// Token definitions
var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	numberToken     = parsly.NewToken(numberCode, "Number", &numberMatcher{})
	wordToken       = parsly.NewToken(wordCode, "Word", &wordMatcher{})
	symbolToken     = parsly.NewToken(symbolCode, "Symbol", &symbolMatcher{})
)

// numberMatcher matches a run of decimal digits
type numberMatcher struct{}

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	matched := 0
	for i := cursor.Pos; i < cursor.InputSize; i++ {
		if !isDigit(cursor.Input[i]) {
			break
		}
		matched++
	}
	return matched
}

// wordMatcher matches a run of letters, allowing inner apostrophes
type wordMatcher struct{}

func (m *wordMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	if cursor.Pos >= cursor.InputSize || !isLetter(input[cursor.Pos]) {
		return 0
	}
	matched := 1
	for i := cursor.Pos + 1; i < cursor.InputSize; i++ {
		if isLetter(input[i]) || (input[i] == '\'' && i+1 < cursor.InputSize && isLetter(input[i+1])) {
			matched++
			continue
		}
		break
	}
	return matched
}

// symbolMatcher consumes any single byte
type symbolMatcher struct{}

func (m *symbolMatcher) Match(cursor *parsly.Cursor) int {
	if cursor.Pos >= cursor.InputSize {
		return 0
	}
	return 1
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
