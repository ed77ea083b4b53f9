package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ArithmeticChecker validates numeric claims found in solution text.
// Implementations report TriTrue for consistent arithmetic, TriFalse for
// a detected contradiction and TriUnknown when nothing checkable was
// found.
type ArithmeticChecker interface {
	Check(text string) TriState
}

// CheckerFunc adapts a function to the ArithmeticChecker interface.
type CheckerFunc func(text string) TriState

func (f CheckerFunc) Check(text string) TriState { return f(text) }

// ArithmeticCheck applies checker to text. A nil checker reports
// unknown, never an error.
func ArithmeticCheck(checker ArithmeticChecker, text string) TriState {
	if checker == nil {
		return TriUnknown
	}
	return checker.Check(text)
}

// NewArithmeticChecker returns the built-in checker. It extracts the
// most answer-like arithmetic fragment from the text and evaluates it
// with a small expression parser supporting + - * / ^ and parentheses.
// Equations are compared within a 1e-9 tolerance. Division by zero,
// non-finite results and unparseable fragments fail the check.
func NewArithmeticChecker() ArithmeticChecker {
	return &exprChecker{}
}

type exprChecker struct{}

func (c *exprChecker) Check(text string) TriState {
	candidate := extractCandidate(text)
	if candidate == "" {
		return TriUnknown
	}
	return evalCandidate(candidate)
}

// answerMarkers flag lines that state a conclusion. A marked line's
// arithmetic outranks everything else in the text.
var answerMarkers = []string{"answer:", "therefore", "thus", "so we have"}

var assignmentPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*\s*=\s*(.+)$`)

// exprRunChars is the byte set an arithmetic fragment may contain.
const exprRunChars = "0123456789+-*/^().= \t"

// extractCandidate picks the fragment to check, in priority order:
// marked answer lines, assignments, a final expression line, then any
// standalone expression line. Later occurrences win within a tier.
func extractCandidate(text string) string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return ""
	}

	candidate := ""
	for _, line := range lines {
		lower := strings.ToLower(line)
		markerIdx, markerLen := -1, 0
		for _, marker := range answerMarkers {
			if j := strings.Index(lower, marker); j >= 0 && (markerIdx < 0 || j < markerIdx) {
				markerIdx, markerLen = j, len(marker)
			}
		}
		if markerIdx < 0 {
			continue
		}
		if frag := mathFragment(line[markerIdx+markerLen:]); frag != "" {
			candidate = frag
		}
	}
	if candidate != "" {
		return candidate
	}

	for _, line := range lines {
		m := assignmentPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if frag := mathFragment(m[1]); frag != "" {
			candidate = frag
		}
	}
	if candidate != "" {
		return candidate
	}

	if frag := expressionLine(lines[len(lines)-1]); frag != "" {
		return frag
	}

	for i := len(lines) - 1; i >= 0; i-- {
		if frag := expressionLine(lines[i]); frag != "" {
			return frag
		}
	}
	return ""
}

// expressionLine returns the line as a fragment when it consists solely
// of arithmetic characters and contains a digit.
func expressionLine(line string) string {
	hasDigit := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c >= '0' && c <= '9' {
			hasDigit = true
			continue
		}
		if !strings.ContainsRune(exprRunChars, rune(c)) {
			return ""
		}
	}
	if !hasDigit {
		return ""
	}
	return mathFragment(line)
}

// mathFragment scans s for runs of arithmetic characters and returns
// the last run containing a digit, trimmed of surrounding punctuation.
// Runs that do not begin like an expression are discarded.
func mathFragment(s string) string {
	best := ""
	start, hasDigit := -1, false

	flush := func(end int) {
		if start >= 0 && hasDigit {
			if frag := trimFragment(s[start:end]); frag != "" {
				best = frag
			}
		}
		start, hasDigit = -1, false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.ContainsRune(exprRunChars, rune(c)) {
			if start < 0 {
				start = i
			}
			if c >= '0' && c <= '9' {
				hasDigit = true
			}
			continue
		}
		flush(i)
	}
	flush(len(s))
	return best
}

func trimFragment(s string) string {
	s = strings.TrimLeft(s, "= \t")
	s = strings.TrimRight(s, "=. \t")
	if s == "" {
		return ""
	}
	switch s[0] {
	case '(', '-', '+', '.':
	default:
		if s[0] < '0' || s[0] > '9' {
			return ""
		}
	}
	return s
}

// evalCandidate evaluates a fragment. A bare expression passes when it
// evaluates to a finite number; an equation passes when every side
// agrees within 1e-9.
func evalCandidate(candidate string) TriState {
	parts := strings.Split(candidate, "=")
	if len(parts) == 1 {
		v, err := evalExpr(candidate)
		if err != nil || !isFinite(v) {
			return TriFalse
		}
		return TriTrue
	}

	var values []float64
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		v, err := evalExpr(trimmed)
		if err != nil || !isFinite(v) {
			return TriFalse
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return TriUnknown
	}
	for _, v := range values[1:] {
		if math.Abs(v-values[0]) > 1e-9 {
			return TriFalse
		}
	}
	return TriTrue
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// exprParser is a recursive-descent evaluator over
//
//	expr   := term (('+'|'-') term)*
//	term   := factor (('*'|'/') factor)*
//	factor := ('+'|'-') factor | power
//	power  := atom ('^' factor)?
//	atom   := number | '(' expr ')'
//
// '^' binds tighter than unary minus and associates to the right.
type exprParser struct {
	s   string
	pos int
}

func evalExpr(s string) (float64, error) {
	p := &exprParser{s: s}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return 0, &parseError{s, p.pos}
	}
	return v, nil
}

type parseError struct {
	input string
	pos   int
}

func (e *parseError) Error() string {
	return "invalid expression " + strconv.Quote(e.input) + " at offset " + strconv.Itoa(e.pos)
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *exprParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			r, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += r
		case '-':
			p.pos++
			r, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= r
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			r, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			v *= r
		case '/':
			p.pos++
			r, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if r == 0 {
				return 0, &parseError{p.s, p.pos}
			}
			v /= r
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpace()
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	case '+':
		p.pos++
		return p.parseFactor()
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.peek() == '^' {
		p.pos++
		exp, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parseAtom() (float64, error) {
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, &parseError{p.s, p.pos}
		}
		p.pos++
		return v, nil
	}
	return p.parseNumber()
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return 0, &parseError{p.s, p.pos}
	}
	v, err := strconv.ParseFloat(p.s[start:p.pos], 64)
	if err != nil {
		return 0, &parseError{p.s, start}
	}
	return v, nil
}
