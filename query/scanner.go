package query

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// region is a run of template text that is either SQL code or an opaque
// quoted string, quoted identifier, comment or dollar-quoted body.
type region struct {
	text  string
	start int
	code  bool
}

func splitRegions(query string) ([]region, error) {
	var out []region
	codeStart := 0
	flush := func(end int) {
		if end > codeStart {
			out = append(out, region{text: query[codeStart:end], start: codeStart, code: true})
		}
	}
	opaque := func(start, end int) {
		flush(start)
		out = append(out, region{text: query[start:end], start: start})
		codeStart = end
	}

	i := 0
	for i < len(query) {
		r, w := utf8.DecodeRuneInString(query[i:])
		switch r {
		case '\'', '"', '`':
			j, err := skipQuoted(query, i+w, byte(r))
			if err != nil {
				return nil, err
			}
			opaque(i, j)
			i = j
			continue
		case '-':
			if strings.HasPrefix(query[i:], "--") {
				j := skipLineComment(query, i+2)
				opaque(i, j)
				i = j
				continue
			}
		case '/':
			if strings.HasPrefix(query[i:], "/*") {
				j, err := skipBlockComment(query, i+2)
				if err != nil {
					return nil, err
				}
				opaque(i, j)
				i = j
				continue
			}
		case '$':
			if j, ok, err := skipDollarQuoted(query, i); err != nil {
				return nil, err
			} else if ok {
				opaque(i, j)
				i = j
				continue
			}
		}
		i += w
	}
	flush(len(query))
	return out, nil
}

var (
	notInPattern = regexp.MustCompile(`(?i)\s+NOT\s+IN\s*\(`)
	inPattern    = regexp.MustCompile(`(?i)\s+IN\s*\(`)
)

// rewriteIn turns "x IN (" into "x =ANY(" and "x NOT IN (" into "x !=ALL(" in
// SQL code, so one array parameter serves single values and collections alike.
func rewriteIn(regions []region) string {
	var b strings.Builder
	for _, r := range regions {
		if !r.code {
			b.WriteString(r.text)
			continue
		}
		text := notInPattern.ReplaceAllString(r.text, " !=ALL(")
		b.WriteString(inPattern.ReplaceAllString(text, " =ANY("))
	}
	return b.String()
}

type token struct {
	name       string // dotted name without the colon
	start, end int    // byte offsets of ":name" in the template
}

// findNamedParams returns the :name(.name)* placeholders in SQL code. "::"
// casts are skipped and any unnamed "?" fails the template.
func findNamedParams(regions []region) ([]token, error) {
	var out []token
	for _, r := range regions {
		if !r.code {
			continue
		}
		s := r.text
		i := 0
		for i < len(s) {
			switch s[i] {
			case '?':
				return nil, fmt.Errorf("%w: at offset %d", ErrUnsupportedTemplate, r.start+i)
			case ':':
				if strings.HasPrefix(s[i:], "::") {
					i += 2 // skip PG cast
					continue
				}
				if name, end := parseDottedIdent(s, i+1); name != "" {
					out = append(out, token{name: name, start: r.start + i, end: r.start + end})
					i = end
					continue
				}
			}
			i++
		}
	}
	return out, nil
}

func parseDottedIdent(s string, i int) (string, int) {
	start := i
	name, end := parseIdent(s, i)
	if name == "" {
		return "", i
	}
	for end < len(s) && s[end] == '.' {
		seg, next := parseIdent(s, end+1)
		if seg == "" {
			break
		}
		end = next
	}
	return s[start:end], end
}

func parseIdent(s string, i int) (string, int) {
	start := i
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		if !isTagChar(r) {
			break
		}
		i += w
	}
	if i == start {
		return "", i
	}
	return s[start:i], i
}

func skipQuoted(s string, i int, quote byte) (int, error) {
	for i < len(s) {
		c := s[i]
		i++
		if c == quote {
			if i < len(s) && s[i] == quote {
				i++
				continue
			}
			return i, nil
		}
	}
	return 0, fmt.Errorf("unterminated %c-quoted text", quote)
}

func skipLineComment(s string, i int) int {
	for i < len(s) {
		if s[i] == '\n' {
			return i + 1
		}
		i++
	}
	return i
}

func skipBlockComment(s string, i int) (int, error) {
	for i < len(s)-1 {
		if s[i] == '*' && s[i+1] == '/' {
			return i + 2, nil
		}
		i++
	}
	return 0, fmt.Errorf("unterminated block comment")
}

// skipDollarQuoted handles $$...$$ and $tag$...$tag$ (PostgreSQL).
func skipDollarQuoted(s string, i int) (int, bool, error) {
	j := i + 1
	for j < len(s) && s[j] != '$' && isTagChar(rune(s[j])) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return 0, false, nil
	}
	tag := s[i : j+1]
	idx := strings.Index(s[j+1:], tag)
	if idx < 0 {
		return 0, true, fmt.Errorf("unterminated dollar-quoted string")
	}
	return j + 1 + idx + len(tag), true, nil
}

func isTagChar(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
