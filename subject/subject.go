package subject

import "strings"

// MaxLen is the exclusive upper bound on subject length. It bounds the copies the
// protocol parser keeps of MSG subjects and reply subjects.
const MaxLen = 128

const (
	sep         = '.'
	wildOne     = "*"
	wildTail    = ">"
	wildcardSet = "*>"
)

// Error describes why a subject or pattern was rejected.
type Error struct {
	Subject string
	Reason  string
}

func (e *Error) Error() string {
	if e.Subject == "" {
		return "invalid subject: " + e.Reason
	}
	return "invalid subject \"" + e.Subject + "\": " + e.Reason
}

func subjectErr(s, reason string) error {
	return &Error{Subject: s, Reason: reason}
}

// Validate checks the token grammar shared by literal subjects and patterns: the
// subject is non-empty, shorter than MaxLen, printable ASCII without spaces and has no
// empty tokens.
func Validate(s string) error {
	if s == "" {
		return subjectErr(s, "must not be empty")
	}

	if len(s) >= MaxLen {
		return subjectErr(s, "too long")
	}

	if s[0] == sep || s[len(s)-1] == sep {
		return subjectErr(s, "empty token")
	}

	for i := 0; i < len(s); i++ {
		b := s[i]

		switch {
		case b <= ' ', b == 0x7f:
			return subjectErr(s, "contains whitespace or control character")
		case b >= 0x80:
			return subjectErr(s, "contains non-ASCII byte")
		case b == sep && s[i-1] == sep:
			return subjectErr(s, "empty token")
		}
	}

	return nil
}

// Valid reports whether s passes Validate.
func Valid(s string) bool {
	return Validate(s) == nil
}

// ValidatePattern validates s as a subscription pattern. On top of Validate it requires
// wildcards to be whole tokens and '>' to be the last one.
func ValidatePattern(s string) error {
	if err := Validate(s); err != nil {
		return err
	}

	rest := s
	for {
		tok, next, more := cut(rest)

		switch {
		case tok == wildOne:
		case tok == wildTail:
			if more {
				return subjectErr(s, "'>' must be the last token")
			}
		case strings.ContainsAny(tok, wildcardSet):
			return subjectErr(s, "wildcards must be standalone tokens")
		}

		if !more {
			return nil
		}
		rest = next
	}
}

// ValidPattern reports whether s passes ValidatePattern.
func ValidPattern(s string) bool {
	return ValidatePattern(s) == nil
}

// ValidateLiteral validates a subject that messages are published to, where
// wildcards are not allowed.
func ValidateLiteral(s string) error {
	if err := Validate(s); err != nil {
		return err
	}

	if strings.ContainsAny(s, wildcardSet) {
		return subjectErr(s, "wildcards not allowed in a published subject")
	}

	return nil
}

// HasWildcard reports whether the pattern contains a wildcard token.
func HasWildcard(pattern string) bool {
	rest := pattern
	for {
		tok, next, more := cut(rest)
		if tok == wildOne || tok == wildTail {
			return true
		}
		if !more {
			return false
		}
		rest = next
	}
}

// Match reports whether subject is matched by pattern. A pattern that breaks the
// wildcard placement rules matches nothing.
func Match(pattern, subject string) bool {
	if pattern == "" || subject == "" {
		return false
	}

	p, s := pattern, subject
	for {
		ptok, prest, pmore := cut(p)
		stok, srest, smore := cut(s)

		if ptok == "" || stok == "" {
			return false
		}

		switch {
		case ptok == wildTail:
			// '>' swallows this token and everything after it
			return !pmore && !hasEmptyToken(srest, smore)
		case ptok == wildOne:
		case strings.ContainsAny(ptok, wildcardSet):
			return false
		case ptok != stok:
			return false
		}

		if !pmore || !smore {
			return pmore == smore
		}

		p, s = prest, srest
	}
}

// cut splits off the first token. more is false when tok was the final token.
func cut(s string) (tok, rest string, more bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

func hasEmptyToken(s string, more bool) bool {
	for more {
		var tok string
		tok, s, more = cut(s)
		if tok == "" {
			return true
		}
	}
	return false
}
