package store

import "strings"

// ValidIdentifier reports whether text is safe to interpolate into SQL as a
// table or column name.
//
// Accepted forms:
//   - letters, digits, underscore, and spaces only ("created_at")
//   - a single trailing star ("*", for SELECT-list shorthand)
//   - a parenthesized comma-separated identifier list ("(id, term)",
//     for composite keys)
//
// Everything else is rejected: quotes, semicolons, comment markers, and any
// other punctuation that could terminate or extend a statement. Identifiers
// are the only strings this layer concatenates into SQL text; values always
// travel as bound parameters.
func ValidIdentifier(text string) bool {
	if text == "" {
		return false
	}

	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		inner := text[1 : len(text)-1]
		if strings.TrimSpace(inner) == "" {
			return false
		}
		for _, part := range strings.Split(inner, ",") {
			if !identWord(strings.TrimSpace(part)) {
				return false
			}
		}
		return true
	}

	if strings.HasSuffix(text, "*") {
		body := text[:len(text)-1]
		return body == "" || identWord(body)
	}

	return identWord(text)
}

// identWord reports whether s is non-empty and contains only letters,
// digits, underscore, and spaces.
func identWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == ' ' || r == '\t':
		default:
			return false
		}
	}
	return true
}

// checkIdentifier returns a ValidationError naming the offending text when
// the identifier is unsafe.
func checkIdentifier(kind, text string) error {
	if !ValidIdentifier(text) {
		return validationf("unsafe %s identifier %q", kind, text)
	}
	return nil
}
