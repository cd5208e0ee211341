package irc

import "strings"

// FoldName case-folds a nickname or channel name using rfc1459 rules. Two
// names are the same nickname or channel when their folds are equal.
func FoldName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == '[':
			return '{'
		case r == ']':
			return '}'
		case r == '\\':
			return '|'
		case r == '~':
			return '^'
		}
		return r
	}, name)
}

// isValidNickname checks if a nickname is valid
func isValidNickname(nick string, maxLen int) bool {
	if len(nick) < 1 || len(nick) > maxLen {
		return false
	}

	for i, ch := range nick {
		// First character can't be a number or a dash
		if i == 0 && ((ch >= '0' && ch <= '9') || ch == '-') {
			return false
		}

		// Valid characters: A-Z, a-z, 0-9, and special chars like -_[]{}|\`^
		if !((ch >= 'A' && ch <= 'Z') ||
			(ch >= 'a' && ch <= 'z') ||
			(ch >= '0' && ch <= '9') ||
			strings.ContainsRune("-_[]{}|\\`^", ch)) {
			return false
		}
	}

	return true
}

// canonicalMask expands a partial mask to nick!user@host form
func canonicalMask(mask string) string {
	nick, user, host := "*", "*", "*"

	rest := mask
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		if h := rest[i+1:]; h != "" {
			host = h
		}
		rest = rest[:i]
	} else if !strings.ContainsRune(rest, '!') && strings.ContainsAny(rest, ".:") {
		return "*!*@" + rest
	}

	if i := strings.IndexByte(rest, '!'); i >= 0 {
		if u := rest[i+1:]; u != "" {
			user = u
		}
		rest = rest[:i]
	} else if strings.ContainsRune(mask, '@') {
		if rest != "" {
			user = rest
		}
		rest = ""
	}

	if rest != "" {
		nick = rest
	}
	return nick + "!" + user + "@" + host
}

// matchMask performs case-insensitive wildcard matching with * and ?
func matchMask(pattern, s string) bool {
	pattern, s = FoldName(pattern), FoldName(s)

	px, sx := 0, 0
	starPx, starSx := -1, 0
	for sx < len(s) {
		switch {
		case px < len(pattern) && (pattern[px] == '?' || pattern[px] == s[sx]):
			px++
			sx++
		case px < len(pattern) && pattern[px] == '*':
			starPx, starSx = px, sx
			px++
		case starPx >= 0:
			starSx++
			px, sx = starPx+1, starSx
		default:
			return false
		}
	}
	for px < len(pattern) && pattern[px] == '*' {
		px++
	}
	return px == len(pattern)
}
