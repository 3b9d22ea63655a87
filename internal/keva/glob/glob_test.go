package glob

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		s       string
		want    bool
	}{
		{"star matches everything", "*", "abc", true},
		{"star matches empty", "*", "", true},
		{"question mark", "a?c", "abc", true},
		{"question mark needs a byte", "a?c", "ac", false},
		{"class member", "[abc]", "b", true},
		{"class non-member", "[abc]", "d", false},
		{"star in the middle", "a*b", "aXYb", true},
		{"star needs the suffix", "a*b", "aXY", false},
		{"literal match", "hello", "hello", true},
		{"literal mismatch", "hello", "hellx", false},
		{"literal too short", "hello", "hell", false},
		{"literal too long", "hell", "hello", false},
		{"empty pattern empty string", "", "", true},
		{"empty pattern non-empty string", "", "x", false},
		{"collapsed stars", "a**b", "aXYb", true},
		{"star backtracking", "a*b*c", "aXbYbZc", true},
		{"class range", "[a-c]", "b", true},
		{"class range miss", "[a-c]", "d", false},
		{"class reversed range", "[c-a]", "b", true},
		{"negated class", "[^abc]", "d", true},
		{"negated class member", "[^abc]", "b", false},
		{"escaped star", `\*`, "*", true},
		{"escaped star no wildcard", `\*`, "x", false},
		{"escaped question mark", `a\?c`, "a?c", true},
		{"escape inside class", `[\]]`, "]", true},
		{"unterminated class", "[ab", "a", true},
		{"trailing escape", `a\`, "a\\", true},
		{"mixed", "user:*:[0-9]", "user:alice:7", true},
		{"mixed miss", "user:*:[0-9]", "user:alice:x", false},
		{"binary bytes", "\x00*\xff", "\x00middle\xff", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match([]byte(tt.pattern), []byte(tt.s)); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
			}
			if got := MatchString(tt.pattern, tt.s); got != tt.want {
				t.Errorf("MatchString(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
			}
		})
	}
}
