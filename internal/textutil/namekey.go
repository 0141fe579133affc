package textutil

import "strings"

// NameKeys derives the comparison keys for a person's name. The full folded
// name, the concatenated token form, and the first-initial-plus-surname form
// are all produced, so "Alice Smith" yields "alice smith", "alicesmith", and
// "asmith". When the display name is blank the folded username stands in as
// the only key. Returns nil when both inputs are blank.
func NameKeys(displayName, username string) []string {
	tokens := Tokenize(displayName)
	if len(tokens) == 0 {
		if folded := Fold(username); folded != "" {
			return []string{folded}
		}
		return nil
	}

	keys := []string{strings.Join(tokens, " ")}
	if len(tokens) > 1 {
		keys = appendUnique(keys, strings.Join(tokens, ""))
		first := []rune(tokens[0])
		keys = appendUnique(keys, string(first[0])+tokens[len(tokens)-1])
	}
	return keys
}

func appendUnique(keys []string, key string) []string {
	for _, existing := range keys {
		if existing == key {
			return keys
		}
	}
	return append(keys, key)
}
