package composition

import "strings"

// Extract pulls a document out of a generator's free-text reply: markdown
// code fences are dropped and the text between the first '{' and the last
// '}' is decoded.
func Extract(text string) (*Document, error) {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	first := strings.Index(clean, "{")
	last := strings.LastIndex(clean, "}")
	if first < 0 || last <= first {
		return nil, &DocumentError{Err: ErrNoJSONObject}
	}
	return Decode([]byte(clean[first : last+1]))
}
