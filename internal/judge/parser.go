package judge

// firstJSONObject locates the first syntactically complete top-level JSON
// object in free-form model output. The response may wrap the payload in
// explanatory prose or carry braces inside string values, so the scan
// tracks quote/escape state and brace depth rather than assuming the whole
// text is JSON.
//
// Iterating bytes is safe for the ASCII delimiters involved ({, }, ", \)
// because UTF-8 never embeds ASCII bytes inside multi-byte sequences.
func firstJSONObject(s string) (string, bool) {
	var (
		depth    int
		start    = -1
		inString bool
		escape   bool
	)

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}
