// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package nvd

// stripTrailingCommas removes commas that directly precede a closing ']' or
// '}' (ignoring whitespace in between). Commas inside string literals are
// left alone. Anything else that is invalid is passed through unchanged so the
// JSON decoder can reject it.
func stripTrailingCommas(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString := false
	escaped := false

	for i := 0; i < len(data); i++ {
		b := data[i]
		if inString {
			out = append(out, b)
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case ',':
			if closesNext(data[i+1:]) {
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

// closesNext reports whether the next non-whitespace byte is ']' or '}'.
func closesNext(rest []byte) bool {
	for _, b := range rest {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case ']', '}':
			return true
		default:
			return false
		}
	}
	return false
}
