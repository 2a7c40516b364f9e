package asr

import "strings"

// Reassemble joins the text of every "<timestamp> <text>" line of a task
// result. Each line contributes everything from its first space onward, so
// the leading space is kept; lines without a space contribute nothing.
func Reassemble(raw string) string {
	var sb strings.Builder
	for _, line := range strings.Split(raw+"\n", "\n") {
		if i := strings.IndexByte(line, ' '); i >= 0 {
			sb.WriteString(line[i:])
		}
	}
	return sb.String()
}
