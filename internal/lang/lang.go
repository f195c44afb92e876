// Package lang enumerates the project languages the daemon can provision
// sandboxes for.
package lang

import "fmt"

// Lang is a short language code as stored on projects.
type Lang string

const (
	Python     Lang = "py"
	JavaScript Lang = "js"
	TypeScript Lang = "ts"
	Rust       Lang = "rs"
	C          Lang = "c"
	CPlusPlus  Lang = "cpp"
	CSharp     Lang = "cs"
	Bash       Lang = "sh"
	Java       Lang = "java"
)

// All lists every supported language code.
var All = []Lang{Python, JavaScript, TypeScript, Rust, C, CPlusPlus, CSharp, Bash, Java}

// Parse validates a language code received from a client.
func Parse(s string) (Lang, error) {
	for _, l := range All {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("invalid language: %q", s)
}

func (l Lang) String() string {
	return string(l)
}
