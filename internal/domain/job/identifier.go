package job

import (
	"fmt"
	"strings"

	"github.com/wasilibs/go-re2"
)

var identifierPattern = re2.MustCompile(`\[\[([*:a-zA-Z0-9_-]+)\]\]`)

// IdentifierInfo is the parsed form of a "[[identifier]]" or
// "[[filter:identifier]]" name suffix.
type IdentifierInfo struct {
	Identifier   string
	ImportFilter string
	// Raw is the text between the brackets.
	Raw string
}

// ExtractIdentifier finds the identifier suffix in a remote job name. A name
// without a suffix returns zero info and no error.
func ExtractIdentifier(name string) (IdentifierInfo, error) {
	m := identifierPattern.FindStringSubmatch(name)
	if m == nil {
		return IdentifierInfo{}, nil
	}
	raw := m[1]
	parts := strings.Split(raw, ":")
	switch len(parts) {
	case 1:
		return IdentifierInfo{Identifier: parts[0], Raw: raw}, nil
	case 2:
		return IdentifierInfo{ImportFilter: parts[0], Identifier: parts[1], Raw: raw}, nil
	default:
		return IdentifierInfo{}, fmt.Errorf("job name %q has an invalid identifier %q: at most one ':' is allowed", name, raw)
	}
}

// MatchesImportFilter reports whether a job should be exported for the
// given filter value. Jobs with no filter or the "*" wildcard always match.
func (j *Job) MatchesImportFilter(filter string) bool {
	if filter == "" || j.ImportFilter == "" || j.ImportFilter == "*" {
		return true
	}
	return strings.Contains(j.ImportFilter, filter)
}
