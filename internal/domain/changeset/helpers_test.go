package changeset

import (
	"strconv"
	"strings"

	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

func portsFilter() ports.JobFilter {
	return ports.JobFilter{}
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func countCalls(calls []string, prefix string) int {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
