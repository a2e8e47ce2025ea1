package parsers

import (
	"regexp"
	"strings"

	"github.com/lightningdb/chililog/pkg/util/set"
)

// keywordRe matches e-mail addresses, dotted names (hosts, IPs, packages) and plain words, in that order of preference.
var keywordRe = regexp.MustCompile(`[\p{L}\p{N}_.+\-]+@[\p{L}\p{N}\-]+(?:\.[\p{L}\p{N}\-]+)+|[\p{L}\p{N}_\-]+(?:\.[\p{L}\p{N}_\-]+)+|[\p{L}\p{N}_]+`)

// Keywords tokenizes texts into lowercase search keywords, keeping the order of first appearance.
// At most max keywords are returned; max <= 0 means no limit.
func Keywords(max int, texts ...string) []string {
	seen := set.New[string]()
	var res []string
	for _, text := range texts {
		for _, token := range keywordRe.FindAllString(text, -1) {
			if max > 0 && len(res) >= max {
				return res
			}
			token = strings.ToLower(strings.Trim(token, "-_."))
			if token == "" || !seen.AddNew(token) {
				continue
			}
			res = append(res, token)
		}
	}
	return res
}
