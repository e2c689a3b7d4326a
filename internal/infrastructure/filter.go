package infrastructure

import (
	"regexp"
	"strings"
)

// Simplified boolean filter grammar: comparisons joined by && / ||. The
// remote API wants ga:-prefixed identifiers, ; for AND, , for OR and no
// quote characters.
const filterOperators = `(!~|=~|==|!=|>=|<=|>|<|=@|!@)`

var (
	filterWhitespace = regexp.MustCompile(`\s+`)
	filterIdentifier = regexp.MustCompile(`(?i)(&&\s*|\|\|\s*|^)([a-z]+)(\s*` + filterOperators + `)`)
	filterQuotes     = regexp.MustCompile(`['"]`)
	filterAnd        = regexp.MustCompile(`\s*&&\s*`)
	filterOr         = regexp.MustCompile(`\s*\|\|\s*`)
	filterOperator   = regexp.MustCompile(`\s*` + filterOperators + `\s*`)
)

// CompileFilter rewrites a filter expression into the remote API's filter
// syntax. An expression that reduces to the empty string means "no filter".
func CompileFilter(filter string) string {
	f := strings.TrimSpace(filter)
	if f == "" {
		return ""
	}

	f = filterWhitespace.ReplaceAllString(f, " ")
	f = filterIdentifier.ReplaceAllString(f, "${1}ga:${2}${3}")
	f = filterQuotes.ReplaceAllString(f, "")
	f = filterAnd.ReplaceAllString(f, ";")
	f = filterOr.ReplaceAllString(f, ",")
	f = filterOperator.ReplaceAllString(f, "${1}")

	return f
}
