// heats-eval-calc is the calculator evaluator: it reads a query line from
// stdin and, when it is an arithmetic expression, prints one JSONL item
// with the result. Anything unparseable produces no output at all, since
// most launcher queries are not math.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/runger/heats/internal/item"
)

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return
	}
	query := strings.TrimSpace(scanner.Text())
	if query == "" {
		return
	}

	result, ok := evaluate(query)
	if !ok || result == query {
		// Echoing the input back ("42" → 42) is just noise.
		return
	}

	out := item.MenuItem{
		Title:    "= " + result,
		Subtitle: "Copy to clipboard",
		Data:     result,
	}
	line, err := json.Marshal(out)
	if err != nil {
		return
	}
	fmt.Println(string(line))
}

func evaluate(query string) (string, bool) {
	// Rewrite bare integer literals as floats so division behaves like a
	// calculator (1/3 is 0.333..., not 0).
	value, err := expr.Eval(intsToFloats(query), nil)
	if err != nil {
		return "", false
	}
	return formatNumber(value)
}

func formatNumber(v any) (string, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return "", false
		}
		if n == math.Trunc(n) && math.Abs(n) < float64(math.MaxInt64) {
			return fmt.Sprintf("%d", int64(n)), true
		}
		return fmt.Sprintf("%v", n), true
	case int:
		return fmt.Sprintf("%d", n), true
	case int64:
		return fmt.Sprintf("%d", n), true
	default:
		return "", false
	}
}

// intsToFloats appends ".0" to integer literals that do not already carry a
// fractional part.
func intsToFloats(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	for i := 0; i < len(s); {
		if !isDigit(s[i]) {
			b.WriteByte(s[i])
			i++
			continue
		}
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i+1 < len(s) && s[i] == '.' && isDigit(s[i+1]) {
			i++
			for i < len(s) && isDigit(s[i]) {
				i++
			}
			b.WriteString(s[start:i])
			continue
		}
		b.WriteString(s[start:i])
		b.WriteString(".0")
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
