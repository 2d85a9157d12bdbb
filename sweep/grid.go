package sweep

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/backtester/strategy"
)

// Grid expands a cartesian product of parameter axes into one Spec per
// combination. Axis order is alphabetical so the spec list is
// deterministic; build receives one full parameter set per call.
func Grid(base string, axes map[string][]any, build func(params map[string]any) (strategy.Strategy, error)) []Spec {
	names := make([]string, 0, len(axes))
	for name := range axes {
		names = append(names, name)
	}
	sort.Strings(names)

	combos := []map[string]any{{}}
	for _, name := range names {
		var next []map[string]any
		for _, combo := range combos {
			for _, v := range axes[name] {
				c := make(map[string]any, len(combo)+1)
				for k, cv := range combo {
					c[k] = cv
				}
				c[name] = v
				next = append(next, c)
			}
		}
		combos = next
	}

	specs := make([]Spec, 0, len(combos))
	for _, combo := range combos {
		combo := combo

		var b strings.Builder
		b.WriteString(base)
		for _, name := range names {
			fmt.Fprintf(&b, " %s=%v", name, combo[name])
		}

		specs = append(specs, Spec{
			Name:        b.String(),
			NewStrategy: func() (strategy.Strategy, error) { return build(combo) },
		})
	}
	return specs
}
