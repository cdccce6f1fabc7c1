// Package scenarios provides ready-made console tests for common node
// applications, and a registry to select them by name.
package scenarios

import (
	"fmt"
	"sort"

	"github.com/cboone/expecter"
)

// Scenario is a named built-in test.
type Scenario struct {
	Name        string
	Description string
	Test        expecter.TestFunc
}

var registry = map[string]Scenario{}

func register(s Scenario) {
	if _, dup := registry[s.Name]; dup {
		panic(fmt.Sprintf("scenarios: duplicate scenario %q", s.Name))
	}
	registry[s.Name] = s
}

func init() {
	register(Scenario{
		Name:        "netstats_l2",
		Description: "shell help table and layer 2 statistics with no TX errors",
		Test:        NetstatsL2(NetstatsOptions{}),
	})
	register(Scenario{
		Name:        "netstats_l2_lenient",
		Description: "shell help table and layer 2 statistics, any TX error count",
		Test:        NetstatsL2(NetstatsOptions{AllowTXErrors: true}),
	})
	register(Scenario{
		Name:        "pkg_lz4",
		Description: "lz4 compresses a text and restores it",
		Test:        PkgLZ4(),
	})
}

// Lookup returns the scenario registered under name.
func Lookup(name string) (Scenario, bool) {
	s, ok := registry[name]
	return s, ok
}

// Names returns the registered scenario names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered scenario, sorted by name.
func All() []Scenario {
	all := make([]Scenario, 0, len(registry))
	for _, name := range Names() {
		all = append(all, registry[name])
	}
	return all
}
