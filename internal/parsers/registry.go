package parsers

import (
	"fmt"
	"sort"
)

// builtins maps source names to adapter constructors. Adapters register
// here; the CLI resolves --source through Get.
var builtins = map[string]func() Parser{
	"cnexpress": func() Parser { return NewCNExpress() },
	"newsline":  func() Parser { return NewNewsline() },
}

// Get returns a fresh parser for a source name.
func Get(name string) (Parser, error) {
	ctor, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (known: %v)", name, Names())
	}
	return ctor(), nil
}

// Names lists registered source names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
