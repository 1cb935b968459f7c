package protocol

import (
	"fmt"
	"sort"

	"github.com/norasector/ookbridge/pkg/ook"
	"github.com/norasector/ookbridge/pkg/ook/protocol/ticpulses"
)

type Definition struct {
	Constants func() ook.ProtocolConstants
	Sync      []byte
}

var catalog = map[string]Definition{
	ticpulses.Name: {Constants: ticpulses.Constants, Sync: ticpulses.Sync},
}

// Lookup returns the built in definition of a protocol by name.
func Lookup(name string) (Definition, error) {
	def, ok := catalog[name]
	if !ok {
		return Definition{}, fmt.Errorf("unknown protocol %q", name)
	}
	return def, nil
}

// Names lists the built in protocols, sorted.
func Names() []string {
	ret := make([]string, 0, len(catalog))
	for name := range catalog {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}
