package bridge

import (
	"fmt"

	"github.com/norasector/ookbridge/pkg/bridge/config"
	"github.com/norasector/ookbridge/pkg/ook/decoder"
	"github.com/norasector/ookbridge/pkg/ook/protocol"
)

// BuildRegistry registers a decoder for every enabled protocol. With no decoder
// configuration every built in protocol is enabled with its defaults.
func BuildRegistry(decoders []config.Decoder, opts ...decoder.Option) (*decoder.Registry, error) {
	if len(decoders) == 0 {
		for _, name := range protocol.Names() {
			decoders = append(decoders, config.Decoder{Protocol: name})
		}
	}

	reg := decoder.NewRegistry()
	for _, d := range decoders {
		if !d.IsEnabled() {
			continue
		}

		def, err := protocol.Lookup(d.Protocol)
		if err != nil {
			return nil, err
		}

		dec, err := decoder.New(d.Apply(def.Constants()), opts...)
		if err != nil {
			return nil, fmt.Errorf("decoder %s: %w", d.Protocol, err)
		}
		reg.Register(dec, d.Priority)
	}

	return reg, nil
}
