package bridge

import (
	"time"

	"github.com/norasector/ookbridge/pkg/bridge/config"
)

type Options struct {
	Decoders     []config.Decoder
	Outputs      []Output
	RepeatWindow time.Duration
}
