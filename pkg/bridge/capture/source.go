package capture

import (
	"context"

	"github.com/norasector/ookbridge/pkg/ook"
)

// Source produces captures. While paused it must not deliver or modify any capture, which
// lets the consumer decode without racing the producer.
type Source interface {
	Start(ctx context.Context, captures chan<- *ook.CaptureBuffer) error
	Pause()
	Resume()
	Stop() error
}
