package bridge

import "context"

// Output handles decoded readings.
type Output interface {
	// Start receives a context and should run in a loop, terminating upon ctx closing or on any errors.
	Start(ctx context.Context) error
	// Receive returns a channel that receives readings.
	Receive() chan<- *Reading
}

// CaptureObserver is told about every capture the bridge processed, decoded or not.
type CaptureObserver interface {
	ObserveCapture(pulses []uint16, accepted bool)
}

// StatusServer is an Output that also serves status over HTTP.
type StatusServer interface {
	Output
	CaptureObserver
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}
