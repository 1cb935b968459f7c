package util

import (
	"sync"

	"github.com/influxdata/influxdb-client-go/api/write"
)

// MockWriteAPI discards everything. It stands in for influx when none is configured.
type MockWriteAPI struct{}

func (m *MockWriteAPI) WriteRecord(line string)       {}
func (m *MockWriteAPI) WritePoint(point *write.Point) {}
func (m *MockWriteAPI) Flush()                        {}
func (m *MockWriteAPI) Close()                        {}
func (m *MockWriteAPI) Errors() <-chan error          { return nil }

// RecordingWriteAPI keeps every point written to it.
type RecordingWriteAPI struct {
	MockWriteAPI

	mu     sync.Mutex
	points []*write.Point
}

func (r *RecordingWriteAPI) WritePoint(point *write.Point) {
	r.mu.Lock()
	r.points = append(r.points, point)
	r.mu.Unlock()
}

// Points returns a copy of the points written so far.
func (r *RecordingWriteAPI) Points() []*write.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*write.Point(nil), r.points...)
}

// Measurement returns the points written under name.
func (r *RecordingWriteAPI) Measurement(name string) []*write.Point {
	var ret []*write.Point
	for _, p := range r.Points() {
		if p.Name() == name {
			ret = append(ret, p)
		}
	}
	return ret
}
