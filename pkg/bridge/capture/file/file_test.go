package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/norasector/ookbridge/pkg/ook"
)

func writeCaptures(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "captures.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestFileSourceReplay(t *testing.T) {
	path := writeCaptures(t, `# comment
20;01;DEBUG;Pulses=3;Pulses(uSec)=200,406,606;

100,not-a-number
300,300
`)
	src, err := NewFileSource(path, time.Millisecond, false)
	require.NoError(t, err)
	defer src.Stop()

	captures := make(chan *ook.CaptureBuffer, 4)
	err = src.Start(context.Background(), captures)
	require.NoError(t, err)
	close(captures)

	var got [][]uint16
	for c := range captures {
		got = append(got, append([]uint16(nil), c.Valid()...))
	}
	require.Equal(t, [][]uint16{{200, 406, 606}, {300, 300}}, got)
}

func TestFileSourceLoop(t *testing.T) {
	path := writeCaptures(t, "100,200\n")
	src, err := NewFileSource(path, time.Millisecond, true)
	require.NoError(t, err)
	defer src.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	captures := make(chan *ook.CaptureBuffer)
	done := make(chan error, 1)
	go func() { done <- src.Start(ctx, captures) }()

	for i := 0; i < 3; i++ {
		select {
		case c := <-captures:
			require.Equal(t, []uint16{100, 200}, c.Valid())
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for looped capture")
		}
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestFileSourcePause(t *testing.T) {
	path := writeCaptures(t, "100,200\n300,400\n")
	src, err := NewFileSource(path, time.Millisecond, false)
	require.NoError(t, err)
	defer src.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src.Pause()

	captures := make(chan *ook.CaptureBuffer, 2)
	done := make(chan error, 1)
	go func() { done <- src.Start(ctx, captures) }()

	select {
	case <-captures:
		t.Fatal("capture delivered while paused")
	case <-time.After(50 * time.Millisecond):
	}

	src.Resume()
	require.NoError(t, <-done)
	require.Len(t, captures, 2)
}

func TestNewFileSourceMissing(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing"), 0, false)
	require.Error(t, err)
}
