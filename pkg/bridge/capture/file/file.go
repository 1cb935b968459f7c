package file

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/ookbridge/pkg/bridge/capture"
	"github.com/norasector/ookbridge/pkg/ook"
)

// FileSource replays captures from a text file, one capture per line, at a fixed interval.
type FileSource struct {
	readFile    *os.File
	timeBetween time.Duration
	loop        bool
	logger      zerolog.Logger

	mu      sync.Mutex
	paused  bool
	resumed chan struct{}
}

var _ capture.Source = (*FileSource)(nil)

func NewFileSource(file string, timeBetween time.Duration, loop bool) (*FileSource, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	if timeBetween <= 0 {
		timeBetween = 100 * time.Millisecond
	}

	return &FileSource{
		readFile:    f,
		timeBetween: timeBetween,
		loop:        loop,
		logger:      log.Logger,
	}, nil
}

func (f *FileSource) SetLogger(logger zerolog.Logger) {
	f.logger = logger
}

// Start delivers captures until the file is exhausted (returning nil) or ctx is done.
func (f *FileSource) Start(ctx context.Context, captures chan<- *ook.CaptureBuffer) error {
	tick := time.NewTicker(f.timeBetween)
	defer tick.Stop()

	scanner := bufio.NewScanner(f.readFile)
	lineNum := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}

		if err := f.waitResumed(ctx); err != nil {
			return err
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			if !f.loop {
				return nil
			}
			if _, err := f.readFile.Seek(0, io.SeekStart); err != nil {
				return err
			}
			scanner = bufio.NewScanner(f.readFile)
			lineNum = 0
			continue
		}
		lineNum++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		buf, err := capture.ParseLine(line)
		if err != nil {
			f.logger.Warn().Err(err).Int("line", lineNum).Msg("skipping malformed capture")
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case captures <- buf:
		}
	}
}

func (f *FileSource) Pause() {
	f.mu.Lock()
	if !f.paused {
		f.paused = true
		f.resumed = make(chan struct{})
	}
	f.mu.Unlock()
}

func (f *FileSource) Resume() {
	f.mu.Lock()
	if f.paused {
		f.paused = false
		close(f.resumed)
	}
	f.mu.Unlock()
}

func (f *FileSource) waitResumed(ctx context.Context) error {
	f.mu.Lock()
	paused, resumed := f.paused, f.resumed
	f.mu.Unlock()
	if !paused {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-resumed:
		return nil
	}
}

func (f *FileSource) Stop() error {
	return f.readFile.Close()
}
