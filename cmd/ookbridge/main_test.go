package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/norasector/ookbridge/pkg/bridge/config"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

const referencePayload = "50011234567800 03DFAF780056341200D80F00"

func TestSynthesizeDecode(t *testing.T) {
	line, err := synthesize("TIC_PULSES_V2", referencePayload)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "20;00;DEBUG;Pulses=295;Pulses(uSec)="))

	var out bytes.Buffer
	d, err := newLineDecoder(nil, &out)
	require.NoError(t, err)
	require.NoError(t, d.decode(line))
	require.Equal(t, "20;00;TIC_PULSES_V2;ID=12345678;KWATT=00123456;BAT=OK;\n", out.String())
}

func TestSampleCaptures(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", "ookbridge.yaml"))
	require.NoError(t, err)

	f, err := os.Open(filepath.Join("..", "..", cfg.Source.Path))
	require.NoError(t, err)
	defer f.Close()

	var out bytes.Buffer
	d, err := newLineDecoder(cfg.Decoders, &out)
	require.NoError(t, err)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		require.NoError(t, d.decode(line))
	}
	require.NoError(t, scanner.Err())

	require.Equal(t, 2, strings.Count(out.String(), ";ID=12345678;KWATT=00123456;BAT=OK;"))
	require.Equal(t, 1, strings.Count(out.String(), ";ID=12345678;KWATT=00123457;BAT=OK;"))
	require.Contains(t, out.String(), "# no decoder accepted 12 pulses")
}

func TestDecodeRejected(t *testing.T) {
	var out bytes.Buffer
	d, err := newLineDecoder(nil, &out)
	require.NoError(t, err)

	require.NoError(t, d.decode("100,200"))
	require.Contains(t, out.String(), "# TIC_PULSES_V2: ")
	require.Contains(t, out.String(), "# no decoder accepted 2 pulses")

	require.Error(t, d.decode("100,abc"))
}

func TestSynthesizeErrors(t *testing.T) {
	_, err := synthesize("NOPE", referencePayload)
	require.Error(t, err)
	_, err = synthesize("TIC_PULSES_V2", "zz")
	require.Error(t, err)
	_, err = synthesize("TIC_PULSES_V2", "0102")
	require.Error(t, err)
}

func TestAnalyzeCaptures(t *testing.T) {
	line, err := synthesize("TIC_PULSES_V2", referencePayload)
	require.NoError(t, err)

	var out bytes.Buffer
	in := strings.NewReader("# recorded\n" + line + "\nnot,a,capture\n")
	require.NoError(t, analyzeCaptures(in, &out))

	require.Contains(t, out.String(), "capture 1: pulses=295")
	require.Contains(t, out.String(), "unit=200 short=300 medium=500 long=700")
	require.Contains(t, out.String(), "# skipping:")
	require.Contains(t, out.String(), "histogram:")

	require.Error(t, analyzeCaptures(strings.NewReader(""), &out))
}
