package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosporos/pbxd/pbx"
	"github.com/bosporos/pbxd/web"
)

func TestSerialMode(t *testing.T) {
	cfg := web.NewConfig()
	assert.Equal(t, pbx.BaudRate, serialMode(cfg).BaudRate)

	cfg.Serial.BaudRate = 115200
	mode := serialMode(cfg)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, pbx.BaudRate, pbx.DefaultSerialConfig.BaudRate, "default left untouched")

	cfg.Serial.BaudRate = 0
	assert.Equal(t, pbx.BaudRate, serialMode(cfg).BaudRate)
}

func TestDevicePath_Configured(t *testing.T) {
	cfg := web.NewConfig()
	cfg.Device = "/dev/ttyS0"
	path, err := devicePath(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS0", path)
}

func TestMonitorRecords(t *testing.T) {
	ch, err := pbx.NewChannel(0, pbx.RGB, 1, 0, 2, 0)
	require.NoError(t, err)
	stream, err := pbx.AppendChannelWrite(nil, ch, []byte{1, 2, 3}, 1)
	require.NoError(t, err)
	stream = pbx.AppendCommit(stream)
	bad := pbx.EncodeCommit()
	bad[len(bad)-1] ^= 0xff
	stream = append(stream, bad...)

	var out bytes.Buffer
	setupLogging(web.LogConfig{Level: "info", Format: "json"}, &out)
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	require.NoError(t, monitorRecords(bytes.NewReader(stream)))
	assert.Equal(t, 3, bytes.Count(out.Bytes(), []byte("\n")))
	assert.Contains(t, out.String(), "checksum mismatch")

	assert.ErrorIs(t, monitorRecords(bytes.NewReader(stream[:4+2+4+1])), io.ErrUnexpectedEOF)
}

func TestMonitorRecords_StrayByte(t *testing.T) {
	stream := []byte{0x42}
	for i := 0; i < 5; i++ {
		stream = pbx.AppendCommit(stream)
	}

	var out bytes.Buffer
	setupLogging(web.LogConfig{Level: "info", Format: "json"}, &out)
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	require.NoError(t, monitorRecords(bytes.NewReader(stream)))
	assert.Equal(t, 5, strings.Count(out.String(), `"message":"rx"`))
	assert.Equal(t, 1, strings.Count(out.String(), "out of sync"))
	assert.Contains(t, out.String(), `"bytes":1`)
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var out bytes.Buffer
	setupLogging(web.LogConfig{Level: "warn", Format: "json"}, &out)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	setupLogging(web.LogConfig{Level: "nonsense"}, &out)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
