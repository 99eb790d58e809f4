package main

import (
	"errors"
	"io"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/bosporos/pbxd/pbx"
	"github.com/bosporos/pbxd/web"
)

// serialMode returns the line settings of cfg.
func serialMode(cfg *web.Config) *serial.Mode {
	mode := *pbx.DefaultSerialConfig
	if cfg.Serial.BaudRate > 0 {
		mode.BaudRate = cfg.Serial.BaudRate
	}
	return &mode
}

// devicePath returns the configured device, or the first serial port
// found on the host.
func devicePath(cfg *web.Config) (string, error) {
	if cfg.Device != "" {
		return cfg.Device, nil
	}
	ports, err := pbx.FindPorts()
	if err != nil {
		return "", err
	}
	log.Debug().Strs("ports", ports).Msg("autodetected serial ports")
	return ports[0], nil
}

// opener returns the function the watcher reopens the device with.
func opener(cfg *web.Config) func() (*pbx.Driver, error) {
	return func() (*pbx.Driver, error) {
		path, err := devicePath(cfg)
		if err != nil {
			return nil, err
		}
		return pbx.OpenWith(path, serialMode(cfg), cfg.Serial.Drain)
	}
}

// runMonitor prints every record read from the device until it is closed.
func runMonitor(cfg *web.Config) error {
	path, err := devicePath(cfg)
	if err != nil {
		return err
	}
	port, _, err := pbx.OpenPortName(path, serialMode(cfg))
	if err != nil {
		return err
	}
	defer port.Close()
	log.Info().Str("dev", path).Msg("monitoring records")
	return monitorRecords(port)
}

// monitorRecords logs every record of r until it ends, skipping the noise
// between records.
func monitorRecords(r io.Reader) error {
	rr := pbx.NewRecordReader(r)
	skipped := 0
	for {
		rec, err := rr.Next()
		if n := rr.Skipped(); n > skipped {
			log.Warn().Int("bytes", n-skipped).Msg("rx: out of sync")
			skipped = n
		}
		switch {
		case err == nil:
			log.Info().Stringer("record", rec).Int("payload", len(rec.Payload)).Msg("rx")
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, pbx.ErrChecksumMismatch):
			log.Warn().Err(err).Stringer("record", rec).Msg("rx")
		case errors.Is(err, pbx.ErrUnknownRecord), errors.Is(err, pbx.ErrUnsupported):
			log.Warn().Err(err).Msg("rx: dropped record")
		default:
			return err
		}
	}
}
