package strip

import (
	"sync"
	"time"

	"github.com/bosporos/pbxd/pbx"
	"github.com/rkjdid/util"
	"github.com/rs/zerolog/log"
)

// Opener returns a freshly opened driver.
type Opener func() (*pbx.Driver, error)

type Watcher struct {
	strip  *Strip
	open   Opener
	cfg    *WatcherConfig
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type WatcherConfig struct {
	PollRate util.Duration `toml:"poll_rate" yaml:"poll_rate"`
}

var DefaultWatcherConfig = WatcherConfig{
	PollRate: util.Duration(time.Second),
}

// NewWatcher returns a Watcher reopening the driver of s with open.
func NewWatcher(s *Strip, open Opener, cfg *WatcherConfig) *Watcher {
	if cfg == nil {
		cfg = &DefaultWatcherConfig
	}
	return &Watcher{
		strip: s,
		open:  open,
		cfg:   cfg,
	}
}

// Stop notifies WatchConn to stop and waits until it returns.
func (w *Watcher) Stop() {
	if w.stopCh == nil {
		return
	}
	log.Debug().Msg("stopping conn watcher")
	close(w.stopCh)
	w.wg.Wait()
	w.stopCh = nil
}

// WatchConn polls the strip state every PollRate and, while it is
// Disconnected or in WriteError, opens a new driver and replays the last
// frames on it.
func (w *Watcher) WatchConn() {
	stop := make(chan struct{})
	w.stopCh = stop
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-time.After(time.Duration(w.cfg.PollRate)):
			case <-stop:
				return
			}
			w.Check()
		}
	}()
}

// Check runs one reconnection attempt if the strip needs it, and returns
// the resulting state.
func (w *Watcher) Check() State {
	s := w.strip
	s.Lock()
	defer s.Unlock()

	switch s.state {
	case Connected, Closed:
		return s.state
	}

	if s.driver.Connected() {
		log.Info().Str("dev", s.driver.Path()).Msg("watcher: closing serial connection")
		s.driver.Close()
	}

	d, err := w.open()
	if err != nil {
		// high-verbosity log
		log.Debug().Err(err).Msg("watcher: reopening device")
		s.state = Disconnected
		return s.state
	}
	if err = s.attach(d); err != nil {
		log.Warn().Err(err).Str("dev", d.Path()).Msg("watcher: restoring frames")
		return s.state
	}
	log.Info().Str("dev", d.Path()).Msg("watcher: device reconnected")
	return s.state
}
