package pbx

import (
	"sync"

	"periph.io/x/host/v3"
)

var (
	initMu   sync.Mutex
	initDone bool
	initErr  error
)

// hostInit is replaced in tests.
var hostInit = func() error {
	_, err := host.Init()
	return err
}

// Init performs the one-time platform setup needed before any Driver is
// opened. With needsHostSetup false it does nothing, for hosts where the
// serial device needs no board drivers. Once the setup has run, later
// calls return its result.
func Init(needsHostSetup bool) error {
	initMu.Lock()
	defer initMu.Unlock()
	if initDone || !needsHostSetup {
		return initErr
	}
	initErr = hostInit()
	initDone = true
	return initErr
}
