package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bosporos/pbxd/demo"
	"github.com/bosporos/pbxd/mqttbridge"
	"github.com/bosporos/pbxd/pbx"
	"github.com/bosporos/pbxd/strip"
	"github.com/bosporos/pbxd/web"
)

var rootConfig *web.Config

var (
	device   = flag.String("dev", "", "path to serial port, if empty it will be searched automatically")
	rootPath = flag.String("root", "", "path to pbxd's main directory (defaults to executable path)")
	cfgPath  = flag.String("config", "", "path to config, .toml or .yaml (defaults to <root>/config.toml)")
	pattern  = flag.String("demo", "", "play a demo pattern (sine, bounce, solid)")
	monitor  = flag.Bool("monitor", false, "decode and print records received on the serial port, then exit")
	verbose  = flag.Bool("v", false, "higher verbosity")
	version  = flag.Bool("version", false, "print version & exit")
)

// setup parses flags, loads or bootstraps the config file and configures
// logging.
func setup() {
	flag.Parse()

	if *version {
		fmt.Printf("pbxd %s\n", Version)
		os.Exit(0)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if *rootPath == "" {
		exe, err := os.Executable()
		if err != nil {
			log.Fatal().Err(err).Msg("couldn't get path to executable")
		}
		*rootPath = filepath.Dir(exe)
	}
	if err := os.MkdirAll(*rootPath, 0755); err != nil {
		log.Fatal().Err(err).Str("path", *rootPath).Msg("couldn't mkdir")
	}
	if *cfgPath == "" {
		*cfgPath = filepath.Join(*rootPath, "config.toml")
	}

	var err error
	rootConfig, err = web.LoadConfig(*cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatal().Err(err).Str("path", *cfgPath).Msg("error reading config")
		}
		rootConfig = web.NewConfig()
		if err = web.WriteConfig(rootConfig, *cfgPath); err != nil {
			log.Fatal().Err(err).Str("path", *cfgPath).Msg("error creating config")
		}
		log.Info().Str("path", *cfgPath).Msg("created new config file")
	}

	if *device != "" {
		rootConfig.Device = *device
	}
	if *pattern != "" {
		rootConfig.Demo.Pattern = *pattern
	}
	if *verbose {
		rootConfig.Web.Verbose = true
		rootConfig.Log.Level = "debug"
	}
	setupLogging(rootConfig.Log, os.Stderr)

	log.Info().Str("path", *cfgPath).Msg("using config file")
}

// setupLogging applies the level and output format of cfg to the global
// logger.
func setupLogging(cfg web.LogConfig, out io.Writer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if cfg.Format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
}

func main() {
	setup()

	if err := pbx.Init(rootConfig.HostInit); err != nil {
		log.Fatal().Err(err).Msg("host initialisation failed")
	}

	if *monitor {
		if err := runMonitor(rootConfig); err != nil {
			log.Fatal().Err(err).Msg("monitor")
		}
		return
	}

	open := opener(rootConfig)
	driver, err := open()
	if err != nil {
		log.Error().Err(err).Msg("error opening device, the watcher will retry")
	} else {
		log.Info().Str("dev", driver.Path()).Msg("connected")
	}

	s, err := strip.New(driver, &rootConfig.Strip)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid strip configuration")
	}

	log.Info().Stringer("poll_rate", rootConfig.Watcher.PollRate).Msg("starting conn watcher")
	watcher := strip.NewWatcher(s, open, &rootConfig.Watcher)
	watcher.WatchConn()

	srv := web.NewServer(Version, s, &rootConfig.Web)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Fatal().Err(err).Msg("http.ListenAndServe")
		}
	}()

	var bridge *mqttbridge.Bridge
	if rootConfig.MQTT.Enabled {
		bridge = mqttbridge.New(rootConfig.MQTT, s)
		if err := bridge.Connect(); err != nil {
			log.Error().Err(err).Str("broker", rootConfig.MQTT.Broker).Msg("mqtt disabled")
			bridge = nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if *pattern != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := demo.Run(ctx, s, rootConfig.Demo); err != nil {
				log.Error().Err(err).Msg("demo")
			}
		}()
	}

	log.Info().Msg("Press <Ctrl-C> to quit")

	trap := make(chan os.Signal, 1)
	signal.Notify(trap, os.Interrupt, syscall.SIGTERM)
	<-trap
	log.Info().Msg("quit received...")

	cleanExit := make(chan struct{})
	go func() {
		cancel()
		wg.Wait()
		watcher.Stop()
		if bridge != nil {
			bridge.Close()
		}
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("web shutdown")
		}
		if err := s.Close(); err != nil && !errors.Is(err, pbx.ErrNotConnected) {
			log.Warn().Err(err).Msg("closing strip")
		}
		close(cleanExit)
	}()
	select {
	case <-time.After(time.Second * 10):
		log.Panic().Msg("no clean exit after 10sec")
	case <-cleanExit:
	}
}
