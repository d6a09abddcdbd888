// Package tailpipe intercepts a process's stdout/stderr streams and ships
// completed log lines to a tailpipe collector, without delaying terminal
// output and without dropping or duplicating text. Writes from any goroutine
// are echoed to the real stream immediately; partial writes are coalesced
// into logical lines on a single owner goroutine before shipping.
package tailpipe

import (
	"fmt"
	"os"
	"sync"

	"github.com/tailpipedev/tailpipe/pkg/config"
	"github.com/tailpipedev/tailpipe/pkg/console"
	"github.com/tailpipedev/tailpipe/pkg/dispatch"
	"github.com/tailpipedev/tailpipe/pkg/ds"
	"github.com/tailpipedev/tailpipe/pkg/global"
	"github.com/tailpipedev/tailpipe/pkg/shipper"
)

// Re-export the config types so callers can use tailpipe.Config directly.
type Config = ds.Config
type ConsoleConfig = ds.ConsoleConfig

var initLock sync.Mutex
var initialized bool

var mainDispatcher *dispatch.Dispatcher
var mainShipper *shipper.Shipper
var stdoutStream *console.ConsoleStream
var stderrStream *console.ConsoleStream
var stdoutTap console.FileTap
var stderrTap console.FileTap

// Init wires up the SDK: it builds the shipping controller, starts the
// owner-goroutine dispatcher, and constructs the interceptor streams for
// stdout/stderr per the config. Passing nil uses config loaded from defaults
// and the environment. Init is a no-op (returning nil) when the SDK is
// disabled via TAILPIPE_DISABLED.
func Init(cfgParam *Config) error {
	if config.IsDisabled() {
		return nil
	}

	initLock.Lock()
	defer initLock.Unlock()
	if initialized {
		return fmt.Errorf("tailpipe already initialized")
	}

	var cfg *ds.Config
	if cfgParam != nil {
		finalCfg := *cfgParam
		defaults := config.DefaultConfig()
		if finalCfg.DomainSocketPath == "" {
			finalCfg.DomainSocketPath = defaults.DomainSocketPath
		}
		if finalCfg.ServerAddr == "" {
			finalCfg.ServerAddr = defaults.ServerAddr
		}
		cfg = &finalCfg
	} else {
		loaded, err := config.LoadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
	}

	mainShipper = shipper.MakeShipper(cfg)
	var controller ds.Controller = mainShipper
	global.Controller.Store(&controller)

	mainDispatcher = dispatch.MakeDispatcher()
	go mainDispatcher.Run()

	if cfg.ConsoleConfig.WrapStdout {
		stream, tap, err := makeStream(os.Stdout, ds.SourceStdout, cfg.ConsoleConfig.FdTaps)
		if err != nil {
			return err
		}
		stdoutStream, stdoutTap = stream, tap
	}
	if cfg.ConsoleConfig.WrapStderr {
		stream, tap, err := makeStream(os.Stderr, ds.SourceStderr, cfg.ConsoleConfig.FdTaps)
		if err != nil {
			return err
		}
		stderrStream, stderrTap = stream, tap
	}

	initialized = true
	return nil
}

// makeStream builds the interceptor for one stream. With fd taps the real
// descriptor is swapped for a pipe and the passthrough targets a dup of the
// original; without taps the stream is a plain writer the embedder installs
// itself (log.SetOutput, exec.Cmd.Stdout, ...).
func makeStream(f *os.File, source string, useTap bool) (*console.ConsoleStream, console.FileTap, error) {
	if useTap {
		tap, err := console.MakeFileTap(f, source)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to tap %s: %w", source, err)
		}
		orig := tap.OrigFile()
		stream := console.MakeConsoleStream(orig, source, func(text string) {
			orig.WriteString(text)
		}, makeSink(source), mainDispatcher)
		tap.Start(stream)
		return stream, tap, nil
	}
	stream := console.MakeConsoleStream(f, source, func(text string) {
		f.WriteString(text)
	}, makeSink(source), mainDispatcher)
	return stream, nil, nil
}

func makeSink(source string) console.LogSinkFn {
	return func(line string, toConsole bool) {
		mainShipper.ShipLine(source, line, toConsole)
	}
}

// Stdout returns the interceptor handle for standard output (nil before Init
// or when stdout wrapping is disabled).
func Stdout() *console.ConsoleStream {
	return stdoutStream
}

// Stderr returns the interceptor handle for standard error.
func Stderr() *console.ConsoleStream {
	return stderrStream
}

// Enable lifts a previous Disable and attempts to reconnect.
func Enable() {
	global.TailpipeForceDisabled.Store(false)
	if mainShipper != nil {
		mainShipper.Connect()
	}
}

// Disable stops shipping and disconnects. Terminal passthrough is unaffected.
func Disable() {
	global.TailpipeForceDisabled.Store(true)
	if mainShipper != nil {
		mainShipper.Disconnect()
	}
}

// Shutdown ships any buffered partial lines, restores tapped descriptors,
// and closes the collector connection.
func Shutdown() {
	initLock.Lock()
	defer initLock.Unlock()
	if !initialized {
		return
	}
	if stdoutStream != nil {
		stdoutStream.DrainPending()
	}
	if stderrStream != nil {
		stderrStream.DrainPending()
	}
	if stdoutTap != nil {
		stdoutTap.Restore()
	}
	if stderrTap != nil {
		stderrTap.Restore()
	}
	if mainDispatcher != nil {
		mainDispatcher.Stop()
	}
	if mainShipper != nil {
		mainShipper.Shutdown()
	}
	initialized = false
}
