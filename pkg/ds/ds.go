// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package ds

// Transport packet types
const (
	PacketTypeLog       = "log"
	PacketTypeAppInfo   = "appinfo"
	PacketTypeProcStats = "procstats"
	PacketTypeAppDone   = "appdone"
)

// Stream source names
const (
	SourceStdout   = "/dev/stdout"
	SourceStderr   = "/dev/stderr"
	SourceInternal = "tailpipe"
)

type PacketType struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type LogLine struct {
	LineNum int64  `json:"linenum"`
	Ts      int64  `json:"ts"`
	Msg     string `json:"msg"`
	Source  string `json:"source,omitempty"`

	// ToConsole records whether the sender expects the collector to echo the
	// line to a terminal. The SDK always sends false since the passthrough
	// already happened on the client side.
	ToConsole bool `json:"toconsole,omitempty"`
}

type ConsoleConfig struct {
	// WrapStdout / WrapStderr control whether Init builds interceptor
	// streams for the two standard streams
	WrapStdout bool
	WrapStderr bool

	// FdTaps redirects the real file descriptors through pipes so output
	// written directly to fd 1/2 (fmt, cgo, child processes) is captured too.
	// Posix only.
	FdTaps bool
}

type ProcStatsConfig struct {
	// Enabled indicates whether the proc stats collector is enabled
	Enabled bool
}

type Config struct {
	Quiet bool // If true, suppresses init, connect, and disconnect messages

	// DomainSocketPath is the path to the Unix domain socket. If "" => use default.
	// If "-" => disable domain socket.
	DomainSocketPath string

	// ServerAddr is the TCP fallback address. If "" => use default.
	// If "-" => disable TCP.
	ServerAddr string

	// AppName is the name of the application. If not specified, it will be
	// determined from the executable name.
	AppName string

	// ModuleName is the name of the Go module. If not specified, it will be
	// determined from the go.mod file.
	ModuleName string

	// Dev indicates whether the client is in development mode
	Dev bool

	// If true, try to synchronously connect to the server on Init
	ConnectOnInit bool

	ConsoleConfig   ConsoleConfig
	ProcStatsConfig ProcStatsConfig
}

// BuildInfoData represents a simplified version of runtime/debug.BuildInfo
type BuildInfoData struct {
	GoVersion string            `json:"goversion"`
	Path      string            `json:"path"`
	Version   string            `json:"version,omitempty"`
	Settings  map[string]string `json:"settings,omitempty"`
}

type AppInfo struct {
	AppRunId           string         `json:"apprunid"`
	AppName            string         `json:"appname"`
	ModuleName         string         `json:"modulename"`
	Executable         string         `json:"executable"`
	Args               []string       `json:"args"`
	StartTime          int64          `json:"starttime"`
	Pid                int            `json:"pid"`
	User               string         `json:"user,omitempty"`
	Hostname           string         `json:"hostname,omitempty"`
	BuildInfo          *BuildInfoData `json:"buildinfo,omitempty"`
	TailpipeSDKVersion string         `json:"tailpipesdkversion,omitempty"`
}

type ProcStatsInfo struct {
	Ts         int64   `json:"ts"`
	Pid        int     `json:"pid"`
	CPUPercent float64 `json:"cpupercent"`
	MemoryRSS  uint64  `json:"memoryrss"`
	MemoryVMS  uint64  `json:"memoryvms"`
	NumThreads int32   `json:"numthreads"`
	GoRoutines int     `json:"goroutines"`
}

// Controller is the interface the interceptor core and collectors use to
// reach the shipping layer (an interface to get around import cycles).
type Controller interface {
	// Configuration
	GetConfig() Config
	GetAppRunId() string

	// Transport
	SendPacket(pk *PacketType) (bool, error)

	ILog(format string, args ...any)
}
