// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package base

// Home directory paths
const TailpipeHome = "~/.config/tailpipe"
const DevTailpipeHome = "~/.config/tailpipe-dev"

// Domain socket name (just the filename part)
const DefaultDomainSocketName = "/tailpipe.sock"

// Environment variables
const DevEnvName = "TAILPIPE_DEV"
const DisabledEnvName = "TAILPIPE_DISABLED"
const ConfigJsonEnvName = "TAILPIPE_CONFIGJSON"
const DomainSocketEnvName = "TAILPIPE_DOMAINSOCKET"
const TCPAddrEnvName = "TAILPIPE_TCPADDR"

// Default TCP fallback addresses (must match the server's packet ports)
const DefaultTCPAddr = "127.0.0.1:5104"
const DevDefaultTCPAddr = "127.0.0.1:6104"

const TailpipeSDKVersion = "v0.1.0"

// GetTailpipeHome returns the appropriate home directory based on dev mode
func GetTailpipeHome(isDev bool) string {
	if isDev {
		return DevTailpipeHome
	}
	return TailpipeHome
}

// GetDomainSocketName returns the full domain socket path for a client
func GetDomainSocketName(isDev bool) string {
	return GetTailpipeHome(isDev) + DefaultDomainSocketName
}

// GetTCPAddr returns the default TCP fallback address for a client
func GetTCPAddr(isDev bool) string {
	if isDev {
		return DevDefaultTCPAddr
	}
	return DefaultTCPAddr
}
