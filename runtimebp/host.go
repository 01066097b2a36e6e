package runtimebp

import "os"

// UnknownHost is returned by Hostname when the machine name can't be read.
const UnknownHost = "unknown"

// Hostname returns the machine name, or UnknownHost.
func Hostname() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return UnknownHost
	}
	return host
}
