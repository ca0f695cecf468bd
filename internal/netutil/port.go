// Package netutil picks the address the API listens on.
package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// ErrNoBindAddr is returned when neither the preferred address nor any
// candidate can be listened on.
var ErrNoBindAddr = errors.New("no available API bind addresses")

// SelectBindAddr returns preferred when it is free, otherwise the first free
// candidate when autoFallback is set.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		ok, err := IsAddrAvailable(preferred)
		if err != nil {
			return "", err
		}
		if ok {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("preferred bind address in use: %s", preferred)
		}
		slog.Warn("preferred bind address in use, trying candidates", "preferred", preferred, "candidates", candidates)
	}

	for _, addr := range candidates {
		if addr == preferred {
			continue
		}
		ok, err := IsAddrAvailable(addr)
		if err != nil {
			return "", err
		}
		if ok {
			return addr, nil
		}
		slog.Debug("bind candidate in use", "addr", addr)
	}

	return "", ErrNoBindAddr
}

// IsAddrAvailable returns true when an address can be listened on.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
