package app

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

type AuthMode int

const (
	// AuthOpen allows every client; use it only when the transport itself
	// is already perimeter-controlled.
	AuthOpen AuthMode = iota
	// AuthSubnet allows loopback plus clients on the server's /24.
	AuthSubnet
)

func ParseAuthMode(s string) (AuthMode, error) {
	switch strings.ToLower(s) {
	case "open":
		return AuthOpen, nil
	case "subnet", "":
		return AuthSubnet, nil
	default:
		return AuthSubnet, fmt.Errorf("unknown auth mode %q", s)
	}
}

func (m AuthMode) String() string {
	if m == AuthOpen {
		return "open"
	}
	return "subnet"
}

// Authorizer decides whether a client address may use the server.
// Pure and deterministic: same inputs, same answer, no side effects.
//
// ServerIP is the dotted-quad address of the serving interface; empty when
// detection failed at startup, in which case subnet mode denies everything
// except loopback (fail closed, never fall back to open).
type Authorizer struct {
	Mode     AuthMode
	ServerIP string
}

// Allow implements the subnet rule: loopback is always local, otherwise the
// first three dotted-quad components must match the server's exactly.
// The /24 assumption is deliberate; no CIDR arithmetic.
func (a Authorizer) Allow(clientIP string) bool {
	if a.Mode == AuthOpen {
		return true
	}
	ip := net.ParseIP(clientIP)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	if a.ServerIP == "" {
		return false
	}
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	client := strings.Split(v4.String(), ".")
	server := strings.Split(a.ServerIP, ".")
	if len(client) != 4 || len(server) != 4 {
		return false
	}
	return client[0] == server[0] && client[1] == server[1] && client[2] == server[2]
}

// Subnet returns the human-readable network the authorizer accepts,
// for the denial page. Empty when the server address is unknown.
func (a Authorizer) Subnet() string {
	if a.ServerIP == "" {
		return ""
	}
	parts := strings.Split(a.ServerIP, ".")
	if len(parts) != 4 {
		return ""
	}
	return strings.Join(parts[:3], ".") + ".x"
}

var ErrNoServerIP = errors.New("no non-loopback private IPv4 interface found")

// DetectServerIP picks the first private IPv4 address of an up, non-loopback
// interface. Callers under subnet mode must treat an error as "deny all
// non-loopback" rather than falling back to open.
func DetectServerIP() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			v4 := ipNet.IP.To4()
			if v4 == nil || !v4.IsPrivate() {
				continue
			}
			return v4.String(), nil
		}
	}
	return "", ErrNoServerIP
}
