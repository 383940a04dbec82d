package catalog

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	// SafariUserAgent is served to WhatsApp, which rejects embedded Chrome.
	SafariUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Safari/605.1.15"

	defaultChromeVersion = "120.0.0.0"
)

// Platform describes the host a user agent is generated for.
type Platform struct {
	OS      string // runtime.GOOS values
	Arch    string // runtime.GOARCH values
	Release string // OS version, e.g. "10.15.7" or "10.0"
	Chrome  string // Chrome version
}

// HostPlatform returns the platform of the running process.
func HostPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

func (p Platform) is64Bit() bool {
	return strings.Contains(p.Arch, "64")
}

// token is the parenthesized platform part of a Chrome user agent.
func (p Platform) token() string {
	switch p.OS {
	case "darwin":
		release := p.Release
		if release == "" {
			release = "10.15.7"
		}
		return "Macintosh; Intel Mac OS X " + strings.ReplaceAll(release, ".", "_")
	case "windows":
		major, minor := "10", "0"
		if parts := strings.SplitN(p.Release, ".", 3); len(parts) >= 2 {
			major, minor = parts[0], parts[1]
		}
		arch := "Win32"
		if p.is64Bit() {
			arch = "Win64; x64"
		}
		return fmt.Sprintf("Windows NT %s.%s; %s", major, minor, arch)
	default:
		arch := p.Arch
		if p.is64Bit() {
			arch = "x86_64"
		}
		return "X11; Linux " + arch
	}
}

// ChromeUserAgent builds a desktop Chrome user agent for p.
func (p Platform) ChromeUserAgent() string {
	version := p.Chrome
	if version == "" {
		version = defaultChromeVersion
	}
	return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", p.token(), version)
}
