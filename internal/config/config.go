package config

import (
	"fmt"
	"os"
)

// Default configuration values (production).
const (
	DefaultDomain   = "live.upscholar.app"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = ""
	DefaultTURNUser = ""
	DefaultTURNPass = ""

	DefaultListenAddr = ":8080"

	DefaultCameraAddr = "127.0.0.1:5004"
	DefaultMicAddr    = "127.0.0.1:5006"
	DefaultScreenAddr = "127.0.0.1:5008"
)

// Config holds application configuration for both the relay and the
// client.
type Config struct {
	// Domain is the relay domain; WebSocketURL is derived from it.
	Domain       string
	WebSocketURL string

	// ListenAddr is where the relay binds when serving.
	ListenAddr string

	// ICE servers for WebRTC.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// Local capture pipeline ports (RTP over UDP).
	CameraAddr string
	MicAddr    string
	ScreenAddr string

	// NoDevice joins with synthetic silent tracks; useful on machines
	// without capture pipelines.
	NoDevice bool
}

// Options carry CLI flag overrides into Load.
type Options struct {
	Domain     string
	ListenAddr string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	CameraAddr string
	MicAddr    string
	ScreenAddr string
	NoDevice   bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		Domain:     layered(opts.Domain, "UPSCHOLAR_DOMAIN", DefaultDomain),
		ListenAddr: layered(opts.ListenAddr, "UPSCHOLAR_LISTEN_ADDR", DefaultListenAddr),
		STUNServer: layered(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer: layered(opts.TURNServer, "TURN_SERVER", DefaultTURN),
		TURNUser:   layered(opts.TURNUser, "TURN_USERNAME", DefaultTURNUser),
		TURNPass:   layered(opts.TURNPass, "TURN_PASSWORD", DefaultTURNPass),
		CameraAddr: layered(opts.CameraAddr, "CAMERA_RTP_ADDR", DefaultCameraAddr),
		MicAddr:    layered(opts.MicAddr, "MIC_RTP_ADDR", DefaultMicAddr),
		ScreenAddr: layered(opts.ScreenAddr, "SCREEN_RTP_ADDR", DefaultScreenAddr),
		NoDevice:   opts.NoDevice,
	}
	cfg.WebSocketURL = fmt.Sprintf("wss://%s/ws", cfg.Domain)

	return cfg, nil
}

func layered(flag, env, fallback string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}

// GetSTUNServers returns STUN server URLs as strings.
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("turn:%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// GetRoomLink returns the webapp URL for joining a room in the browser.
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/classroom/%s", c.Domain, roomID)
}
