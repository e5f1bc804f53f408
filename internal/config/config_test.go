package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, "wss://"+DefaultDomain+"/ws", cfg.WebSocketURL)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultCameraAddr, cfg.CameraAddr)
}

func TestFlagBeatsEnvBeatsDefault(t *testing.T) {
	t.Setenv("UPSCHOLAR_DOMAIN", "env.example.com")
	t.Setenv("STUN_SERVER", "stun:env.example.com:3478")

	cfg, err := Load(Options{Domain: "flag.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "flag.example.com", cfg.Domain, "flags win over env")
	assert.Equal(t, "stun:env.example.com:3478", cfg.STUNServer, "env wins over defaults")
	assert.Equal(t, "wss://flag.example.com/ws", cfg.WebSocketURL)
}

func TestTURNServersEmptyWhenUnconfigured(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Nil(t, cfg.GetTURNServers())
}

func TestTURNServersExpandTransports(t *testing.T) {
	cfg, err := Load(Options{TURNServer: "turn.example.com", TURNUser: "u", TURNPass: "p"})
	require.NoError(t, err)

	urls := cfg.GetTURNServers()
	require.Len(t, urls, 3)
	assert.Equal(t, "turn:turn.example.com:3478?transport=udp", urls[0])
	assert.Equal(t, "turn:turn.example.com:3478?transport=tcp", urls[1])
	assert.Equal(t, "turns:turn.example.com:5349?transport=tcp", urls[2])

	user, pass := cfg.GetTURNCredentials()
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
}

func TestRoomLink(t *testing.T) {
	cfg, err := Load(Options{Domain: "live.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "https://live.example.com/classroom/algebra-201", cfg.GetRoomLink("algebra-201"))
}
