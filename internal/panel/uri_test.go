package panel

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildURIVlessRealityParams(t *testing.T) {
	inb := Inbound{
		ID:       1,
		Protocol: ProtocolVLESS,
		Port:     443,
		Stream: StreamSettings{
			Network:     "tcp",
			Security:    "reality",
			SNI:         "cdn.example.com",
			Fingerprint: "chrome",
			PublicKey:   "pbk-value",
			ShortID:     "ab12",
			Flow:        "xtls-rprx-vision",
		},
	}
	uri, err := BuildURI(inb, "11111111-2222-3333-4444-555555555555", "Панель №1", "vpn.example.com")
	require.NoError(t, err)

	parsed, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "vless", parsed.Scheme)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", parsed.User.Username())
	assert.Equal(t, "vpn.example.com:443", parsed.Host)

	q := parsed.Query()
	assert.Equal(t, "tcp", q.Get("type"))
	assert.Equal(t, "reality", q.Get("security"))
	assert.Equal(t, "cdn.example.com", q.Get("sni"))
	assert.Equal(t, "chrome", q.Get("fp"))
	assert.Equal(t, "pbk-value", q.Get("pbk"))
	assert.Equal(t, "ab12", q.Get("sid"))
	assert.Equal(t, "xtls-rprx-vision", q.Get("flow"))
	// Неиспользуемые параметры не должны попадать в ссылку
	assert.False(t, q.Has("path"))
	assert.False(t, q.Has("host"))
	assert.False(t, q.Has("alpn"))
	// Кириллический label экранируется
	assert.NotContains(t, uri, "Панель")
}

func TestBuildURIVlessWsOmitsEmpty(t *testing.T) {
	inb := Inbound{
		ID:       2,
		Protocol: ProtocolVLESS,
		Port:     8443,
		Stream: StreamSettings{
			Network:    "ws",
			Security:   "tls",
			Path:       "/secret ws",
			HostHeader: "cdn.example.com",
			SNI:        "cdn.example.com",
			ALPN:       []string{"h2", "http/1.1"},
		},
	}
	uri, err := BuildURI(inb, "uuid-x", "node", "vpn.example.com")
	require.NoError(t, err)
	q, err := url.Parse(uri)
	require.NoError(t, err)
	vals := q.Query()
	assert.Equal(t, "/secret ws", vals.Get("path"))
	assert.Equal(t, "h2,http/1.1", vals.Get("alpn"))
	assert.False(t, vals.Has("security") && vals.Get("security") == "none")
	assert.False(t, vals.Has("flow"))
	assert.False(t, vals.Has("pbk"))
}

func TestBuildURIVmessRoundTrip(t *testing.T) {
	inb := Inbound{
		ID:       3,
		Protocol: ProtocolVMess,
		Port:     2053,
		Stream: StreamSettings{
			Network:    "ws",
			Security:   "tls",
			Path:       "/vm",
			HostHeader: "cdn.example.com",
			SNI:        "cdn.example.com",
		},
	}
	uri, err := BuildURI(inb, "33333333-4444-5555-6666-777777777777", "node-3", "vpn.example.com")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "vmess://"))

	// Паддинг base64 должен сохраняться: декодируем строго StdEncoding
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "vmess://"))
	require.NoError(t, err)

	var desc map[string]string
	require.NoError(t, json.Unmarshal(decoded, &desc))
	assert.Equal(t, "2", desc["v"])
	assert.Equal(t, "node-3", desc["ps"])
	assert.Equal(t, "vpn.example.com", desc["add"])
	assert.Equal(t, "2053", desc["port"])
	assert.Equal(t, "33333333-4444-5555-6666-777777777777", desc["id"])
	assert.Equal(t, "ws", desc["net"])
	assert.Equal(t, "tls", desc["tls"])
	assert.Equal(t, "/vm", desc["path"])
	_, hasAlpn := desc["alpn"]
	assert.False(t, hasAlpn)
}

func TestBuildURITrojan(t *testing.T) {
	inb := Inbound{
		ID:       4,
		Protocol: ProtocolTrojan,
		Port:     443,
		Stream: StreamSettings{
			Network:  "tcp",
			Security: "tls",
			SNI:      "vpn.example.com",
		},
	}
	uri, err := BuildURI(inb, "p@ss:word", "node-4", "vpn.example.com")
	require.NoError(t, err)
	parsed, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "trojan", parsed.Scheme)
	// Пароль с спецсимволами обязан быть закодирован
	assert.Equal(t, "p@ss:word", parsed.User.Username())
	assert.Equal(t, "tls", parsed.Query().Get("security"))
	assert.False(t, parsed.Query().Has("flow"))
}

func TestBuildURIUnsupportedProtocol(t *testing.T) {
	_, err := BuildURI(Inbound{Protocol: "shadowsocks"}, "id", "l", "h")
	require.Error(t, err)
}

func TestBuildURIDeterministic(t *testing.T) {
	inb := Inbound{
		ID:       5,
		Protocol: ProtocolVLESS,
		Port:     443,
		Stream:   StreamSettings{Network: "ws", Security: "tls", Path: "/a", SNI: "s", HostHeader: "h"},
	}
	a, err := BuildURI(inb, "uuid", "label", "host")
	require.NoError(t, err)
	b, err := BuildURI(inb, "uuid", "label", "host")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
