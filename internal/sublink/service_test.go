package sublink

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vpn-reseller-bot/internal/db"
	"vpn-reseller-bot/internal/provision"
)

func testService(nodes []provision.Node, subActive bool) *Service {
	return &Service{
		secret: []byte("test-secret"),
		findUser: func(tgID int64) (db.User, error) {
			if tgID != 100500 {
				return db.User{}, gorm.ErrRecordNotFound
			}
			return db.User{ID: 1, TgID: 100500}, nil
		},
		activeSub: func(userID uint) (db.Subscription, bool, error) {
			sub := db.Subscription{UserID: userID, Status: db.SubStatusActive, ExpiresAt: time.Now().AddDate(0, 0, 30)}
			return sub, subActive, nil
		},
		provision: func(ctx context.Context, userScope string, expiry time.Time) ([]provision.Node, error) {
			return nodes, nil
		},
	}
}

func TestSignTokenStable(t *testing.T) {
	s := testService(nil, true)
	a := s.SignToken("100500")
	b := s.SignToken("100500")
	require.Equal(t, a, b)
	require.Len(t, a, 64) // hex от sha256

	// Изменение одного символа области меняет токен
	require.NotEqual(t, a, s.SignToken("100501"))
}

func TestFetchBadToken(t *testing.T) {
	s := testService(nil, true)
	res := s.Fetch(context.Background(), "100500", "wrong-token", "", false)
	assert.Equal(t, 403, res.Status)
}

func TestFetchUnknownUser(t *testing.T) {
	s := testService(nil, true)
	res := s.Fetch(context.Background(), "999", s.SignToken("999"), "", false)
	assert.Equal(t, 404, res.Status)
}

func TestFetchLapsedSubscriptionYieldsPlaceholder(t *testing.T) {
	s := testService(nil, false)
	res := s.Fetch(context.Background(), "100500", s.SignToken("100500"), "", false)
	// 200 с заглушкой, а не ошибка: клиентские приложения не должны падать
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, placeholderNoSub, res.Body)
}

func TestFetchJoinsURIs(t *testing.T) {
	nodes := []provision.Node{
		{PanelTitle: "P1", URI: "vless://aaa@p1.example.com:443?type=tcp#P1"},
		{PanelTitle: "P2", URI: "vless://bbb@p2.example.com:443?type=tcp#P2"},
	}
	s := testService(nodes, true)
	res := s.Fetch(context.Background(), "100500", s.SignToken("100500"), "curl/8.0", false)
	require.Equal(t, 200, res.Status)
	assert.Equal(t, nodes[0].URI+"\n"+nodes[1].URI, res.Body)
}

func TestFetchBase64ForKnownClients(t *testing.T) {
	nodes := []provision.Node{{PanelTitle: "P1", URI: "vless://aaa@h:443?type=tcp#P1"}}
	s := testService(nodes, true)

	res := s.Fetch(context.Background(), "100500", s.SignToken("100500"), "v2rayNG/1.8.5", false)
	require.Equal(t, 200, res.Status)
	decoded, err := base64.StdEncoding.DecodeString(res.Body)
	require.NoError(t, err)
	assert.Equal(t, nodes[0].URI, string(decoded))

	// raw=1 отменяет упаковку независимо от user-agent
	res = s.Fetch(context.Background(), "100500", s.SignToken("100500"), "v2rayNG/1.8.5", true)
	assert.Equal(t, nodes[0].URI, res.Body)
}

func TestFetchNoNodesPlaceholder(t *testing.T) {
	s := testService(nil, true)
	res := s.Fetch(context.Background(), "100500", s.SignToken("100500"), "", false)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, placeholderNoNodes, res.Body)
}

func TestWantsBase64(t *testing.T) {
	cases := []struct {
		ua   string
		want bool
	}{
		{"v2rayNG/1.8.5", true},
		{"Shadowrocket/1999 CFNetwork", true},
		{"NekoBox/Android", true},
		{"clash-verge/1.0", false},
		{"curl/8.0", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := WantsBase64(tc.ua); got != tc.want {
			t.Errorf("WantsBase64(%q) = %v, want %v", tc.ua, got, tc.want)
		}
	}
}

func TestDebug(t *testing.T) {
	nodes := []provision.Node{
		{PanelTitle: "P1", URI: "vless://aaa@h:443?type=tcp#P1"},
		{PanelTitle: "P2", URI: "vless://bbb@h:443?type=tcp#P2"},
	}
	s := testService(nodes, true)

	info := s.Debug(context.Background(), "100500", "bad")
	assert.False(t, info.TokenOK)
	assert.False(t, info.UserFound)

	info = s.Debug(context.Background(), "100500", s.SignToken("100500"))
	assert.True(t, info.TokenOK)
	assert.True(t, info.UserFound)
	assert.True(t, info.ActiveSub)
	assert.Equal(t, 2, info.Links)
}
