package services

import (
	"net"
	"net/url"
	"sync"
	"time"

	"vpn-reseller-bot/internal/db"
	"vpn-reseller-bot/internal/logger"
)

type PanelStatus struct {
	Title       string
	Status      string
	LastChecked time.Time
}

var (
	statusMu     sync.RWMutex
	lastStatuses = map[uint]PanelStatus{}
)

func GetPanelStatuses() map[uint]PanelStatus {
	statusMu.RLock()
	defer statusMu.RUnlock()
	out := make(map[uint]PanelStatus, len(lastStatuses))
	for k, v := range lastStatuses {
		out[k] = v
	}
	return out
}

// UpdateAllPanelStatuses проверяет доступность активных панелей по TCP
func UpdateAllPanelStatuses() {
	panels, err := db.ActivePanels()
	if err != nil {
		return
	}
	statuses := make(map[uint]PanelStatus, len(panels))
	for _, p := range panels {
		status := PanelStatus{Title: p.Title, LastChecked: time.Now()}
		addr := dialAddr(p.BaseURL)
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err != nil {
			status.Status = "❌ offline"
			logger.NotifyAdmin("Панель " + p.Title + " (" + addr + ") недоступна!")
		} else {
			status.Status = "✅ online"
			conn.Close()
		}
		statuses[p.ID] = status
	}
	statusMu.Lock()
	lastStatuses = statuses
	statusMu.Unlock()
}

// dialAddr достаёт host:port из базового адреса панели
func dialAddr(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	host := u.Host
	if u.Port() == "" {
		if u.Scheme == "http" {
			host += ":80"
		} else {
			host += ":443"
		}
	}
	return host
}
