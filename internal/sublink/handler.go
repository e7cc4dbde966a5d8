package sublink

import (
	"encoding/json"
	"net/http"
	"strings"
)

// RegisterHandlers вешает endpoint'ы подписки на переданный mux:
//
//	GET /subscription/{uid}?token=...[&raw=1]  — text/plain документ
//	GET /subscription/debug/{uid}?token=...    — JSON-диагностика
func (s *Service) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/subscription/", s.handleSubscription)
}

func (s *Service) handleSubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/subscription/")
	token := r.URL.Query().Get("token")

	if uid, ok := strings.CutPrefix(rest, "debug/"); ok {
		info := s.Debug(r.Context(), uid, token)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(info)
		return
	}

	uid := strings.TrimSuffix(rest, "/")
	rawOverride := r.URL.Query().Get("raw") == "1"
	res := s.Fetch(r.Context(), uid, token, r.Header.Get("User-Agent"), rawOverride)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(res.Status)
	w.Write([]byte(res.Body))
}
