package panel

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// BuildURI строит ссылку подключения из inbound'а и идентичности клиента.
// Функция чистая, в сеть не ходит. host — отображаемый домен панели,
// label уходит во фрагмент/имя профиля.
func BuildURI(inb Inbound, identity, label, host string) (string, error) {
	switch inb.Protocol {
	case ProtocolVLESS:
		return buildUserinfoURI("vless", inb, identity, label, host), nil
	case ProtocolTrojan:
		return buildUserinfoURI("trojan", inb, identity, label, host), nil
	case ProtocolVMess:
		return buildVMessURI(inb, identity, label, host)
	}
	return "", fmt.Errorf("panel: unsupported protocol %q", inb.Protocol)
}

// buildUserinfoURI — форма "идентичность в userinfo + query-параметры"
// (vless и trojan отличаются только схемой). Параметры, которых нет у
// inbound'а, опускаются; url.Values даёт стабильный алфавитный порядок.
func buildUserinfoURI(scheme string, inb Inbound, identity, label, host string) string {
	q := url.Values{}
	ss := inb.Stream
	q.Set("type", ss.Network)
	if ss.Security != "" && ss.Security != "none" {
		q.Set("security", ss.Security)
	}
	if ss.Path != "" {
		q.Set("path", ss.Path)
	}
	if ss.HostHeader != "" {
		q.Set("host", ss.HostHeader)
	}
	if ss.ServiceName != "" {
		q.Set("serviceName", ss.ServiceName)
	}
	if ss.SNI != "" {
		q.Set("sni", ss.SNI)
	}
	if len(ss.ALPN) > 0 {
		q.Set("alpn", strings.Join(ss.ALPN, ","))
	}
	if ss.Fingerprint != "" {
		q.Set("fp", ss.Fingerprint)
	}
	if ss.PublicKey != "" {
		q.Set("pbk", ss.PublicKey)
	}
	if ss.ShortID != "" {
		q.Set("sid", ss.ShortID)
	}
	if ss.Flow != "" && scheme == "vless" {
		q.Set("flow", ss.Flow)
	}
	// url.User кодирует userinfo по грамматике URI (важно для паролей
	// со спецсимволами у trojan)
	return fmt.Sprintf("%s://%s@%s:%d?%s#%s",
		scheme, url.User(identity).String(), host, inb.Port, q.Encode(), url.PathEscape(label))
}

// vmessDescriptor — каноничный JSON-дескриптор формата vmess://base64(json).
// Порядок полей фиксирован структурой, кодирование — StdEncoding с
// паддингом: часть клиентских приложений не понимает обрезанный паддинг,
// это контракт стабильности.
type vmessDescriptor struct {
	V    string `json:"v"`
	PS   string `json:"ps"`
	Add  string `json:"add"`
	Port string `json:"port"`
	ID   string `json:"id"`
	Aid  string `json:"aid"`
	Scy  string `json:"scy"`
	Net  string `json:"net"`
	Type string `json:"type"`
	Host string `json:"host,omitempty"`
	Path string `json:"path,omitempty"`
	TLS  string `json:"tls,omitempty"`
	SNI  string `json:"sni,omitempty"`
	ALPN string `json:"alpn,omitempty"`
	FP   string `json:"fp,omitempty"`
}

func buildVMessURI(inb Inbound, identity, label, host string) (string, error) {
	ss := inb.Stream
	desc := vmessDescriptor{
		V:    "2",
		PS:   label,
		Add:  host,
		Port: strconv.Itoa(inb.Port),
		ID:   identity,
		Aid:  "0",
		Scy:  "auto",
		Net:  ss.Network,
		Type: "none",
		Host: ss.HostHeader,
		Path: ss.Path,
		SNI:  ss.SNI,
		ALPN: strings.Join(ss.ALPN, ","),
		FP:   ss.Fingerprint,
	}
	if ss.Security == "tls" {
		desc.TLS = "tls"
	}
	data, err := json.Marshal(desc)
	if err != nil {
		return "", err
	}
	return "vmess://" + base64.StdEncoding.EncodeToString(data), nil
}
