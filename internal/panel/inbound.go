package panel

import (
	"encoding/json"
	"errors"
	"strconv"
)

// Протоколы, которые умеем превращать в ссылки подписки
const (
	ProtocolVLESS  = "vless"
	ProtocolVMess  = "vmess"
	ProtocolTrojan = "trojan"
)

// SupportedProtocol сообщает, строим ли мы ссылки для данного протокола
func SupportedProtocol(proto string) bool {
	switch proto {
	case ProtocolVLESS, ProtocolVMess, ProtocolTrojan:
		return true
	}
	return false
}

// Inbound — нормализованное описание входящего подключения панели.
// Разнобой форматов апстримов не должен просачиваться дальше этого типа.
type Inbound struct {
	ID       int
	Protocol string
	Port     int
	Remark   string
	Stream   StreamSettings
}

// StreamSettings — транспортные настройки inbound, уже разобранные из JSON
type StreamSettings struct {
	Network     string
	Security    string
	Path        string
	HostHeader  string
	ServiceName string
	SNI         string
	ALPN        []string
	Fingerprint string
	PublicKey   string
	ShortID     string
	Flow        string
}

// wireInbound покрывает известные формы ответа панелей: ключи сверяются
// без учёта регистра, порт может прийти и числом, и строкой
type wireInbound struct {
	ID             flexInt `json:"id"`
	Protocol       string  `json:"protocol"`
	Port           flexInt `json:"port"`
	Remark         string  `json:"remark"`
	StreamSettings string  `json:"streamSettings"`
}

// flexInt принимает как 443, так и "443"
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type wireStream struct {
	Network    string `json:"network"`
	Security   string `json:"security"`
	WSSettings struct {
		Path    string            `json:"path"`
		Headers map[string]string `json:"headers"`
	} `json:"wsSettings"`
	TCPSettings struct {
		Header struct {
			Type    string `json:"type"`
			Request struct {
				Path    []string            `json:"path"`
				Headers map[string][]string `json:"headers"`
			} `json:"request"`
		} `json:"header"`
	} `json:"tcpSettings"`
	GRPCSettings struct {
		ServiceName string `json:"serviceName"`
	} `json:"grpcSettings"`
	TLSSettings struct {
		ServerName string   `json:"serverName"`
		Alpn       []string `json:"alpn"`
		Settings   struct {
			Fingerprint string `json:"fingerprint"`
			ServerName  string `json:"serverName"`
		} `json:"settings"`
	} `json:"tlsSettings"`
	RealitySettings struct {
		ServerNames []string `json:"serverNames"`
		ShortIds    []string `json:"shortIds"`
		Settings    struct {
			PublicKey   string `json:"publicKey"`
			Fingerprint string `json:"fingerprint"`
		} `json:"settings"`
	} `json:"realitySettings"`
}

// parseInbounds разбирает тело ответа списка inbound'ов. Панели заворачивают
// результат по-разному: {"obj": [...]}, {"data": [...]} или голый массив —
// пробуем известные поля по порядку.
func parseInbounds(body []byte) ([]Inbound, error) {
	var envelope map[string]json.RawMessage
	raw := json.RawMessage(body)
	if err := json.Unmarshal(body, &envelope); err == nil {
		found := false
		for _, field := range []string{"obj", "data", "inbounds"} {
			if v, ok := envelope[field]; ok && len(v) > 0 && string(v) != "null" {
				raw = v
				found = true
				break
			}
		}
		if !found {
			return nil, errors.New("panel: no known list field in response")
		}
	}
	var wires []wireInbound
	if err := json.Unmarshal(raw, &wires); err != nil {
		return nil, err
	}
	inbounds := make([]Inbound, 0, len(wires))
	for _, w := range wires {
		inbounds = append(inbounds, Inbound{
			ID:       int(w.ID),
			Protocol: w.Protocol,
			Port:     int(w.Port),
			Remark:   w.Remark,
			Stream:   parseStream(w.StreamSettings),
		})
	}
	return inbounds, nil
}

// parseStream разбирает streamSettings (приходит строкой с вложенным JSON).
// Пустой или битый JSON трактуем как tcp без шифрования: ссылка всё равно
// строится, просто без транспортных параметров.
func parseStream(raw string) StreamSettings {
	ss := StreamSettings{Network: "tcp", Security: "none"}
	if raw == "" {
		return ss
	}
	var w wireStream
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return ss
	}
	if w.Network != "" {
		ss.Network = w.Network
	}
	if w.Security != "" {
		ss.Security = w.Security
	}
	switch ss.Network {
	case "ws":
		ss.Path = w.WSSettings.Path
		ss.HostHeader = w.WSSettings.Headers["Host"]
	case "grpc":
		ss.ServiceName = w.GRPCSettings.ServiceName
	case "tcp":
		if w.TCPSettings.Header.Type == "http" {
			if len(w.TCPSettings.Header.Request.Path) > 0 {
				ss.Path = w.TCPSettings.Header.Request.Path[0]
			}
			if hosts := w.TCPSettings.Header.Request.Headers["Host"]; len(hosts) > 0 {
				ss.HostHeader = hosts[0]
			}
		}
	}
	switch ss.Security {
	case "tls":
		ss.SNI = w.TLSSettings.ServerName
		if ss.SNI == "" {
			ss.SNI = w.TLSSettings.Settings.ServerName
		}
		ss.ALPN = w.TLSSettings.Alpn
		ss.Fingerprint = w.TLSSettings.Settings.Fingerprint
	case "reality":
		if len(w.RealitySettings.ServerNames) > 0 {
			ss.SNI = w.RealitySettings.ServerNames[0]
		}
		if len(w.RealitySettings.ShortIds) > 0 {
			ss.ShortID = w.RealitySettings.ShortIds[0]
		}
		ss.PublicKey = w.RealitySettings.Settings.PublicKey
		ss.Fingerprint = w.RealitySettings.Settings.Fingerprint
		// VLESS поверх reality подразумевает vision flow
		ss.Flow = "xtls-rprx-vision"
	}
	return ss
}
