package models

import "strings"

// Proxy protocol constants
const (
	ProtocolVless       = "vless"
	ProtocolVmess       = "vmess"
	ProtocolTrojan      = "trojan"
	ProtocolSS          = "ss"
	ProtocolShadowsocks = "shadowsocks"
)

// ProxyNode is a single externally operated proxy endpoint
type ProxyNode struct {
	ID        int64
	Name      string
	Host      string
	Port      int
	Protocol  string
	Method    string
	Password  string
	UUID      string
	Path      string
	Country   string
	City      string
	FlagEmoji string
	IsActive  bool
	SortOrder int
}

// DisplayName is the flag followed by the node name, as shown in clients.
func (n *ProxyNode) DisplayName() string {
	return strings.TrimSpace(n.FlagEmoji + " " + n.Name)
}

// NormalizedProtocol lowercases the protocol and folds "shadowsocks" into "ss".
func (n *ProxyNode) NormalizedProtocol() string {
	p := strings.ToLower(strings.TrimSpace(n.Protocol))
	if p == ProtocolShadowsocks {
		return ProtocolSS
	}
	return p
}
