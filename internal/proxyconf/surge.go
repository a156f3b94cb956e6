package proxyconf

import (
	"fmt"
	"strings"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

// Surge renders a Surge profile
func Surge(in Input) string {
	proxies, names := proxySection(in.Nodes, surgeProxy)

	lines := []string{
		updatedLine(in),
		"",
		"[General]",
		"loglevel = notify",
		"bypass-system = true",
		"skip-proxy = 127.0.0.1, 192.168.0.0/16, 10.0.0.0/8, 172.16.0.0/12, 100.64.0.0/10, localhost, *.local",
		"bypass-tun = 192.168.0.0/16, 10.0.0.0/8, 172.16.0.0/12",
		"dns-server = system",
		"",
		"[Proxy]",
	}
	lines = append(lines, proxies...)
	lines = append(lines,
		"",
		"[Proxy Group]",
		groupSelect+" = select, "+memberList(names, "DIRECT"),
		"",
		"[Rule]",
		"GEOIP,CN,DIRECT",
		"FINAL,"+groupSelect,
	)
	return strings.Join(lines, "\n")
}

func surgeProxy(n *models.ProxyNode) (string, bool) {
	name := lineName(n)
	switch n.NormalizedProtocol() {
	case models.ProtocolSS:
		return fmt.Sprintf("%s = ss, %s, %d, encrypt-method=%s, password=%s", name, n.Host, n.Port, n.Method, n.Password), true
	case models.ProtocolVmess:
		return fmt.Sprintf("%s = vmess, %s, %d, username=%s, tls=true, ws=true, ws-path=%s, ws-headers=Host:%s",
			name, n.Host, n.Port, n.UUID, pathOrRoot(n), n.Host), true
	case models.ProtocolTrojan:
		return fmt.Sprintf("%s = trojan, %s, %d, password=%s, sni=%s", name, n.Host, n.Port, n.Password, n.Host), true
	default:
		return "", false
	}
}
