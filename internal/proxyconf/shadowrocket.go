package proxyconf

import (
	"fmt"
	"strings"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

// Shadowrocket renders a Shadowrocket .conf profile
func Shadowrocket(in Input) string {
	proxies, names := proxySection(in.Nodes, shadowrocketProxy)

	lines := []string{
		updatedLine(in),
		"",
		"[General]",
		"bypass-system = true",
		"skip-proxy = 192.168.0.0/16, 10.0.0.0/8, 172.16.0.0/12, localhost, *.local, captive.apple.com",
		"tun-excluded-routes = 10.0.0.0/8, 100.64.0.0/10, 127.0.0.0/8, 169.254.0.0/16, 172.16.0.0/12, 192.0.0.0/24, 192.0.2.0/24, 192.88.99.0/24, 192.168.0.0/16, 198.51.100.0/24, 203.0.113.0/24, 224.0.0.0/4, 255.255.255.255/32",
		"dns-server = system",
		"ipv6 = true",
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

func shadowrocketProxy(n *models.ProxyNode) (string, bool) {
	name := lineName(n)
	switch n.NormalizedProtocol() {
	case models.ProtocolSS:
		return fmt.Sprintf("%s = ss, %s, %d, %s, %s", name, n.Host, n.Port, n.Method, n.Password), true
	case models.ProtocolVmess:
		return fmt.Sprintf("%s = vmess, %s, %d, %s, %s, over-tls=true, tls-host=%s, path=%s",
			name, n.Host, n.Port, methodOrAuto(n), n.UUID, n.Host, pathOrRoot(n)), true
	case models.ProtocolTrojan:
		return fmt.Sprintf("%s = trojan, %s, %d, %s", name, n.Host, n.Port, n.Password), true
	default:
		return "", false
	}
}
