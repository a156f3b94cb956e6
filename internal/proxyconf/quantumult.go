package proxyconf

import (
	"fmt"
	"strings"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

const quantumultIcon = "https://raw.githubusercontent.com/Koolson/Qure/master/IconSet/Color/Rocket.png"

// Quantumult renders a Quantumult X profile
func Quantumult(in Input) string {
	servers, names := proxySection(in.Nodes, quantumultServer)

	lines := []string{
		updatedLine(in),
		"",
		"[server_local]",
	}
	lines = append(lines, servers...)
	lines = append(lines,
		"",
		"[policy]",
		fmt.Sprintf("static=%s, %s, img-url=%s", groupSelect, memberList(names, "direct"), quantumultIcon),
		"",
		"[filter_local]",
		"geoip, cn, direct",
		"final, "+groupSelect,
	)
	return strings.Join(lines, "\n")
}

func quantumultServer(n *models.ProxyNode) (string, bool) {
	tag := lineName(n)
	switch n.NormalizedProtocol() {
	case models.ProtocolSS:
		return fmt.Sprintf("shadowsocks=%s:%d, method=%s, password=%s, tag=%s",
			n.Host, n.Port, n.Method, n.Password, tag), true
	case models.ProtocolVmess:
		return fmt.Sprintf("vmess=%s:%d, method=%s, password=%s, obfs=wss, obfs-host=%s, obfs-uri=%s, tls-verification=true, tag=%s",
			n.Host, n.Port, methodOrAuto(n), n.UUID, n.Host, pathOrRoot(n), tag), true
	case models.ProtocolTrojan:
		return fmt.Sprintf("trojan=%s:%d, password=%s, over-tls=true, tls-verification=true, tag=%s",
			n.Host, n.Port, n.Password, tag), true
	default:
		return "", false
	}
}
