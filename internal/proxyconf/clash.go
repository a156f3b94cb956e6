package proxyconf

import (
	"strings"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
	"github.com/wenwu/saas-platform/sublink-service/internal/yamlout"
)

// 策略组名称
const (
	groupSelect      = "🚀 节点选择"
	groupAuto        = "♻️ 自动选择"
	groupFallback    = "🔯 故障转移"
	groupLoadBalance = "🔮 负载均衡"
	groupDirect      = "🎯 全球直连"
	groupFinal       = "🛡️ 漏网之鱼"

	healthCheckURL      = "http://www.gstatic.com/generate_204"
	healthCheckInterval = 300
)

var clashRules = []string{
	"DOMAIN-SUFFIX,local,DIRECT",
	"IP-CIDR,127.0.0.0/8,DIRECT",
	"IP-CIDR,172.16.0.0/12,DIRECT",
	"IP-CIDR,192.168.0.0/16,DIRECT",
	"IP-CIDR,10.0.0.0/8,DIRECT",
	"IP-CIDR,17.0.0.0/8,DIRECT",
	"IP-CIDR,100.64.0.0/10,DIRECT",
	"GEOIP,CN,DIRECT",
	"MATCH," + groupFinal,
}

// Clash renders a Clash/Clash.Meta YAML profile
func Clash(in Input) string {
	var proxies yamlout.List
	var names []string
	var skipped []string

	for i := range in.Nodes {
		n := &in.Nodes[i]
		proxy, err := clashProxy(n)
		if err != nil {
			skipped = append(skipped, skipLine(n, err))
			continue
		}
		proxies = append(proxies, proxy)
		names = append(names, n.DisplayName())
	}
	if proxies == nil {
		proxies = yamlout.List{}
	}

	doc := yamlout.Map{}.
		Set("port", 7890).
		Set("socks-port", 7891).
		Set("allow-lan", false).
		Set("mode", "rule").
		Set("log-level", "info").
		Set("external-controller", "127.0.0.1:9090").
		Set("proxies", proxies).
		Set("proxy-groups", clashGroups(names)).
		Set("rules", yamlout.Strings(clashRules))

	var b strings.Builder
	b.WriteString("# " + singleLine(in.PlanName) + " - Clash 配置\n")
	b.WriteString("# 更新时间: " + displayTime(in.GeneratedAt) + "\n")
	b.WriteString("# 到期时间: " + displayTime(in.ExpiresAt) + "\n")
	for _, line := range skipped {
		b.WriteString(line + "\n")
	}
	b.WriteString(yamlout.Marshal(doc))
	return b.String()
}

func clashProxy(n *models.ProxyNode) (yamlout.Map, error) {
	if err := checkFields(n); err != nil {
		return nil, err
	}
	protocol := n.NormalizedProtocol()
	proxy := yamlout.Map{}.
		Set("name", n.DisplayName()).
		Set("type", protocol).
		Set("server", n.Host).
		Set("port", n.Port)

	switch protocol {
	case models.ProtocolSS:
		proxy = proxy.
			Set("cipher", n.Method).
			Set("password", n.Password)
	case models.ProtocolVmess:
		proxy = proxy.
			Set("uuid", n.UUID).
			Set("alterId", 0).
			Set("cipher", "auto").
			Set("tls", true).
			Set("servername", n.Host).
			Set("network", "ws").
			Set("ws-opts", wsOpts(n, "/"))
	case models.ProtocolVless:
		proxy = proxy.
			Set("uuid", n.UUID).
			Set("tls", true).
			Set("servername", n.Host).
			Set("network", "ws").
			Set("ws-opts", wsOpts(n, defaultVlessPath))
	case models.ProtocolTrojan:
		proxy = proxy.
			Set("password", n.Password).
			Set("sni", n.Host).
			Set("skip-cert-verify", false).
			Set("network", "ws").
			Set("ws-opts", wsOpts(n, "/"))
	}
	return proxy, nil
}

func wsOpts(n *models.ProxyNode, defaultPath string) yamlout.Map {
	path := n.Path
	if path == "" {
		path = defaultPath
	}
	return yamlout.Map{}.
		Set("path", path).
		Set("headers", yamlout.Map{}.Set("Host", n.Host))
}

func clashGroups(names []string) yamlout.List {
	selectMembers := append([]string{groupAuto, groupFallback, groupLoadBalance, groupDirect}, names...)
	return yamlout.List{
		yamlout.Map{}.
			Set("name", groupSelect).
			Set("type", "select").
			Set("proxies", yamlout.Strings(selectMembers)),
		healthCheckedGroup(groupAuto, "url-test", names),
		healthCheckedGroup(groupFallback, "fallback", names),
		healthCheckedGroup(groupLoadBalance, "load-balance", names),
		yamlout.Map{}.
			Set("name", groupDirect).
			Set("type", "select").
			Set("proxies", yamlout.List{"DIRECT"}),
		yamlout.Map{}.
			Set("name", groupFinal).
			Set("type", "select").
			Set("proxies", yamlout.List{groupSelect, groupDirect}),
	}
}

// healthCheckedGroup builds a url-test style group; Clash refuses one with
// no members, so an empty group falls back to DIRECT.
func healthCheckedGroup(name, kind string, members []string) yamlout.Map {
	if len(members) == 0 {
		members = []string{"DIRECT"}
	}
	return yamlout.Map{}.
		Set("name", name).
		Set("type", kind).
		Set("proxies", yamlout.Strings(members)).
		Set("url", healthCheckURL).
		Set("interval", healthCheckInterval)
}
