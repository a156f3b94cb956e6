package proxyconf

import "github.com/wenwu/saas-platform/sublink-service/internal/models"

// V2Ray renders the base64 link list read by V2RayN/V2RayNG. Only vmess and
// vless are listed; other protocols leave a comment line in the payload.
func V2Ray(nodes []models.ProxyNode) string {
	lines := make([]string, 0, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		var (
			link string
			err  error
		)
		switch n.NormalizedProtocol() {
		case models.ProtocolVmess:
			link, err = VmessURI(n)
		case models.ProtocolVless:
			link, err = VlessURI(n)
		default:
			lines = append(lines, unsupportedLine(n))
			continue
		}
		if err != nil {
			lines = append(lines, skipLine(n, err))
			continue
		}
		lines = append(lines, link)
	}
	return encodeBase64Lines(lines)
}
