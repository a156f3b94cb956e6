package proxyconf

import "github.com/wenwu/saas-platform/sublink-service/internal/models"

// Universal renders every node as its share link, newline joined and base64 encoded as one blob
func Universal(nodes []models.ProxyNode) string {
	lines := make([]string, 0, len(nodes))
	for i := range nodes {
		link, err := NodeURI(&nodes[i])
		if err != nil {
			lines = append(lines, skipLine(&nodes[i], err))
			continue
		}
		lines = append(lines, link)
	}
	return encodeBase64Lines(lines)
}
