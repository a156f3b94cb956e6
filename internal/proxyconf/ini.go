package proxyconf

import (
	"strings"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

// proxyLineFunc renders one node for an INI-style client. ok=false means the
// client has no syntax for the node's protocol.
type proxyLineFunc func(n *models.ProxyNode) (line string, ok bool)

// proxySection renders each node with render, leaving a comment for the ones it
// cannot express, and returns the display names of the rendered nodes.
func proxySection(nodes []models.ProxyNode, render proxyLineFunc) (lines, names []string) {
	for i := range nodes {
		n := &nodes[i]
		if err := checkFields(n); err != nil {
			lines = append(lines, skipLine(n, err))
			continue
		}
		line, ok := render(n)
		if !ok {
			lines = append(lines, unsupportedLine(n))
			continue
		}
		lines = append(lines, line)
		names = append(names, lineName(n))
	}
	return lines, names
}

// lineName is the node's display name as written into an INI profile
func lineName(n *models.ProxyNode) string {
	return singleLine(n.DisplayName())
}

func pathOrRoot(n *models.ProxyNode) string {
	if n.Path == "" {
		return "/"
	}
	return n.Path
}

func methodOrAuto(n *models.ProxyNode) string {
	if n.Method == "" {
		return "auto"
	}
	return n.Method
}

func updatedLine(in Input) string {
	return "# " + displayTime(in.GeneratedAt) + " 更新"
}

// memberList joins group members; an empty group falls back to fallback
func memberList(names []string, fallback string) string {
	if len(names) == 0 {
		return fallback
	}
	return strings.Join(names, ", ")
}
