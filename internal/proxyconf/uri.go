package proxyconf

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

var (
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	ErrMissingField        = errors.New("missing required field")
)

const (
	defaultVlessPath = "/?ed=2560"
	// TLS ClientHello 分片参数
	vlessFragment = "1,40-60,30-50,tlshello"
)

// NodeURI builds the share link for n according to its protocol
func NodeURI(n *models.ProxyNode) (string, error) {
	switch n.NormalizedProtocol() {
	case models.ProtocolVless:
		return VlessURI(n)
	case models.ProtocolVmess:
		return VmessURI(n)
	case models.ProtocolTrojan:
		return TrojanURI(n)
	case models.ProtocolSS:
		return ShadowsocksURI(n)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProtocol, n.Protocol)
	}
}

// VlessURI: vless://{uuid}@{host}:{port}?encryption=none&security=tls&sni=..&fp=random&type=ws&host=..&path=..&allowInsecure=1&fragment=..#{name}
func VlessURI(n *models.ProxyNode) (string, error) {
	if err := checkFields(n); err != nil {
		return "", err
	}
	path := n.Path
	if path == "" {
		path = defaultVlessPath
	}
	params := []string{
		"encryption=none",
		"security=tls",
		"sni=" + encodeComponent(n.Host),
		"fp=random",
		"type=ws",
		"host=" + encodeComponent(n.Host),
		"path=" + encodeComponent(path),
		"allowInsecure=1",
		"fragment=" + encodeComponent(vlessFragment),
	}
	return fmt.Sprintf("vless://%s@%s?%s#%s",
		n.UUID, hostPort(n), strings.Join(params, "&"), encodeComponent(n.DisplayName())), nil
}

// vmessLink field order is part of the wire format some clients compare against
type vmessLink struct {
	V    string `json:"v"`
	PS   string `json:"ps"`
	Add  string `json:"add"`
	Port string `json:"port"`
	ID   string `json:"id"`
	Aid  string `json:"aid"`
	Net  string `json:"net"`
	Type string `json:"type"`
	Host string `json:"host"`
	Path string `json:"path"`
	TLS  string `json:"tls"`
}

// VmessURI: vmess://{base64(json)}; the JSON is UTF-8 encoded before base64
func VmessURI(n *models.ProxyNode) (string, error) {
	if err := checkFields(n); err != nil {
		return "", err
	}
	path := n.Path
	if path == "" {
		path = "/"
	}
	link := vmessLink{
		V:    "2",
		PS:   n.DisplayName(),
		Add:  n.Host,
		Port: strconv.Itoa(n.Port),
		ID:   n.UUID,
		Aid:  "0",
		Net:  "ws",
		Type: "none",
		Host: n.Host,
		Path: path,
		TLS:  "tls",
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(link); err != nil {
		return "", fmt.Errorf("encode vmess: %w", err)
	}
	payload := bytes.TrimRight(buf.Bytes(), "\n")
	return "vmess://" + base64.StdEncoding.EncodeToString(payload), nil
}

// TrojanURI: trojan://{password}@{host}:{port}?security=tls&sni=..&type=ws&host=..&path=..&allowInsecure=1#{name}
func TrojanURI(n *models.ProxyNode) (string, error) {
	if err := checkFields(n); err != nil {
		return "", err
	}
	path := n.Path
	if path == "" {
		path = "/"
	}
	params := []string{
		"security=tls",
		"sni=" + encodeComponent(n.Host),
		"type=ws",
		"host=" + encodeComponent(n.Host),
		"path=" + encodeComponent(path),
		"allowInsecure=1",
	}
	return fmt.Sprintf("trojan://%s@%s?%s#%s",
		encodeComponent(n.Password), hostPort(n), strings.Join(params, "&"), encodeComponent(n.DisplayName())), nil
}

// ShadowsocksURI: ss://{base64(method:password)}@{host}:{port}#{name}
func ShadowsocksURI(n *models.ProxyNode) (string, error) {
	if err := checkFields(n); err != nil {
		return "", err
	}
	userInfo := base64.StdEncoding.EncodeToString([]byte(n.Method + ":" + n.Password))
	return fmt.Sprintf("ss://%s@%s#%s", userInfo, hostPort(n), encodeComponent(n.DisplayName())), nil
}

// checkFields validates the fields the node's protocol cannot do without
func checkFields(n *models.ProxyNode) error {
	var missing []string
	if n.Host == "" {
		missing = append(missing, "host")
	}
	if n.Port <= 0 || n.Port > 65535 {
		missing = append(missing, "port")
	}
	switch n.NormalizedProtocol() {
	case models.ProtocolVless, models.ProtocolVmess:
		if n.UUID == "" {
			missing = append(missing, "uuid")
		}
	case models.ProtocolTrojan:
		if n.Password == "" {
			missing = append(missing, "password")
		}
	case models.ProtocolSS:
		if n.Method == "" {
			missing = append(missing, "method")
		}
		if n.Password == "" {
			missing = append(missing, "password")
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedProtocol, n.Protocol)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

// encodeComponent percent-encodes s for a URI component (space as %20)
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func hostPort(n *models.ProxyNode) string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// skipLine is the visible trace left for a node a format cannot express
func skipLine(n *models.ProxyNode, err error) string {
	if errors.Is(err, ErrUnsupportedProtocol) {
		return unsupportedLine(n)
	}
	return singleLine(fmt.Sprintf("# Skipped %s: %v", n.DisplayName(), err))
}

// unsupportedLine marks a protocol the target client format has no syntax for
func unsupportedLine(n *models.ProxyNode) string {
	return "# Unsupported protocol: " + singleLine(n.Protocol)
}

func encodeBase64Lines(lines []string) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(lines, "\n")))
}
