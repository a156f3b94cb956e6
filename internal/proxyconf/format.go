// Package proxyconf turns proxy node lists into client subscription documents.
// Everything here is a pure function of its input.
package proxyconf

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

// Format is a client configuration flavour
type Format string

const (
	FormatClash        Format = "clash"
	FormatV2Ray        Format = "v2ray"
	FormatShadowrocket Format = "shadowrocket"
	FormatQuantumult   Format = "quantumult"
	FormatSurge        Format = "surge"
	FormatUniversal    Format = "universal"
)

// TokenFormats are the formats served behind a subscription token, in link order
var TokenFormats = []Format{FormatClash, FormatV2Ray, FormatShadowrocket, FormatQuantumult, FormatSurge}

var ErrUnsupportedFormat = errors.New("unsupported format")

const (
	contentTypeYAML = "application/yaml; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
)

// ParseFormat matches s case-insensitively against the token formats
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range TokenFormats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Input is everything a synthesizer may look at
type Input struct {
	Nodes       []models.ProxyNode
	PlanName    string
	ExpiresAt   time.Time
	GeneratedAt time.Time
}

// Document is a rendered subscription payload
type Document struct {
	Body        []byte
	ContentType string
	Extension   string
}

// Filename is the attachment name offered to the client
func (d Document) Filename(planName string, f Format) string {
	return fmt.Sprintf("%s-%s.%s", planName, f, d.Extension)
}

// Render dispatches to the synthesizer for f
func Render(f Format, in Input) (Document, error) {
	switch f {
	case FormatClash:
		return Document{Body: []byte(Clash(in)), ContentType: contentTypeYAML, Extension: "yaml"}, nil
	case FormatV2Ray:
		return textDocument(V2Ray(in.Nodes)), nil
	case FormatShadowrocket:
		return textDocument(Shadowrocket(in)), nil
	case FormatQuantumult:
		return textDocument(Quantumult(in)), nil
	case FormatSurge:
		return textDocument(Surge(in)), nil
	case FormatUniversal:
		return textDocument(Universal(in.Nodes)), nil
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

func textDocument(body string) Document {
	return Document{Body: []byte(body), ContentType: contentTypeText, Extension: "txt"}
}

// 客户端显示用时间格式
const displayTimeLayout = "2006-01-02 15:04:05"

func displayTime(t time.Time) string {
	return t.UTC().Format(displayTimeLayout) + " UTC"
}

// singleLine flattens s for use inside one line of a text profile: line
// breaks and other control or invisible separator runes become spaces.
func singleLine(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u0085', '\u2028', '\u2029', '\ufeff', unicode.ReplacementChar:
			return ' '
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}
