package yamlout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMarshal_NestedLayout(t *testing.T) {
	doc := Map{}.
		Set("port", 7890).
		Set("allow-lan", false).
		Set("proxies", List{
			Map{}.Set("name", "a").Set("port", 443).Set("headers", Map{}.Set("Host", "x.example.com")),
		}).
		Set("rules", Strings([]string{"GEOIP,CN,DIRECT", "MATCH,Proxy"}))

	want := `port: 7890
allow-lan: false
proxies:
  - name: a
    port: 443
    headers:
      Host: x.example.com
rules:
  - GEOIP,CN,DIRECT
  - MATCH,Proxy
`
	assert.Equal(t, want, Marshal(doc))
}

func TestMarshal_EmptyCollections(t *testing.T) {
	out := Marshal(Map{}.Set("proxies", List{}).Set("meta", Map{}))
	assert.Equal(t, "proxies: []\nmeta: {}\n", out)
}

func TestMarshal_NestedLists(t *testing.T) {
	out := Marshal(Map{}.Set("matrix", List{List{1, 2}, List{}}))
	assert.Equal(t, "matrix:\n  -\n    - 1\n    - 2\n  - []\n", out)

	var parsed map[string][][]int
	require.NoError(t, yaml.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, [][]int{{1, 2}, {}}, parsed["matrix"])
}

func TestScalar_Quoting(t *testing.T) {
	cases := map[string]string{
		"plain":            "plain",
		"🇯🇵 东京-01":         "🇯🇵 东京-01",
		"":                 `""`,
		"true":             `"true"`,
		"No":               `"No"`,
		"443":              `"443"`,
		"1.5":              `"1.5"`,
		"127.0.0.1:9090":   `"127.0.0.1:9090"`,
		"a: b":             `"a: b"`,
		"x #comment":       `"x #comment"`,
		"- dash":           `"- dash"`,
		"*star":            `"*star"`,
		" padded":          `" padded"`,
		"http://host/path": "http://host/path",
		"MATCH,🛡️ 漏网之鱼":    "MATCH,🛡️ 漏网之鱼",
	}
	for in, want := range cases {
		assert.Equal(t, want, Scalar(in), "input %q", in)
	}
	assert.Equal(t, "null", Scalar(nil))
	assert.Equal(t, "true", Scalar(true))
	assert.Equal(t, "300", Scalar(int64(300)))
}

func TestMarshal_RoundTripsThroughYAML(t *testing.T) {
	doc := Map{}.
		Set("name", "🇯🇵 东京-01").
		Set("tricky", List{"true", "", "8080", "a: b", "#tag", "x"}).
		Set("nested", Map{}.Set("inner", Map{}.Set("deep", "value")))

	var parsed map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(Marshal(doc)), &parsed))

	assert.Equal(t, "🇯🇵 东京-01", parsed["name"])
	assert.Equal(t, []interface{}{"true", "", "8080", "a: b", "#tag", "x"}, parsed["tricky"])
	assert.Equal(t, map[string]interface{}{"inner": map[string]interface{}{"deep": "value"}}, parsed["nested"])
}

func TestScalar_QuotesControlAndLineBreakRunes(t *testing.T) {
	cases := map[string]string{
		"nul\x00byte":       `"nul\x00byte"`,
		"del\x7f":           `"del\x7f"`,
		"Tokyo\u0085East":   `"Tokyo\u0085East"`,
		"line\u2028sep":     `"line\u2028sep"`,
		"para\u2029sep":     `"para\u2029sep"`,
		"\ufeffbom":         `"\ufeffbom"`,
		"two\nlines":        `"two\nlines"`,
		"tab\there":         `"tab\there"`,
		"esc\x1b[31mred":    `"esc\x1b[31mred"`,
		"ideographic\u3000": `"ideographic\u3000"`,
	}
	for in, want := range cases {
		assert.Equal(t, want, Scalar(in), "input %q", in)
	}
	assert.True(t, needsQuote("bad\xffutf8"))
}

func TestMarshal_ControlRunesRoundTrip(t *testing.T) {
	names := []string{"nul\x00byte", "del\x7f", "Tokyo\u0085East", "line\u2028sep", "para\u2029sep", "\ufeffbom", "Pro\nmode: global"}
	items := make(List, len(names))
	for i, n := range names {
		items[i] = Map{}.Set("name", n).Set("port", 443)
	}
	out := Marshal(Map{}.Set("mode", "rule").Set("proxies", items))

	var parsed struct {
		Mode    string `yaml:"mode"`
		Proxies []struct {
			Name string `yaml:"name"`
			Port int    `yaml:"port"`
		} `yaml:"proxies"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &parsed), out)
	assert.Equal(t, "rule", parsed.Mode)
	require.Len(t, parsed.Proxies, len(names))
	for i, n := range names {
		assert.Equal(t, n, parsed.Proxies[i].Name)
		assert.Equal(t, 443, parsed.Proxies[i].Port)
	}
}
