package gateway

import (
	"bytes"
	"net/http"
	"net/netip"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/mr-tron/base58"
	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/net/html"
)

// FailedResolveMarker starts the body of the 200 page a misconfigured
// gateway returns when it cannot resolve the DNSLink of the site.
const FailedResolveMarker = "failed to resolve /ipns/"

// IsReachable reports whether resp proves the website is reachable: the
// status is 200 and the first <pre> block, if any, does not start with
// FailedResolveMarker.
func IsReachable(resp *Response) bool {
	if resp == nil || resp.StatusCode != http.StatusOK {
		return false
	}
	text, found := firstPreText(resp.Body)
	if !found {
		return true
	}
	return !strings.HasPrefix(text, FailedResolveMarker)
}

// firstPreText returns the text content of the first <pre> element in
// document order.
func firstPreText(body []byte) (string, bool) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	pre := findElement(doc, "pre")
	if pre == nil {
		return "", false
	}
	var sb strings.Builder
	collectText(pre, &sb)
	return sb.String(), true
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// SelectAddress returns the IPv4 address of the first line that is an
// /ip4/<addr>/tcp/... multiaddr with a routable address. Loopback and
// unspecified addresses are skipped and scanning continues.
func SelectAddress(lines []string) (string, bool) {
	for _, line := range lines {
		if ip, ok := usableIPv4TCP(strings.TrimSpace(line)); ok {
			return ip, true
		}
	}
	return "", false
}

func usableIPv4TCP(line string) (string, bool) {
	if line == "" {
		return "", false
	}
	addr, err := ma.NewMultiaddr(line)
	if err != nil {
		return "", false
	}
	protos := addr.Protocols()
	if len(protos) < 2 || protos[0].Code != ma.P_IP4 || protos[1].Code != ma.P_TCP {
		return "", false
	}
	value, err := addr.ValueForProtocol(ma.P_IP4)
	if err != nil {
		return "", false
	}
	ip, err := netip.ParseAddr(value)
	if err != nil || !ip.Is4() {
		return "", false
	}
	if ip.IsLoopback() || ip.IsUnspecified() {
		return "", false
	}
	return ip.String(), true
}

// ParseProviderLines extracts provider IDs from findprovs output. Blank
// lines are dropped, the last path segment of each line is kept, and
// segments that are neither base58 nor CID-encoded peer IDs are discarded.
// Duplicates are preserved; the tally de-duplicates per item.
func ParseProviderLines(output string) []string {
	ids := make([]string, 0)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id := line[strings.LastIndex(line, "/")+1:]
		if !IsPeerID(id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// IsPeerID reports whether s looks like a peer ID in either the legacy
// base58 form (Qm..., 12D3Koo...) or the CIDv1 form (bafz..., k51...).
func IsPeerID(s string) bool {
	if s == "" {
		return false
	}
	if decoded, err := base58.Decode(s); err == nil && len(decoded) > 0 {
		return true
	}
	_, err := cid.Decode(s)
	return err == nil
}
