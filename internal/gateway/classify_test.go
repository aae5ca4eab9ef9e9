package gateway

import (
	"net/http"
	"slices"
	"testing"
)

const (
	peerA = "QmNnooDu7bfjPFoTZYxMNLWUQJyrVwtbZg5gBMjTezGAJN"
	peerB = "12D3KooWDpJ7As7BWAwRMfu1VU2WCqNjvq387JEYKDBj4kx6nXTN"
	peerC = "QmcZf59bWwK5XFi76CZX8cbJ4BhTzzA3gU1ZjYZcYW3dwt"
)

func TestIsReachable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *Response
		want bool
	}{
		{
			name: "nil response",
			resp: nil,
			want: false,
		},
		{
			name: "200 without pre block",
			resp: &Response{StatusCode: http.StatusOK, Body: []byte("<html><body><h1>Go</h1></body></html>")},
			want: true,
		},
		{
			name: "200 with unrelated pre block",
			resp: &Response{StatusCode: http.StatusOK, Body: []byte("<pre>func main() {}</pre>")},
			want: true,
		},
		{
			name: "false 200 from failed DNSLink resolution",
			resp: &Response{
				StatusCode: http.StatusOK,
				Body:       []byte("<html><body><pre>failed to resolve /ipns/en.wikipedia-on-ipfs.org: no link</pre></body></html>"),
			},
			want: false,
		},
		{
			name: "only the first pre block counts",
			resp: &Response{
				StatusCode: http.StatusOK,
				Body:       []byte("<pre>ok</pre><pre>failed to resolve /ipns/x</pre>"),
			},
			want: true,
		},
		{
			name: "marker split across inline elements",
			resp: &Response{
				StatusCode: http.StatusOK,
				Body:       []byte("<pre><b>failed to resolve</b> /ipns/x</pre>"),
			},
			want: false,
		},
		{
			name: "not found",
			resp: &Response{StatusCode: http.StatusNotFound, Body: []byte("<pre>404</pre>")},
			want: false,
		},
		{
			name: "redirect status is not reachable",
			resp: &Response{StatusCode: http.StatusMovedPermanently},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsReachable(tt.resp); got != tt.want {
				t.Errorf("IsReachable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		lines  []string
		wantIP string
		wantOK bool
	}{
		{
			name:   "no lines",
			lines:  nil,
			wantOK: false,
		},
		{
			name:   "loopback only",
			lines:  []string{"/ip4/127.0.0.1/tcp/4001"},
			wantOK: false,
		},
		{
			name:   "unspecified only",
			lines:  []string{"/ip4/0.0.0.0/tcp/4001"},
			wantOK: false,
		},
		{
			name: "loopback then public",
			lines: []string{
				"/ip4/127.0.0.1/tcp/4001",
				"/ip4/203.0.113.7/tcp/4001",
			},
			wantIP: "203.0.113.7",
			wantOK: true,
		},
		{
			name: "first usable line wins",
			lines: []string{
				"/ip4/198.51.100.1/tcp/4001",
				"/ip4/203.0.113.7/tcp/4001",
			},
			wantIP: "198.51.100.1",
			wantOK: true,
		},
		{
			name: "udp and ipv6 are skipped",
			lines: []string{
				"/ip4/198.51.100.1/udp/4001/quic-v1",
				"/ip6/2001:db8::1/tcp/4001",
				"/ip4/192.0.2.10/tcp/4001/p2p/" + peerA,
			},
			wantIP: "192.0.2.10",
			wantOK: true,
		},
		{
			name:   "garbage lines are skipped",
			lines:  []string{"", "not a multiaddr", "/dns4/example.com/tcp/4001"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ip, ok := SelectAddress(tt.lines)
			if ok != tt.wantOK {
				t.Fatalf("SelectAddress() ok = %v, want %v", ok, tt.wantOK)
			}
			if ip != tt.wantIP {
				t.Errorf("SelectAddress() ip = %q, want %q", ip, tt.wantIP)
			}
		})
	}
}

func TestParseProviderLines(t *testing.T) {
	t.Parallel()

	t.Run("keeps last segment and duplicates", func(t *testing.T) {
		t.Parallel()

		output := peerA + "\n\n  /p2p/" + peerB + "  \n" + peerA + "\n"
		got := ParseProviderLines(output)
		want := []string{peerA, peerB, peerA}
		if !slices.Equal(got, want) {
			t.Errorf("ParseProviderLines() = %v, want %v", got, want)
		}
	})

	t.Run("empty output yields empty slice", func(t *testing.T) {
		t.Parallel()

		got := ParseProviderLines("\n \n")
		if got == nil || len(got) != 0 {
			t.Errorf("ParseProviderLines() = %#v, want empty non-nil slice", got)
		}
	})

	t.Run("non peer id lines are dropped", func(t *testing.T) {
		t.Parallel()

		got := ParseProviderLines("Error: routing: not found\n" + peerC)
		if !slices.Equal(got, []string{peerC}) {
			t.Errorf("ParseProviderLines() = %v, want [%s]", got, peerC)
		}
	})
}

func TestIsPeerID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{in: peerA, want: true},
		{in: peerB, want: true},
		{in: "", want: false},
		{in: "0OIl", want: false},
		{in: "peer:id", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			if got := IsPeerID(tt.in); got != tt.want {
				t.Errorf("IsPeerID(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
