// Package transport carries byte streams between server nodes and
// ambassadors: URL addressing, stream dial/listen with the initial
// option handshake, optional zlib compression, message framing via the
// wire codec, and a websocket variant for browser-hosted federates.
package transport

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Protocol names accepted in connect URLs.
const (
	ProtocolRTI       = "rti"     // TCP
	ProtocolRTIC      = "rtic"    // TCP with compression negotiation
	ProtocolPipe      = "pipe"    // unix domain socket
	ProtocolFile      = "file"    // alias of pipe
	ProtocolThread    = "thread"  // in-process shared server
	ProtocolRTINode   = "rtinode" // configurable node
	ProtocolWebSocket = "rti+ws"  // websocket framing
)

// DefaultPort is the service used when an rti:// or rtic:// URL names
// none.
const DefaultPort = "14321"

// URL is a parsed connect address. String and Parse are mutual
// inverses for every URL built from parsed input.
type URL struct {
	Protocol string
	Host     string
	Service  string
	Path     string
	Queries  map[string][]string
}

// Parse splits raw into a URL. The empty protocol defaults to rti.
func Parse(raw string) (URL, error) {
	if raw == "" {
		return URL{Protocol: ProtocolRTI}, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return URL{}, fmt.Errorf("parse url %q: %w", raw, err)
	}

	out := URL{
		Protocol: parsed.Scheme,
		Host:     parsed.Hostname(),
		Service:  parsed.Port(),
		Path:     parsed.Path,
	}
	if out.Protocol == "" {
		out.Protocol = ProtocolRTI
	}
	if q := parsed.Query(); len(q) > 0 {
		out.Queries = map[string][]string(q)
	}

	switch out.Protocol {
	case ProtocolRTI, ProtocolRTIC, ProtocolRTINode, ProtocolWebSocket,
		ProtocolPipe, ProtocolFile, ProtocolThread:
	default:
		return URL{}, fmt.Errorf("unknown protocol %q in url %q", out.Protocol, raw)
	}
	return out, nil
}

// String renders the URL back into its textual form.
func (u URL) String() string {
	var b strings.Builder
	b.WriteString(u.Protocol)
	b.WriteString("://")
	b.WriteString(u.Host)
	if u.Service != "" {
		b.WriteString(":")
		b.WriteString(u.Service)
	}
	b.WriteString(u.Path)
	if len(u.Queries) > 0 {
		b.WriteString("?")
		keys := make([]string, 0, len(u.Queries))
		for k := range u.Queries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		first := true
		for _, k := range keys {
			for _, v := range u.Queries[k] {
				if !first {
					b.WriteString("&")
				}
				first = false
				b.WriteString(url.QueryEscape(k))
				b.WriteString("=")
				b.WriteString(url.QueryEscape(v))
			}
		}
	}
	return b.String()
}

// HostService returns the dial address, applying the default port.
func (u URL) HostService() string {
	host := u.Host
	if host == "" {
		host = "localhost"
	}
	service := u.Service
	if service == "" {
		service = DefaultPort
	}
	return host + ":" + service
}

// CompressionEnabled reports whether the protocol negotiates
// compression.
func (u URL) CompressionEnabled() bool { return u.Protocol == ProtocolRTIC }

// Query returns the first value for key.
func (u URL) Query(key string) (string, bool) {
	vs := u.Queries[key]
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}
