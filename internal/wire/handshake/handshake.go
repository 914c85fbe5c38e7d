// Package handshake negotiates the initial connect options between a
// client (or child server) and a server: protocol version, message
// encoding, and optional stream compression. It operates purely on
// option maps; moving them over the stream is the transport's job.
package handshake

import (
	"fmt"
)

// EncodingVersion is the protocol version offered by clients and
// required by servers.
const EncodingVersion = "2"

// Encoding names the message encodings this build can speak. The XDR
// codec is the only one compiled in.
const EncodingXDR = "XDR"

// Compression algorithm names from the option map.
const (
	CompressionNone = "no"
	CompressionZLib = "zlib"
	// CompressionLZMA is recognized but never advertised: the
	// negotiation only offers algorithms that are built in, and LZMA
	// is not. A server that is offered it picks zlib or none instead.
	CompressionLZMA = "lzma"
)

// Option keys exchanged in the handshake option map.
const (
	KeyVersion              = "version"
	KeyEncoding             = "encoding"
	KeyCompression          = "compression"
	KeyPermitTimeRegulation = "permitTimeRegulation"
	KeyServerName           = "serverName"
	KeyServerPath           = "serverPath"
	KeyError                = "error"
)

// Options is the handshake's option map: name to value list.
type Options map[string][]string

// ClientOffer builds the option map a connecting client sends:
// its version, every encoding it can speak, and the compression
// algorithms it is willing to use.
func ClientOffer(enableCompression bool) Options {
	offer := Options{
		KeyVersion:  {EncodingVersion},
		KeyEncoding: {EncodingXDR},
	}
	if enableCompression {
		offer[KeyCompression] = []string{CompressionZLib, CompressionNone}
	} else {
		offer[KeyCompression] = []string{CompressionNone}
	}
	return offer
}

// ServerConfig is the negotiation policy of the accepting server.
type ServerConfig struct {
	ServerName            string
	ServerPath            string
	EnableZLibCompression bool
	PermitTimeRegulation  bool
}

// Result is a successful negotiation outcome.
type Result struct {
	Encoding    string
	Compression string
	// PermitTimeRegulation is false when this server's policy (or its
	// parent's) denies time regulation to the whole subtree.
	PermitTimeRegulation bool
}

// Accept inspects a client's offer and either picks one encoding and
// one compression, or fails. The reply option map mirrors the picks
// and carries the server identity; on failure the reply carries the
// error key instead, so the peer sees the reason before the transport
// drops.
func Accept(offer Options, cfg ServerConfig) (Result, Options, error) {
	reply := Options{
		KeyServerName: {cfg.ServerName},
		KeyServerPath: {cfg.ServerPath},
	}

	versions := offer[KeyVersion]
	if len(versions) != 1 || versions[0] != EncodingVersion {
		err := fmt.Errorf("unsupported protocol version %v, want %s", versions, EncodingVersion)
		reply[KeyError] = []string{err.Error()}
		return Result{}, reply, err
	}

	encoding, ok := pick(offer[KeyEncoding], []string{EncodingXDR})
	if !ok {
		err := fmt.Errorf("no common encoding in %v", offer[KeyEncoding])
		reply[KeyError] = []string{err.Error()}
		return Result{}, reply, err
	}
	reply[KeyEncoding] = []string{encoding}

	supported := []string{CompressionNone}
	if cfg.EnableZLibCompression {
		supported = []string{CompressionZLib, CompressionNone}
	}
	compression, ok := pick(offer[KeyCompression], supported)
	if !ok {
		// An absent compression offer means an old-style peer that
		// cannot compress at all.
		compression = CompressionNone
	}
	reply[KeyCompression] = []string{compression}

	if !cfg.PermitTimeRegulation {
		reply[KeyPermitTimeRegulation] = []string{"false"}
	}

	return Result{
		Encoding:             encoding,
		Compression:          compression,
		PermitTimeRegulation: cfg.PermitTimeRegulation,
	}, reply, nil
}

// Confirm validates the server's reply on the client side and returns
// the negotiated result.
func Confirm(reply Options) (Result, error) {
	if errs := reply[KeyError]; len(errs) > 0 && errs[0] != "" {
		return Result{}, fmt.Errorf("handshake rejected: %s", errs[0])
	}

	encodings := reply[KeyEncoding]
	if len(encodings) != 1 {
		return Result{}, fmt.Errorf("server reply carries %d encodings, want exactly one", len(encodings))
	}
	if encodings[0] != EncodingXDR {
		return Result{}, fmt.Errorf("cannot speak server-chosen encoding %q", encodings[0])
	}

	compression := CompressionNone
	if cs := reply[KeyCompression]; len(cs) > 0 {
		switch cs[0] {
		case CompressionZLib, CompressionNone:
			compression = cs[0]
		default:
			return Result{}, fmt.Errorf("cannot do server-chosen compression %q", cs[0])
		}
	}

	permit := true
	if vs := reply[KeyPermitTimeRegulation]; len(vs) > 0 && vs[0] == "false" {
		permit = false
	}

	return Result{
		Encoding:             encodings[0],
		Compression:          compression,
		PermitTimeRegulation: permit,
	}, nil
}

// pick returns the first offered value that the server also supports,
// preserving the client's preference order.
func pick(offered, supported []string) (string, bool) {
	for _, o := range offered {
		for _, s := range supported {
			if o == s {
				return o, true
			}
		}
	}
	return "", false
}
