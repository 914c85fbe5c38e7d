package transport

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/klauspost/compress/zlib"
	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/openrti/rtinode/internal/wire"
	"github.com/openrti/rtinode/internal/wire/codec"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

// HandshakeTimeout bounds the initial option exchange; a peer that
// neither completes nor fails it within the deadline is dropped.
const HandshakeTimeout = 60 * time.Second

// maxOptionsFrame bounds the handshake option frame.
const maxOptionsFrame = 64 * 1024

// WriteOptions sends one handshake option map as a length-prefixed
// XDR frame.
func WriteOptions(w io.Writer, options handshake.Options) error {
	pairs := make([]wire.Option, 0, len(options))
	for name, values := range options {
		pairs = append(pairs, wire.Option{Name: name, Values: values})
	}

	var body bytes.Buffer
	if _, err := xdr.Marshal(&body, pairs); err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(body.Len()))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// ReadOptions receives one handshake option map.
func ReadOptions(r io.Reader) (handshake.Options, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > maxOptionsFrame {
		return nil, fmt.Errorf("options frame of %d bytes exceeds maximum", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	var pairs []wire.Option
	if _, err := xdr.Unmarshal(bytes.NewReader(body), &pairs); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	options := make(handshake.Options, len(pairs))
	for _, p := range pairs {
		options[p.Name] = p.Values
	}
	return options, nil
}

// MessageConn frames wire messages over one negotiated stream.
type MessageConn struct {
	raw   net.Conn
	r     io.Reader
	w     *bufio.Writer
	flush func() error
	codec codec.Codec
}

// newMessageConn layers the negotiated compression and the codec over
// raw.
func newMessageConn(raw net.Conn, compression string, c codec.Codec) (*MessageConn, error) {
	mc := &MessageConn{raw: raw, codec: c}
	switch compression {
	case handshake.CompressionZLib:
		// The inbound side defers the zlib header read until the first
		// payload byte is needed; building it eagerly would block on a
		// peer that has nothing to say yet.
		mc.r = &lazyZlibReader{src: bufio.NewReader(raw)}
		zw := zlib.NewWriter(raw)
		mc.w = bufio.NewWriter(zw)
		mc.flush = func() error {
			if err := mc.w.Flush(); err != nil {
				return err
			}
			return zw.Flush()
		}
	case handshake.CompressionNone, "":
		mc.r = bufio.NewReader(raw)
		mc.w = bufio.NewWriter(raw)
		mc.flush = mc.w.Flush
	default:
		return nil, fmt.Errorf("unsupported compression %q", compression)
	}
	return mc, nil
}

// lazyZlibReader defers the zlib header read until the first payload
// byte is needed, since zlib.NewReader blocks for the stream header.
type lazyZlibReader struct {
	src io.Reader
	zr  io.ReadCloser
}

func (l *lazyZlibReader) Read(p []byte) (int, error) {
	if l.zr == nil {
		zr, err := zlib.NewReader(l.src)
		if err != nil {
			return 0, err
		}
		l.zr = zr
	}
	return l.zr.Read(p)
}

// ReadMessage blocks for the next inbound message.
func (c *MessageConn) ReadMessage() (wire.Message, error) {
	return c.codec.Decode(c.r)
}

// WriteMessage sends msg and flushes it onto the wire.
func (c *MessageConn) WriteMessage(msg wire.Message) error {
	if err := c.codec.Encode(c.w, msg); err != nil {
		return err
	}
	return c.flush()
}

// Close tears the underlying stream down.
func (c *MessageConn) Close() error { return c.raw.Close() }

// RemoteAddr names the peer for logging.
func (c *MessageConn) RemoteAddr() string { return c.raw.RemoteAddr().String() }

// Dial connects to u, runs the client half of the option handshake,
// and returns the negotiated message stream along with the server's
// reply options.
func Dial(u URL, deadline time.Time) (*MessageConn, handshake.Options, error) {
	var raw net.Conn
	var err error
	switch u.Protocol {
	case ProtocolRTI, ProtocolRTIC, ProtocolRTINode:
		raw, err = net.Dial("tcp", u.HostService())
	case ProtocolPipe, ProtocolFile:
		raw, err = net.Dial("unix", u.Path)
	case ProtocolWebSocket:
		raw, err = dialWebSocket(u)
	default:
		return nil, nil, fmt.Errorf("cannot dial protocol %q", u.Protocol)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	if deadline.IsZero() {
		deadline = time.Now().Add(HandshakeTimeout)
	}
	_ = raw.SetDeadline(deadline)

	offer := handshake.ClientOffer(u.CompressionEnabled())
	if err := WriteOptions(raw, offer); err != nil {
		raw.Close()
		return nil, nil, fmt.Errorf("send handshake offer: %w", err)
	}
	reply, err := ReadOptions(raw)
	if err != nil {
		raw.Close()
		return nil, nil, fmt.Errorf("read handshake reply: %w", err)
	}
	result, err := handshake.Confirm(reply)
	if err != nil {
		raw.Close()
		return nil, nil, err
	}
	_ = raw.SetDeadline(time.Time{})

	mc, err := newMessageConn(raw, result.Compression, codec.NewXDR())
	if err != nil {
		raw.Close()
		return nil, nil, err
	}
	return mc, reply, nil
}

// AcceptStream runs the server half of the option handshake on a
// freshly accepted stream. On negotiation failure the error reply is
// written before the stream is closed, so the peer learns the reason.
func AcceptStream(raw net.Conn, cfg handshake.ServerConfig) (*MessageConn, handshake.Options, error) {
	_ = raw.SetDeadline(time.Now().Add(HandshakeTimeout))

	offer, err := ReadOptions(raw)
	if err != nil {
		raw.Close()
		return nil, nil, fmt.Errorf("read handshake offer: %w", err)
	}
	result, reply, err := handshake.Accept(offer, cfg)
	if werr := WriteOptions(raw, reply); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		raw.Close()
		return nil, nil, err
	}
	_ = raw.SetDeadline(time.Time{})

	mc, err := newMessageConn(raw, result.Compression, codec.NewXDR())
	if err != nil {
		raw.Close()
		return nil, nil, err
	}
	return mc, offer, nil
}

// Listen opens the listening socket u describes.
func Listen(u URL) (net.Listener, error) {
	switch u.Protocol {
	case ProtocolRTI, ProtocolRTIC, ProtocolRTINode, ProtocolWebSocket:
		return net.Listen("tcp", u.HostService())
	case ProtocolPipe, ProtocolFile:
		return net.Listen("unix", u.Path)
	default:
		return nil, fmt.Errorf("cannot listen on protocol %q", u.Protocol)
	}
}
