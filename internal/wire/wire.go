// Package wire implements the fixed binary frame format for hypergraph
// synchronization. Every entity travels as a 44-byte little-endian header
// followed by a variable payload: the UTF-8 atom name, or the encoded
// outgoing-handle list for links. The transport is a byte stream, so framing
// is explicit: a reader consumes exactly the header, then exactly PayloadLen
// bytes, and nothing is interpreted before the magic and version check out.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
	"unicode/utf8"

	"github.com/Harshitk-cp/cogsync/internal/domain"
)

const (
	// Magic spells "ATOM". Frames not starting with it are discarded whole.
	Magic uint32 = 0x41544F4D

	// Version of the frame layout. Interoperating peers must match exactly.
	Version uint32 = 1

	// HeaderSize is the fixed encoded header length in bytes.
	HeaderSize = 44

	// MaxPayload caps the declared payload length. Anything larger is a
	// protocol error, not an allocation request.
	MaxPayload = 64 * 1024
)

// MsgType discriminates frame contents.
type MsgType uint8

const (
	MsgSyncRequest MsgType = iota + 1
	MsgSyncAtom
	MsgSyncLink
	MsgSyncComplete
	MsgSyncAck
	MsgConflictNotify
)

func (t MsgType) String() string {
	switch t {
	case MsgSyncRequest:
		return "sync_request"
	case MsgSyncAtom:
		return "sync_atom"
	case MsgSyncLink:
		return "sync_link"
	case MsgSyncComplete:
		return "sync_complete"
	case MsgSyncAck:
		return "sync_ack"
	case MsgConflictNotify:
		return "conflict_notify"
	}
	return "unknown"
}

var (
	// ErrBadMagic means the frame does not start with the protocol magic.
	ErrBadMagic = errors.New("wire: bad magic")
	// ErrBadVersion means the peer speaks a different protocol version.
	ErrBadVersion = errors.New("wire: protocol version mismatch")
	// ErrPayloadTooLarge means the declared payload exceeds MaxPayload.
	ErrPayloadTooLarge = errors.New("wire: payload too large")
	// ErrBadPayload means the payload does not match the message type.
	ErrBadPayload = errors.New("wire: malformed payload")
)

// Header is the fixed per-frame preamble. Field order and widths are
// wire-stable; see Encode for the exact byte layout.
type Header struct {
	Magic      uint32
	Version    uint32
	Type       MsgType
	Handle     uint64
	Kind       uint8
	PayloadLen uint32
	TV         domain.TruthValue
	AV         domain.AttentionValue
	Timestamp  int64
}

// Encode appends the header's wire form to buf and returns the result.
func (h Header) Encode(buf []byte) []byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	b[8] = byte(h.Type)
	binary.LittleEndian.PutUint64(b[9:17], h.Handle)
	b[17] = h.Kind
	binary.LittleEndian.PutUint32(b[18:22], h.PayloadLen)
	binary.LittleEndian.PutUint32(b[22:26], math.Float32bits(h.TV.Strength))
	binary.LittleEndian.PutUint32(b[26:30], math.Float32bits(h.TV.Confidence))
	binary.LittleEndian.PutUint16(b[30:32], uint16(h.AV.STI))
	binary.LittleEndian.PutUint16(b[32:34], uint16(h.AV.LTI))
	binary.LittleEndian.PutUint16(b[34:36], h.AV.VLTI)
	binary.LittleEndian.PutUint64(b[36:44], uint64(h.Timestamp))
	return append(buf, b[:]...)
}

// DecodeHeader parses and validates a header. Magic and version are checked
// before anything else is trusted, PayloadLen last.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header truncated at %d bytes", ErrBadPayload, len(b))
	}

	var h Header
	h.Magic = binary.LittleEndian.Uint32(b[0:4])
	if h.Magic != Magic {
		return Header{}, ErrBadMagic
	}
	h.Version = binary.LittleEndian.Uint32(b[4:8])
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: got %d, want %d", ErrBadVersion, h.Version, Version)
	}
	h.Type = MsgType(b[8])
	h.Handle = binary.LittleEndian.Uint64(b[9:17])
	h.Kind = b[17]
	h.PayloadLen = binary.LittleEndian.Uint32(b[18:22])
	if h.PayloadLen > MaxPayload {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, h.PayloadLen)
	}
	h.TV.Strength = math.Float32frombits(binary.LittleEndian.Uint32(b[22:26]))
	h.TV.Confidence = math.Float32frombits(binary.LittleEndian.Uint32(b[26:30]))
	h.AV.STI = int16(binary.LittleEndian.Uint16(b[30:32]))
	h.AV.LTI = int16(binary.LittleEndian.Uint16(b[32:34]))
	h.AV.VLTI = binary.LittleEndian.Uint16(b[34:36])
	h.Timestamp = int64(binary.LittleEndian.Uint64(b[36:44]))
	return h, nil
}

// EncodeAtom frames an atom for transmission.
func EncodeAtom(a domain.Atom, msgType MsgType) []byte {
	name := []byte(a.Name)
	h := Header{
		Magic:      Magic,
		Version:    Version,
		Type:       msgType,
		Handle:     a.Handle,
		Kind:       uint8(a.Kind),
		PayloadLen: uint32(len(name)),
		TV:         a.TV,
		AV:         a.AV,
		Timestamp:  a.LastAccessedAt.Unix(),
	}
	return append(h.Encode(make([]byte, 0, HeaderSize+len(name))), name...)
}

// EncodeLink frames a link; the payload is the outgoing handle list,
// 8 bytes per handle.
func EncodeLink(l domain.Link) []byte {
	h := Header{
		Magic:      Magic,
		Version:    Version,
		Type:       MsgSyncLink,
		Handle:     l.Handle,
		Kind:       uint8(l.Kind),
		PayloadLen: uint32(8 * len(l.Outgoing)),
		TV:         l.TV,
		AV:         l.AV,
		Timestamp:  l.CreatedAt.Unix(),
	}
	buf := h.Encode(make([]byte, 0, HeaderSize+8*len(l.Outgoing)))
	for _, out := range l.Outgoing {
		buf = binary.LittleEndian.AppendUint64(buf, out)
	}
	return buf
}

// EncodeControl frames a payload-free control message.
func EncodeControl(msgType MsgType) []byte {
	h := Header{Magic: Magic, Version: Version, Type: msgType}
	return h.Encode(make([]byte, 0, HeaderSize))
}

// DecodeAtom rebuilds an atom from a decoded frame. The name must be valid
// UTF-8; anything else is a protocol error.
func DecodeAtom(h Header, payload []byte) (domain.Atom, error) {
	if !utf8.Valid(payload) {
		return domain.Atom{}, fmt.Errorf("%w: atom name is not UTF-8", ErrBadPayload)
	}
	return domain.Atom{
		Handle:         h.Handle,
		Kind:           domain.AtomKind(h.Kind),
		Name:           string(payload),
		TV:             h.TV,
		AV:             h.AV,
		LastAccessedAt: unixTime(h.Timestamp),
		CreatedAt:      unixTime(h.Timestamp),
	}, nil
}

// DecodeLink rebuilds a link from a decoded frame.
func DecodeLink(h Header, payload []byte) (domain.Link, error) {
	if len(payload)%8 != 0 || len(payload) == 0 {
		return domain.Link{}, fmt.Errorf("%w: link payload length %d", ErrBadPayload, len(payload))
	}
	outgoing := make([]uint64, len(payload)/8)
	for i := range outgoing {
		outgoing[i] = binary.LittleEndian.Uint64(payload[8*i : 8*i+8])
	}
	return domain.Link{
		Handle:    h.Handle,
		Kind:      domain.LinkKind(h.Kind),
		Outgoing:  outgoing,
		TV:        h.TV,
		AV:        h.AV,
		CreatedAt: unixTime(h.Timestamp),
	}, nil
}

func unixTime(ts int64) time.Time {
	return time.Unix(ts, 0)
}

// WriteFrame writes a complete frame, retrying on short writes until the
// whole frame is on the wire or the connection errors.
func WriteFrame(w io.Writer, frame []byte) error {
	for len(frame) > 0 {
		n, err := w.Write(frame)
		if err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}

// ReadFrame reads exactly one frame: the fixed header first, then exactly
// PayloadLen payload bytes. A partial read is an error, never a short frame.
func ReadFrame(r io.Reader) (Header, []byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Header{}, nil, err
	}
	h, err := DecodeHeader(hdr[:])
	if err != nil {
		return Header{}, nil, err
	}
	if h.PayloadLen == 0 {
		return h, nil, nil
	}
	payload := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Header{}, nil, fmt.Errorf("read payload: %w", err)
	}
	return h, payload, nil
}
