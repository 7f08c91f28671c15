package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/cogsync/internal/domain"
)

func TestHeaderLayout(t *testing.T) {
	h := Header{
		Magic:      Magic,
		Version:    Version,
		Type:       MsgSyncAtom,
		Handle:     0x0102030405060708,
		Kind:       uint8(domain.AtomDaemon),
		PayloadLen: 5,
		TV:         domain.TruthValue{Strength: 0.5, Confidence: 0.25},
		AV:         domain.AttentionValue{STI: -7, LTI: 9, VLTI: 3},
		Timestamp:  1700000000,
	}

	b := h.Encode(nil)
	if len(b) != HeaderSize {
		t.Fatalf("encoded header = %d bytes, want %d", len(b), HeaderSize)
	}

	// Spot-check the fixed offsets.
	if got := binary.LittleEndian.Uint32(b[0:4]); got != Magic {
		t.Errorf("magic = %#x, want %#x", got, Magic)
	}
	if b[8] != byte(MsgSyncAtom) {
		t.Errorf("type byte = %d, want %d", b[8], MsgSyncAtom)
	}
	if got := binary.LittleEndian.Uint64(b[9:17]); got != h.Handle {
		t.Errorf("handle = %#x, want %#x", got, h.Handle)
	}
	if b[17] != uint8(domain.AtomDaemon) {
		t.Errorf("kind byte = %d, want %d", b[17], domain.AtomDaemon)
	}
	if got := binary.LittleEndian.Uint32(b[18:22]); got != 5 {
		t.Errorf("payload length = %d, want 5", got)
	}
	if got := int16(binary.LittleEndian.Uint16(b[30:32])); got != -7 {
		t.Errorf("STI = %d, want -7", got)
	}
	if got := int64(binary.LittleEndian.Uint64(b[36:44])); got != 1700000000 {
		t.Errorf("timestamp = %d, want 1700000000", got)
	}

	decoded, err := DecodeHeader(b)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if decoded != h {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, h)
	}
}

func TestDecodeHeaderRejectsBadFrames(t *testing.T) {
	good := Header{Magic: Magic, Version: Version, Type: MsgSyncComplete}.Encode(nil)

	bad := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(bad[0:4], 0xDEADBEEF)
	if _, err := DecodeHeader(bad); !errors.Is(err, ErrBadMagic) {
		t.Errorf("bad magic: err = %v, want ErrBadMagic", err)
	}

	bad = append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(bad[4:8], Version+1)
	if _, err := DecodeHeader(bad); !errors.Is(err, ErrBadVersion) {
		t.Errorf("bad version: err = %v, want ErrBadVersion", err)
	}

	bad = append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(bad[18:22], MaxPayload+1)
	if _, err := DecodeHeader(bad); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("oversized payload: err = %v, want ErrPayloadTooLarge", err)
	}

	if _, err := DecodeHeader(good[:HeaderSize-1]); !errors.Is(err, ErrBadPayload) {
		t.Errorf("truncated header: err = %v, want ErrBadPayload", err)
	}
}

func TestAtomRoundTrip(t *testing.T) {
	atom := domain.Atom{
		Handle:         17,
		Kind:           domain.AtomSyncPath,
		Name:           "/var/data/photos",
		TV:             domain.TruthValue{Strength: 0.75, Confidence: 0.5},
		AV:             domain.AttentionValue{STI: 42, LTI: -3, VLTI: 1},
		LastAccessedAt: time.Unix(1700000000, 0),
	}

	frame := EncodeAtom(atom, MsgSyncAtom)
	h, payload, err := ReadFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if h.Type != MsgSyncAtom {
		t.Errorf("type = %v, want sync_atom", h.Type)
	}

	got, err := DecodeAtom(h, payload)
	if err != nil {
		t.Fatalf("DecodeAtom: %v", err)
	}
	if got.Handle != atom.Handle || got.Kind != atom.Kind || got.Name != atom.Name {
		t.Errorf("identity mismatch: got %d/%v/%q", got.Handle, got.Kind, got.Name)
	}
	if got.TV != atom.TV || got.AV != atom.AV {
		t.Errorf("values mismatch: got %+v %+v", got.TV, got.AV)
	}
	if !got.LastAccessedAt.Equal(atom.LastAccessedAt) {
		t.Errorf("timestamp = %v, want %v", got.LastAccessedAt, atom.LastAccessedAt)
	}
}

func TestAtomRejectsInvalidName(t *testing.T) {
	frame := EncodeAtom(domain.Atom{Handle: 1, Name: "x"}, MsgSyncAtom)
	h, _, err := ReadFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if _, err := DecodeAtom(h, []byte{0xff, 0xfe}); !errors.Is(err, ErrBadPayload) {
		t.Errorf("invalid UTF-8 name: err = %v, want ErrBadPayload", err)
	}
}

func TestLinkRoundTrip(t *testing.T) {
	link := domain.Link{
		Handle:    99,
		Kind:      domain.LinkSyncTopology,
		Outgoing:  []uint64{3, 17, 256},
		TV:        domain.TruthValue{Strength: 1, Confidence: 0.9},
		CreatedAt: time.Unix(1700000100, 0),
	}

	frame := EncodeLink(link)
	h, payload, err := ReadFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if h.PayloadLen != 24 {
		t.Errorf("payload length = %d, want 24 for three handles", h.PayloadLen)
	}

	got, err := DecodeLink(h, payload)
	if err != nil {
		t.Fatalf("DecodeLink: %v", err)
	}
	if got.Handle != link.Handle || got.Kind != link.Kind {
		t.Errorf("identity mismatch: got %d/%v", got.Handle, got.Kind)
	}
	if len(got.Outgoing) != 3 || got.Outgoing[0] != 3 || got.Outgoing[1] != 17 || got.Outgoing[2] != 256 {
		t.Errorf("outgoing = %v, want [3 17 256]", got.Outgoing)
	}
}

func TestDecodeLinkRejectsRaggedPayload(t *testing.T) {
	h := Header{Magic: Magic, Version: Version, Type: MsgSyncLink}
	if _, err := DecodeLink(h, make([]byte, 7)); !errors.Is(err, ErrBadPayload) {
		t.Errorf("ragged payload: err = %v, want ErrBadPayload", err)
	}
	if _, err := DecodeLink(h, nil); !errors.Is(err, ErrBadPayload) {
		t.Errorf("empty payload: err = %v, want ErrBadPayload", err)
	}
}

func TestControlFrameHasNoPayload(t *testing.T) {
	frame := EncodeControl(MsgSyncAck)
	if len(frame) != HeaderSize {
		t.Fatalf("control frame = %d bytes, want header only", len(frame))
	}
	h, payload, err := ReadFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if h.Type != MsgSyncAck || payload != nil {
		t.Errorf("got type %v with %d payload bytes", h.Type, len(payload))
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	frame := EncodeAtom(domain.Atom{Handle: 1, Name: "abcdef"}, MsgSyncAtom)
	if _, _, err := ReadFrame(bytes.NewReader(frame[:len(frame)-2])); err == nil {
		t.Error("truncated payload must not decode")
	}
}

// shortWriter writes one byte at a time to exercise the short-write loop.
type shortWriter struct {
	buf bytes.Buffer
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.buf.WriteByte(p[0])
	return 1, nil
}

func TestWriteFrameHandlesShortWrites(t *testing.T) {
	frame := EncodeAtom(domain.Atom{Handle: 5, Name: "short"}, MsgSyncAtom)

	var w shortWriter
	if err := WriteFrame(&w, frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if !bytes.Equal(w.buf.Bytes(), frame) {
		t.Error("frame reassembled from short writes differs from original")
	}
}
