package binary

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReaderReadByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	r := FromBytes(data)

	for i, want := range data {
		if r.Position() != i {
			t.Errorf("position before read %d: got %d, want %d", i, r.Position(), i)
		}
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte %d: %v", i, err)
		}
		if b != want {
			t.Errorf("ReadByte %d: got 0x%02x, want 0x%02x", i, b, want)
		}
	}

	_, err := r.ReadByte()
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReaderReadBytesPastEnd(t *testing.T) {
	r := FromBytes([]byte{0x01, 0x02})
	if _, err := r.ReadBytes(10); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected unexpected EOF, got %v", err)
	}
	if r.Position() != 0 {
		t.Errorf("position moved to %d on a rejected read", r.Position())
	}
}

func TestReaderReadU32(t *testing.T) {
	tests := []struct {
		encoded []byte
		want    uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		got, err := FromBytes(tt.encoded).ReadU32()
		if err != nil {
			t.Errorf("ReadU32(%v): %v", tt.encoded, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadU32(%v): got %d, want %d", tt.encoded, got, tt.want)
		}
	}
}

func TestReaderReadU32Overflow(t *testing.T) {
	r := FromBytes([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	if _, err := r.ReadU32(); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
}

func TestWriterReaderFixedWidth(t *testing.T) {
	w := NewWriter()
	w.WriteU16LE(0xBEEF)
	w.WriteU32LE(0xDEADBEEF)
	w.WriteU64LE(0x0102030405060708)
	w.WriteName("routine")

	if !bytes.Equal(w.Bytes()[:2], []byte{0xEF, 0xBE}) {
		t.Errorf("u16 not little-endian: % x", w.Bytes()[:2])
	}

	r := FromBytes(w.Bytes())
	u16, err := r.ReadU16LE()
	if err != nil || u16 != 0xBEEF {
		t.Errorf("ReadU16LE = %#x, %v", u16, err)
	}
	u32, err := r.ReadU32LE()
	if err != nil || u32 != 0xDEADBEEF {
		t.Errorf("ReadU32LE = %#x, %v", u32, err)
	}
	u64, err := r.ReadU64LE()
	if err != nil || u64 != 0x0102030405060708 {
		t.Errorf("ReadU64LE = %#x, %v", u64, err)
	}
	name, err := r.ReadName()
	if err != nil || name != "routine" {
		t.Errorf("ReadName = %q, %v", name, err)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining = %d", r.Remaining())
	}
}

func TestReaderInvalidName(t *testing.T) {
	r := FromBytes([]byte{0x02, 0xff, 0xfe})
	if _, err := r.ReadName(); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}

func TestWrapError(t *testing.T) {
	r := FromBytes([]byte{0x01})
	_, _ = r.ReadByte()
	err := r.WrapError("code", io.EOF)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %T", err)
	}
	if pe.Position != 1 || pe.Section != "code" {
		t.Errorf("ParseError = %+v", pe)
	}
	if !errors.Is(err, io.EOF) {
		t.Error("ParseError must unwrap to the cause")
	}
}
