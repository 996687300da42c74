package wire

import (
	"bytes"
	"testing"
)

func TestLineReaderReadLine(t *testing.T) {
	r := NewLineReader(bytes.NewBufferString("DIR \"a\" 755 0 0 2024-01-01T00:00:00\r\nTHANK_YOU\r\n"))
	line, err := r.ReadLine()
	if err != nil {
		t.Fatal("read failed:", err)
	}
	if line != `DIR "a" 755 0 0 2024-01-01T00:00:00` {
		t.Errorf("unexpected line: %q", line)
	}
	line, err = r.ReadLine()
	if err != nil {
		t.Fatal("read failed:", err)
	}
	if line != "THANK_YOU" {
		t.Errorf("unexpected line: %q", line)
	}
}

func TestLineReaderReadBody(t *testing.T) {
	payload := []byte("hello")
	buf := bytes.NewBuffer(payload)
	r := NewLineReader(buf)
	var dst bytes.Buffer
	if err := r.ReadBody(&dst, int64(len(payload))); err != nil {
		t.Fatal("read body failed:", err)
	}
	if dst.String() != "hello" {
		t.Errorf("body = %q, want hello", dst.String())
	}
}

func TestLineReaderReadBodyShort(t *testing.T) {
	r := NewLineReader(bytes.NewBufferString("ab"))
	var dst bytes.Buffer
	if err := r.ReadBody(&dst, 5); err == nil {
		t.Error("expected error for short body")
	}
}

func TestWriteLineAppendsCRLF(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLine(&buf, "OK"); err != nil {
		t.Fatal("write failed:", err)
	}
	if buf.String() != "OK\r\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestWriteBodyExactSize(t *testing.T) {
	var buf bytes.Buffer
	src := bytes.NewBufferString("hello")
	if err := WriteBody(&buf, src, 5); err != nil {
		t.Fatal("write body failed:", err)
	}
	if buf.String() != "hello" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
