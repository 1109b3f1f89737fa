package hash_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nightfoxfilms/ingestcore/internal/hash"
)

func TestFingerprintLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(path, []byte("hello wedding film"), 0644); err != nil {
		t.Fatal(err)
	}

	fp, err := hash.Fingerprint(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(fp) != hash.FingerprintLen {
		t.Fatalf("fingerprint length = %d, want %d", len(fp), hash.FingerprintLen)
	}
	for _, c := range fp {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("fingerprint %q contains non-hex rune %q", fp, c)
		}
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	os.WriteFile(path, []byte("same bytes"), 0644)

	a, err := hash.Fingerprint(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := hash.Fingerprint(path)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s != %s", a, b)
	}
}

func TestStreamMatchesFingerprint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	content := []byte("inline hash content")
	os.WriteFile(path, content, 0644)

	want, err := hash.Fingerprint(path)
	if err != nil {
		t.Fatal(err)
	}

	var sink bytes.Buffer
	got, n, err := hash.Stream(bytes.NewReader(content), &sink)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("stream fingerprint %s != file fingerprint %s", got, want)
	}
	if n != int64(len(content)) {
		t.Fatalf("bytesRead = %d, want %d", n, len(content))
	}
	if !bytes.Equal(sink.Bytes(), content) {
		t.Fatal("sink did not receive all bytes")
	}
}

func TestDistinctContentDistinctFingerprint(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "1.bin")
	p2 := filepath.Join(dir, "2.bin")
	os.WriteFile(p1, []byte("content one"), 0644)
	os.WriteFile(p2, []byte("content two"), 0644)

	fp1, _ := hash.Fingerprint(p1)
	fp2, _ := hash.Fingerprint(p2)
	if fp1 == fp2 {
		t.Fatalf("distinct content produced the same fingerprint: %s", fp1)
	}
}
