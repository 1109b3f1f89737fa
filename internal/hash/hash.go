// Package hash computes the content fingerprint used as the primary key
// for every object in the archive (spec.md §3, §4.2).
//
// The fingerprint is the leading 8 bytes (16 lowercase hex characters) of
// a BLAKE3-256 digest. Truncation to 64 bits is an accepted domain
// tradeoff: collisions below 2^64 are acceptable for this system, per the
// data-model invariants.
package hash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"lukechampine.com/blake3"
)

// Algorithm identifies the hash primitive and truncation for the archive's
// manifest schema (spec.md §6), so a future migration to a different
// primitive is detectable by readers.
const Algorithm = "blake3-256/64"

// FingerprintLen is the number of hex characters in a rendered fingerprint.
const FingerprintLen = 16

// truncatedBytes is the number of leading digest bytes kept (64 bits).
const truncatedBytes = FingerprintLen / 2

// Fingerprint hashes the file at path and returns its 16-hex-character
// fingerprint. The whole file is streamed through the hasher; callers on
// a local storage profile are expected to call this once per file before
// copy (pre-hashed mode, spec.md §4.4).
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash: open %s: %w", path, err)
	}
	defer f.Close()

	fp, _, err := Stream(f, io.Discard)
	if err != nil {
		return "", fmt.Errorf("hash: %s: %w", path, err)
	}
	return fp, nil
}

// Stream reads r to completion, writing every byte read to sink (which may
// be io.Discard), and returns the fingerprint of the bytes read plus the
// byte count. This is the form the copy engine uses in inline-hash mode
// (spec.md §4.4) so a network source is read exactly once: sink is the
// destination file's writer, and the fingerprint falls out as a
// by-product of the copy.
func Stream(r io.Reader, sink io.Writer) (fingerprint string, bytesRead int64, err error) {
	h := blake3.New(32, nil)
	n, err := io.Copy(io.MultiWriter(h, sink), r)
	if err != nil {
		return "", n, err
	}
	digest := h.Sum(nil)
	return hex.EncodeToString(digest[:truncatedBytes]), n, nil
}

// Truncate renders the fingerprint for an already-computed full digest.
// Exposed so other components (e.g. the validator, which may receive a
// digest from a provider that hashes for an unrelated reason) don't need
// to depend on the hasher's internals to apply the same truncation rule.
func Truncate(digest []byte) string {
	if len(digest) < truncatedBytes {
		return hex.EncodeToString(digest)
	}
	return hex.EncodeToString(digest[:truncatedBytes])
}
