package util

import "testing"

func TestHashUserKey(t *testing.T) {
	id := "google:12345"
	got := HashUserKey(id)
	if got != HashUserKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if HashUserKey("google:12346") == got {
		t.Fatalf("different owners must not share an upload prefix")
	}
}

func TestFingerprintKnownVector(t *testing.T) {
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Fingerprint(nil); got != want {
		t.Fatalf("expected sha256 of empty input, got %s", got)
	}
	if Fingerprint([]byte("%PDF-1.4")) == want {
		t.Fatalf("expected distinct fingerprint for non-empty input")
	}
}
