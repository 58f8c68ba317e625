package keygen

import (
	"regexp"
	"strings"
	"testing"
)

var keyPattern = regexp.MustCompile(`^zf_[0-9a-f]{64}$`)

func TestGenerateFormat(t *testing.T) {
	key, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if !keyPattern.MatchString(key.Plaintext) {
		t.Errorf("Plaintext = %q, want zf_ followed by 64 hex chars", key.Plaintext)
	}
	if len(key.Hash) != 64 {
		t.Errorf("Hash length = %d, want 64 hex chars", len(key.Hash))
	}
}

func TestGenerateHashMatchesPlaintext(t *testing.T) {
	key, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if Hash(key.Plaintext) != key.Hash {
		t.Error("Hash(Plaintext) != Key.Hash")
	}
}

func TestHashDeterministic(t *testing.T) {
	const known = "zf_0000000000000000000000000000000000000000000000000000000000000000"

	first := Hash(known)
	second := Hash(known)
	if first != second {
		t.Errorf("Hash not deterministic: %q vs %q", first, second)
	}
	if strings.ToLower(first) != first {
		t.Errorf("Hash = %q, want lowercase hex", first)
	}
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		key, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if _, dup := seen[key.Plaintext]; dup {
			t.Fatalf("duplicate key generated after %d iterations", i)
		}
		seen[key.Plaintext] = struct{}{}
	}
}

func TestPreview(t *testing.T) {
	key := "zf_1a2b3c4d5e6f7a8b9c0d1a2b3c4d5e6f7a8b9c0d1a2b3c4d5e6f7a8b9c0d1a2b"

	got := Preview(key)
	if got != "zf_1a2b3c4d..." {
		t.Errorf("Preview() = %q, want zf_1a2b3c4d...", got)
	}
	if strings.Contains(got, key[12:20]) && len(got) > 14 {
		t.Errorf("Preview() = %q, leaks too much of the key", got)
	}

	if Preview("zf_short") != "zf_short" {
		t.Errorf("Preview(short) = %q, want input unchanged", Preview("zf_short"))
	}
}
