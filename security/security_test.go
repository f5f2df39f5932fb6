package security

import (
	"bytes"
	"errors"
	"testing"

	"github.com/wudi/blackout/ir/raw"
)

func reopen(t *testing.T, enc *raw.DictObj, fileID []byte) Handler {
	t.Helper()
	h, err := (&HandlerBuilder{}).WithEncryptDict(enc).WithFileID(fileID).Build()
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	return h
}

func TestStandardEncryptionRoundTrip(t *testing.T) {
	fileID := []byte("0123456789abcdef")
	for _, alg := range []Algorithm{RC4_40, RC4_128, AES_128, AES_256} {
		t.Run(alg.String(), func(t *testing.T) {
			enc, writer, err := BuildStandardEncryption(EncryptionOptions{
				UserPassword:    "user",
				OwnerPassword:   "owner",
				Permissions:     Permissions{Print: true},
				Algorithm:       alg,
				EncryptMetadata: true,
			}, fileID)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			plain := []byte("secret data")
			ct, err := writer.Encrypt(5, 0, plain, DataClassStream)
			if err != nil {
				t.Fatalf("encrypt: %v", err)
			}
			if bytes.Equal(ct, plain) {
				t.Fatalf("ciphertext equals plaintext")
			}

			for _, pwd := range []string{"user", "owner"} {
				h := reopen(t, enc, fileID)
				if err := h.Authenticate(pwd); err != nil {
					t.Fatalf("authenticate %q: %v", pwd, err)
				}
				got, err := h.Decrypt(5, 0, ct, DataClassStream)
				if err != nil {
					t.Fatalf("decrypt: %v", err)
				}
				if !bytes.Equal(got, plain) {
					t.Fatalf("password %q: got %q want %q", pwd, got, plain)
				}
				if perms := h.Permissions(); !perms.Print || perms.Modify {
					t.Fatalf("permissions = %+v", perms)
				}
			}

			if err := reopen(t, enc, fileID).Authenticate("wrong"); !errors.Is(err, ErrInvalidPassword) {
				t.Fatalf("expected ErrInvalidPassword, got %v", err)
			}
		})
	}
}

func TestEmptyUserPasswordOpensImplicitly(t *testing.T) {
	fileID := []byte("id")
	enc, writer, err := BuildStandardEncryption(EncryptionOptions{OwnerPassword: "owner", Algorithm: RC4_128}, fileID)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ct, _ := writer.Encrypt(3, 0, []byte("(hello)"), DataClassString)
	got, err := reopen(t, enc, fileID).Decrypt(3, 0, ct, DataClassString)
	if err != nil || string(got) != "(hello)" {
		t.Fatalf("decrypt = %q, %v", got, err)
	}
}

func TestObjectKeyDependsOnObjectNumber(t *testing.T) {
	_, writer, _ := BuildStandardEncryption(EncryptionOptions{Algorithm: RC4_40}, []byte("x"))
	a, _ := writer.Encrypt(1, 0, []byte("same"), DataClassString)
	b, _ := writer.Encrypt(2, 0, []byte("same"), DataClassString)
	if bytes.Equal(a, b) {
		t.Fatalf("objects 1 and 2 encrypted identically")
	}
}

func TestIdentityCryptFilterPassesThrough(t *testing.T) {
	enc, _, _ := BuildStandardEncryption(EncryptionOptions{Algorithm: AES_128}, []byte("x"))
	h := reopen(t, enc, []byte("x"))
	got, err := h.DecryptWithFilter(4, 0, []byte("plain"), DataClassStream, "Identity")
	if err != nil || string(got) != "plain" {
		t.Fatalf("identity filter = %q, %v", got, err)
	}
}

func TestMetadataLeftInClearWhenRequested(t *testing.T) {
	enc, writer, _ := BuildStandardEncryption(EncryptionOptions{Algorithm: AES_128, EncryptMetadata: false}, []byte("x"))
	if v, ok := enc.Bool("EncryptMetadata"); !ok || v {
		t.Fatalf("EncryptMetadata entry = %v %v", v, ok)
	}
	out, _ := writer.Encrypt(9, 0, []byte("<x:xmpmeta/>"), DataClassMetadataStream)
	if string(out) != "<x:xmpmeta/>" {
		t.Fatalf("metadata was encrypted")
	}
}

func TestBuildRejectsUnknownFilter(t *testing.T) {
	enc := raw.Dict()
	enc.Set("Filter", raw.NameLiteral("Adobe.PubSec"))
	if _, err := (&HandlerBuilder{}).WithEncryptDict(enc).Build(); err == nil {
		t.Fatalf("expected error for public-key handler")
	}
}

func TestNoEncryptionHandler(t *testing.T) {
	h, err := (&HandlerBuilder{}).Build()
	if err != nil || h.IsEncrypted() {
		t.Fatalf("expected pass-through handler, got %v %v", h, err)
	}
}

func TestPermissionsValueRoundTrip(t *testing.T) {
	p := Permissions{Print: true, Copy: true, Assemble: true}
	if got := permissionsFromP(PermissionsValue(p)); got != p {
		t.Fatalf("got %+v want %+v", got, p)
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("aes-256")
	if err != nil || a != AES_256 {
		t.Fatalf("got %v %v", a, err)
	}
	if _, err := ParseAlgorithm("des"); err == nil {
		t.Fatalf("expected error")
	}
}
