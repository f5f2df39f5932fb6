package security

import (
	"crypto/aes"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/wudi/blackout/ir/raw"
)

// Algorithm selects the cipher BuildStandardEncryption sets up.
type Algorithm int

const (
	RC4_40 Algorithm = iota
	RC4_128
	AES_128
	AES_256
)

func (a Algorithm) String() string {
	switch a {
	case RC4_40:
		return "rc4-40"
	case RC4_128:
		return "rc4-128"
	case AES_128:
		return "aes-128"
	case AES_256:
		return "aes-256"
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm maps the names printed by Algorithm.String back to values.
func ParseAlgorithm(s string) (Algorithm, error) {
	for _, a := range []Algorithm{RC4_40, RC4_128, AES_128, AES_256} {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown encryption algorithm %q", s)
}

type EncryptionOptions struct {
	UserPassword  string
	OwnerPassword string
	Permissions   Permissions
	Algorithm     Algorithm
	// EncryptMetadata is honoured for AES only.
	EncryptMetadata bool
}

// BuildStandardEncryption constructs an /Encrypt dictionary for fileID and
// returns a handler already authenticated with its key.
func BuildStandardEncryption(opts EncryptionOptions, fileID []byte) (*raw.DictObj, Handler, error) {
	owner := opts.OwnerPassword
	if owner == "" {
		owner = opts.UserPassword
	}
	pVal := PermissionsValue(opts.Permissions)
	encryptMeta := opts.EncryptMetadata || opts.Algorithm < AES_128

	enc := raw.Dict()
	enc.Set("Filter", raw.NameLiteral("Standard"))
	enc.Set("P", raw.NumberInt(int64(pVal)))

	if opts.Algorithm == AES_256 {
		h, err := buildAES256(enc, []byte(opts.UserPassword), []byte(owner), pVal, encryptMeta)
		if err != nil {
			return nil, nil, err
		}
		return enc, h, nil
	}

	v, r, n := 1, 2, 5
	switch opts.Algorithm {
	case RC4_128:
		v, r, n = 2, 3, 16
	case AES_128:
		v, r, n = 4, 4, 16
	}
	o := ownerEntry([]byte(owner), []byte(opts.UserPassword), r, n)
	key := fileKey([]byte(opts.UserPassword), o, pVal, fileID, n, r, encryptMeta)
	u := userEntry(key, fileID, r)

	enc.Set("V", raw.NumberInt(int64(v)))
	enc.Set("R", raw.NumberInt(int64(r)))
	enc.Set("Length", raw.NumberInt(int64(n*8)))
	enc.Set("O", raw.Str(o))
	enc.Set("U", raw.Str(u))
	h := &standardHandler{
		key: key, v: v, r: r, keyBytes: n, o: o, u: u, p: pVal,
		fileID: fileID, encryptMeta: encryptMeta, authed: true,
		streamAlgo: algoRC4, stringAlgo: algoRC4,
	}
	if opts.Algorithm == AES_128 {
		setCryptFilter(enc, "AESV2", n)
		h.streamAlgo, h.stringAlgo = algoAES, algoAES
		h.cryptFilters = map[string]cryptAlgo{"StdCF": algoAES}
		if !encryptMeta {
			enc.Set("EncryptMetadata", raw.Bool(false))
		}
	}
	return enc, h, nil
}

func setCryptFilter(enc *raw.DictObj, method string, keyBytes int) {
	cf := raw.Dict()
	cf.Set("Type", raw.NameLiteral("CryptFilter"))
	cf.Set("CFM", raw.NameLiteral(method))
	cf.Set("AuthEvent", raw.NameLiteral("DocOpen"))
	cf.Set("Length", raw.NumberInt(int64(keyBytes)))
	cfs := raw.Dict()
	cfs.Set("StdCF", cf)
	enc.Set("CF", cfs)
	enc.Set("StmF", raw.NameLiteral("StdCF"))
	enc.Set("StrF", raw.NameLiteral("StdCF"))
}

func buildAES256(enc *raw.DictObj, userPwd, ownerPwd []byte, pVal int32, encryptMeta bool) (*standardHandler, error) {
	userPwd, ownerPwd = truncatePassword(userPwd), truncatePassword(ownerPwd)
	random := make([]byte, 32+16+16+4)
	if _, err := rand.Read(random); err != nil {
		return nil, err
	}
	key := random[:32]
	uSalts, oSalts, permsTail := random[32:48], random[48:64], random[64:68]

	u := append(hashR6(userPwd, uSalts[:8], nil), uSalts...)
	ue, err := aesCBCNoPad(hashR6(userPwd, uSalts[8:], nil), key, true)
	if err != nil {
		return nil, err
	}
	o := append(hashR6(ownerPwd, oSalts[:8], u), oSalts...)
	oe, err := aesCBCNoPad(hashR6(ownerPwd, oSalts[8:], u), key, true)
	if err != nil {
		return nil, err
	}

	plain := make([]byte, 16)
	binary.LittleEndian.PutUint32(plain[0:4], uint32(pVal))
	copy(plain[4:8], []byte{0xFF, 0xFF, 0xFF, 0xFF})
	plain[8] = 'F'
	if encryptMeta {
		plain[8] = 'T'
	}
	copy(plain[9:12], "adb")
	copy(plain[12:16], permsTail)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	perms := make([]byte, 16)
	block.Encrypt(perms, plain)

	enc.Set("V", raw.NumberInt(5))
	enc.Set("R", raw.NumberInt(6))
	enc.Set("Length", raw.NumberInt(256))
	enc.Set("O", raw.Str(o))
	enc.Set("U", raw.Str(u))
	enc.Set("OE", raw.Str(oe))
	enc.Set("UE", raw.Str(ue))
	enc.Set("Perms", raw.Str(perms))
	setCryptFilter(enc, "AESV3", 32)
	if !encryptMeta {
		enc.Set("EncryptMetadata", raw.Bool(false))
	}
	return &standardHandler{
		key: key, v: 5, r: 6, keyBytes: 32, o: o, u: u, oe: oe, ue: ue, perms: perms, p: pVal,
		encryptMeta: encryptMeta, authed: true,
		streamAlgo: algoAES, stringAlgo: algoAES,
		cryptFilters: map[string]cryptAlgo{"StdCF": algoAES},
	}, nil
}
