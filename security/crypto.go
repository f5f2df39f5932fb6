package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"hash"
)

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pwd []byte) []byte {
	padded := make([]byte, 32)
	n := copy(padded, pwd)
	copy(padded[n:], passwordPadding)
	return padded
}

// truncatePassword applies the 127-byte limit of revision 5 and 6 passwords.
func truncatePassword(pwd []byte) []byte {
	if len(pwd) > 127 {
		return pwd[:127]
	}
	return pwd
}

// fileKey computes the revision 2-4 encryption key from a user password.
func fileKey(pwd, owner []byte, p int32, fileID []byte, n, r int, encryptMeta bool) []byte {
	if n < 5 {
		n = 5
	}
	if n > 16 {
		n = 16
	}
	h := md5.New()
	h.Write(padPassword(pwd))
	h.Write(owner[:32])
	var pBuf [4]byte
	binary.LittleEndian.PutUint32(pBuf[:], uint32(p))
	h.Write(pBuf[:])
	h.Write(fileID)
	if r >= 4 && !encryptMeta {
		h.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}
	key := h.Sum(nil)
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum := md5.Sum(key[:n])
			key = sum[:]
		}
	}
	return key[:n]
}

// userEntry computes the /U value for key. Revision 3 and later only
// define the first 16 bytes; the rest is arbitrary padding.
func userEntry(key, fileID []byte, r int) []byte {
	if r == 2 {
		return rc4Simple(key, passwordPadding)
	}
	h := md5.New()
	h.Write(passwordPadding)
	h.Write(fileID)
	val := rc4Simple(key, h.Sum(nil))
	val = rc4Rounds(key, val, false)
	return append(val, passwordPadding[:16]...)
}

// ownerKey derives the RC4 key that encrypts /O from the owner password.
func ownerKey(ownerPwd []byte, r, n int) []byte {
	if n < 5 {
		n = 5
	}
	if n > 16 {
		n = 16
	}
	sum := md5.Sum(padPassword(ownerPwd))
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			s := md5.Sum(key)
			key = s[:]
		}
	}
	if r == 2 {
		return key[:5]
	}
	return key[:n]
}

// ownerEntry computes /O from both passwords.
func ownerEntry(ownerPwd, userPwd []byte, r, n int) []byte {
	key := ownerKey(ownerPwd, r, n)
	val := rc4Simple(key, padPassword(userPwd))
	if r >= 3 {
		val = rc4Rounds(key, val, false)
	}
	return val
}

// recoverUserPassword decrypts /O with the owner password, yielding the
// padded user password.
func recoverUserPassword(ownerPwd, o []byte, r, n int) []byte {
	key := ownerKey(ownerPwd, r, n)
	val := append([]byte(nil), o[:32]...)
	if r == 2 {
		return rc4Simple(key, val)
	}
	val = rc4Rounds(key, val, true)
	return rc4Simple(key, val)
}

// rc4Rounds runs the 19 extra RC4 passes with key XOR i. Forward runs
// i=1..19; reverse runs i=19..1.
func rc4Rounds(key, val []byte, reverse bool) []byte {
	tmp := make([]byte, len(key))
	for step := 1; step <= 19; step++ {
		i := step
		if reverse {
			i = 20 - step
		}
		for j := range key {
			tmp[j] = key[j] ^ byte(i)
		}
		val = rc4Simple(tmp, val)
	}
	return val
}

func sha256Concat(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// hashR6 is the iterated revision 6 password hash.
func hashR6(pwd, salt, udata []byte) []byte {
	k := sha256Concat(pwd, salt, udata)
	for round := 0; ; round++ {
		seq := make([]byte, 0, len(pwd)+len(k)+len(udata))
		seq = append(seq, pwd...)
		seq = append(seq, k...)
		seq = append(seq, udata...)
		k1 := bytes.Repeat(seq, 64)

		block, _ := aes.NewCipher(k[:16])
		e := make([]byte, len(k1))
		cipher.NewCBCEncrypter(block, k[16:32]).CryptBlocks(e, k1)

		sum := 0
		for _, b := range e[:16] {
			sum += int(b)
		}
		var next hash.Hash
		switch sum % 3 {
		case 0:
			next = sha256.New()
		case 1:
			next = sha512.New384()
		default:
			next = sha512.New()
		}
		next.Write(e)
		k = next.Sum(nil)
		if round >= 63 && int(e[len(e)-1]) <= round-31 {
			break
		}
	}
	return k[:32]
}

func objectKey(fileKey []byte, objNum, gen int, r int, useAES bool) []byte {
	if r >= 5 {
		return fileKey
	}
	key := append([]byte{}, fileKey...)
	key = append(key, byte(objNum), byte(objNum>>8), byte(objNum>>16), byte(gen), byte(gen>>8))
	if useAES {
		key = append(key, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	sum := md5.Sum(key)
	n := len(fileKey) + 5
	if n > 16 {
		n = 16
	}
	return sum[:n]
}

func rc4Simple(key []byte, data []byte) []byte {
	out := make([]byte, len(data))
	c, _ := rc4.NewCipher(key)
	c.XORKeyStream(out, data)
	return out
}

func rc4Crypt(key []byte, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// aesCrypt handles the IV-prefixed, PKCS#7-padded layout of encrypted
// strings and streams.
func aesCrypt(key []byte, data []byte, encrypt bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if encrypt {
		iv := make([]byte, aes.BlockSize)
		if _, err := rand.Read(iv); err != nil {
			return nil, err
		}
		padLen := aes.BlockSize - len(data)%aes.BlockSize
		plain := append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
		out := make([]byte, aes.BlockSize+len(plain))
		copy(out, iv)
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], plain)
		return out, nil
	}
	if len(data) < aes.BlockSize {
		return nil, errors.New("aes ciphertext too short")
	}
	iv, ct := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, errors.New("aes ciphertext not multiple of blocksize")
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	if len(out) == 0 {
		return out, nil
	}
	pad := int(out[len(out)-1])
	if pad <= 0 || pad > aes.BlockSize || pad > len(out) {
		return nil, errors.New("invalid aes padding")
	}
	return out[:len(out)-pad], nil
}

// aesCBCNoPad runs AES-256-CBC with a zero IV over whole blocks, as used
// for /UE and /OE.
func aesCBCNoPad(key, data []byte, encrypt bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.New("aes data not multiple of blocksize")
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(data))
	if encrypt {
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	} else {
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	}
	return out, nil
}

func decryptPerms(key []byte, perms []byte) (int32, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return 0, err
	}
	out := make([]byte, 16)
	block.Decrypt(out, perms)
	if !bytes.Equal(out[9:12], []byte("adb")) {
		return 0, errors.New("invalid perms signature")
	}
	return int32(binary.LittleEndian.Uint32(out[0:4])), nil
}

func comparePrefix(a, b []byte) bool {
	return len(a) <= len(b) && bytes.Equal(a, b[:len(a)])
}
