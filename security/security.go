// Package security implements the PDF Standard security handler.
package security

import (
	"errors"
	"fmt"

	"github.com/wudi/blackout/ir/raw"
)

type Permissions struct{ Print, Modify, Copy, ModifyAnnotations, FillForms, ExtractAccessible, Assemble, PrintHighQuality bool }

// AllPermissions grants every operation.
func AllPermissions() Permissions {
	return Permissions{true, true, true, true, true, true, true, true}
}

// DataClass identifies the kind of payload being encrypted or decrypted.
type DataClass int

const (
	DataClassStream DataClass = iota
	DataClassString
	DataClassMetadataStream
)

// ErrInvalidPassword is returned when neither the user nor the owner
// password check accepts the supplied password.
var ErrInvalidPassword = errors.New("invalid password")

type Handler interface {
	IsEncrypted() bool
	Authenticate(password string) error
	DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error)
	Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error)
	Encrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error)
	Permissions() Permissions
	EncryptMetadata() bool
}

type HandlerBuilder struct {
	encryptDict *raw.DictObj
	fileID      []byte
}

func (b *HandlerBuilder) WithEncryptDict(d *raw.DictObj) *HandlerBuilder { b.encryptDict = d; return b }
func (b *HandlerBuilder) WithFileID(id []byte) *HandlerBuilder           { b.fileID = id; return b }

// WithTrailer takes the file identifier from the first element of /ID.
func (b *HandlerBuilder) WithTrailer(d *raw.DictObj) *HandlerBuilder {
	if len(b.fileID) > 0 || d == nil {
		return b
	}
	if arrObj, ok := d.Get("ID"); ok {
		if arr, ok := arrObj.(*raw.ArrayObj); ok && arr.Len() > 0 {
			if s, ok := arr.Items[0].(raw.StringObj); ok {
				b.fileID = s.Bytes
			}
		}
	}
	return b
}

func (b *HandlerBuilder) Build() (Handler, error) {
	if b.encryptDict == nil {
		return noEncryptionHandler{}, nil
	}
	d := b.encryptDict
	if name, ok := d.Name("Filter"); ok && name != "Standard" {
		return nil, fmt.Errorf("unsupported encryption filter %s", name)
	}
	v, _ := d.Int("V")
	if v == 0 {
		v = 1
	}
	if v == 3 || v > 5 {
		return nil, fmt.Errorf("encryption V=%d not supported", v)
	}
	r, ok := d.Int("R")
	if !ok {
		r = 2
	}
	if r < 2 || r > 6 {
		return nil, fmt.Errorf("encryption R=%d not supported", r)
	}
	keyLen := 40
	if v >= 5 {
		keyLen = 256
	}
	if n, ok := d.Int("Length"); ok && n > 0 && v < 5 {
		keyLen = int(n)
	}
	if v == 4 {
		keyLen = 128
	}
	if keyLen%8 != 0 || keyLen < 40 || keyLen > 256 {
		return nil, fmt.Errorf("encryption length %d invalid", keyLen)
	}
	h := &standardHandler{
		v:           int(v),
		r:           int(r),
		keyBytes:    keyLen / 8,
		fileID:      b.fileID,
		encryptMeta: true,
	}
	h.o, _ = d.String("O")
	h.u, _ = d.String("U")
	h.oe, _ = d.String("OE")
	h.ue, _ = d.String("UE")
	h.perms, _ = d.String("Perms")
	p, _ := d.Int("P")
	h.p = int32(p)
	if em, ok := d.Bool("EncryptMetadata"); ok {
		h.encryptMeta = em
	}
	if len(h.o) < 32 || len(h.u) < 32 {
		return nil, errors.New("encryption dictionary lacks O or U")
	}

	base := algoRC4
	if v >= 4 {
		base = algoAES
	}
	filters, err := parseCryptFilters(d, base)
	if err != nil {
		return nil, err
	}
	if v >= 4 {
		if h.streamAlgo, err = resolveCryptFilter(d, "StmF", filters); err != nil {
			return nil, err
		}
		if h.stringAlgo, err = resolveCryptFilter(d, "StrF", filters); err != nil {
			return nil, err
		}
	} else {
		h.streamAlgo, h.stringAlgo = algoRC4, algoRC4
	}
	h.cryptFilters = filters
	return h, nil
}

type cryptAlgo int

const (
	algoNone cryptAlgo = iota + 1
	algoRC4
	algoAES
)

type standardHandler struct {
	key          []byte
	v, r         int
	keyBytes     int
	o, u         []byte
	oe, ue       []byte
	perms        []byte
	p            int32
	fileID       []byte
	encryptMeta  bool
	authed       bool
	streamAlgo   cryptAlgo
	stringAlgo   cryptAlgo
	cryptFilters map[string]cryptAlgo
}

func (h *standardHandler) IsEncrypted() bool     { return true }
func (h *standardHandler) EncryptMetadata() bool { return h.encryptMeta }

// Authenticate tries password as the user password, then as the owner
// password.
func (h *standardHandler) Authenticate(password string) error {
	pwd := []byte(password)
	if h.r >= 5 {
		return h.authenticateAES256(pwd)
	}
	if key, ok := h.checkUser(pwd); ok {
		h.key, h.authed = key, true
		return nil
	}
	userPwd := recoverUserPassword(pwd, h.o, h.r, h.keyBytes)
	if key, ok := h.checkUser(userPwd); ok {
		h.key, h.authed = key, true
		return nil
	}
	return ErrInvalidPassword
}

func (h *standardHandler) checkUser(pwd []byte) ([]byte, bool) {
	key := fileKey(pwd, h.o, h.p, h.fileID, h.keyBytes, h.r, h.encryptMeta)
	return key, comparePrefix(userEntry(key, h.fileID, h.r)[:16], h.u)
}

func (h *standardHandler) authenticateAES256(pwd []byte) error {
	pwd = truncatePassword(pwd)
	u, o := h.u, h.o
	if len(u) >= 48 && len(h.ue) >= 32 && comparePrefix(h.hash(pwd, u[32:40], nil)[:32], u) {
		key, err := aesCBCNoPad(h.hash(pwd, u[40:48], nil), h.ue[:32], false)
		if err != nil {
			return err
		}
		h.key, h.authed = key, true
		h.checkPerms()
		return nil
	}
	if len(o) >= 48 && len(h.oe) >= 32 && len(u) >= 48 && comparePrefix(h.hash(pwd, o[32:40], u[:48])[:32], o) {
		key, err := aesCBCNoPad(h.hash(pwd, o[40:48], u[:48]), h.oe[:32], false)
		if err != nil {
			return err
		}
		h.key, h.authed = key, true
		h.checkPerms()
		return nil
	}
	return ErrInvalidPassword
}

func (h *standardHandler) hash(pwd, salt, udata []byte) []byte {
	if h.r == 5 {
		return sha256Concat(pwd, salt, udata)
	}
	return hashR6(pwd, salt, udata)
}

// checkPerms replaces P with the value sealed in /Perms when it decrypts.
func (h *standardHandler) checkPerms() {
	if len(h.perms) != 16 {
		return
	}
	if p, err := decryptPerms(h.key, h.perms); err == nil {
		h.p = p
	}
}

func (h *standardHandler) ensureAuth() error {
	if h.authed {
		return nil
	}
	return h.Authenticate("")
}

func (h *standardHandler) DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error) {
	if err := h.ensureAuth(); err != nil {
		return nil, err
	}
	algo, err := h.algoFor(class, cryptFilter)
	if err != nil {
		return nil, err
	}
	if algo == algoNone || len(data) == 0 {
		return data, nil
	}
	key := objectKey(h.key, objNum, gen, h.r, algo == algoAES)
	if algo == algoAES {
		return aesCrypt(key, data, false)
	}
	return rc4Crypt(key, data)
}

func (h *standardHandler) Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	return h.DecryptWithFilter(objNum, gen, data, class, "")
}

func (h *standardHandler) Encrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	if err := h.ensureAuth(); err != nil {
		return nil, err
	}
	algo, err := h.algoFor(class, "")
	if err != nil {
		return nil, err
	}
	if algo == algoNone {
		return data, nil
	}
	key := objectKey(h.key, objNum, gen, h.r, algo == algoAES)
	if algo == algoAES {
		return aesCrypt(key, data, true)
	}
	return rc4Crypt(key, data)
}

func (h *standardHandler) algoFor(class DataClass, filter string) (cryptAlgo, error) {
	switch filter {
	case "Identity":
		return algoNone, nil
	case "":
	default:
		if algo, ok := h.cryptFilters[filter]; ok {
			return algo, nil
		}
		return 0, fmt.Errorf("crypt filter %s not defined", filter)
	}
	switch class {
	case DataClassString:
		return h.stringAlgo, nil
	case DataClassMetadataStream:
		if !h.encryptMeta {
			return algoNone, nil
		}
	}
	return h.streamAlgo, nil
}

func (h *standardHandler) Permissions() Permissions {
	return permissionsFromP(h.p)
}

func permissionsFromP(p int32) Permissions {
	return Permissions{
		Print:             p&0x4 != 0,
		Modify:            p&0x8 != 0,
		Copy:              p&0x10 != 0,
		ModifyAnnotations: p&0x20 != 0,
		FillForms:         p&0x100 != 0,
		ExtractAccessible: p&0x200 != 0,
		Assemble:          p&0x400 != 0,
		PrintHighQuality:  p&0x800 != 0,
	}
}

// PermissionsValue builds the /P flags for p.
func PermissionsValue(p Permissions) int32 {
	val := int32(-4) // bits 1-2 must be 0
	unset := func(allowed bool, bit uint) {
		if !allowed {
			val &^= 1 << bit
		}
	}
	unset(p.Print, 2)
	unset(p.Modify, 3)
	unset(p.Copy, 4)
	unset(p.ModifyAnnotations, 5)
	unset(p.FillForms, 8)
	unset(p.ExtractAccessible, 9)
	unset(p.Assemble, 10)
	unset(p.PrintHighQuality, 11)
	return val
}

type noEncryptionHandler struct{}

func (noEncryptionHandler) IsEncrypted() bool                  { return false }
func (noEncryptionHandler) Authenticate(password string) error { return nil }
func (noEncryptionHandler) DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error) {
	return data, nil
}
func (noEncryptionHandler) Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	return data, nil
}
func (noEncryptionHandler) Encrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	return data, nil
}
func (noEncryptionHandler) Permissions() Permissions { return AllPermissions() }
func (noEncryptionHandler) EncryptMetadata() bool    { return false }

// NoopHandler returns a reusable pass-through encryption handler.
func NoopHandler() Handler { return noEncryptionHandler{} }

func parseCryptFilters(dict *raw.DictObj, base cryptAlgo) (map[string]cryptAlgo, error) {
	out := make(map[string]cryptAlgo)
	cfObj, ok := dict.Get("CF")
	if !ok {
		return out, nil
	}
	cfDict, ok := cfObj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("CF must be a dictionary")
	}
	for name, obj := range cfDict.KV {
		entry, ok := obj.(*raw.DictObj)
		if !ok {
			return nil, errors.New("crypt filter entry must be a dictionary")
		}
		algo := base
		if cfm, ok := entry.Name("CFM"); ok {
			switch cfm {
			case "V2":
				algo = algoRC4
			case "AESV2", "AESV3":
				algo = algoAES
			case "None":
				algo = algoNone
			default:
				return nil, fmt.Errorf("unsupported crypt filter method %s", cfm)
			}
		}
		out[name] = algo
	}
	return out, nil
}

func resolveCryptFilter(dict *raw.DictObj, key string, filters map[string]cryptAlgo) (cryptAlgo, error) {
	name, _ := dict.Name(key)
	if name == "" || name == "Identity" {
		return algoNone, nil
	}
	if algo, ok := filters[name]; ok {
		return algo, nil
	}
	return 0, fmt.Errorf("crypt filter %s not defined", name)
}
