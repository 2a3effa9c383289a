package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

var (
	// ErrPacketTooShort 表示加密报文长度不足，
	// 无法包含完整的 nonce、密文和 MAC。
	ErrPacketTooShort = errors.New("crypto: packet too short")

	// ErrInvalidMAC 表示 HMAC 签名校验失败。
	ErrInvalidMAC = errors.New("crypto: invalid mac")
)

// KeySize 为 AES-256 密钥长度。
const KeySize = 32

// AEADHMAC 使用 AES-256-GCM 加密并以 HMAC-SHA256 签名。
//
// 报文格式：nonce || ciphertext || mac
//   - nonce     ：随机数，长度等于 AEAD.NonceSize()
//   - ciphertext：AES-GCM 加密后的密文（包含 GCM tag）
//   - mac       ：HMAC-SHA256(nonce || ciphertext || aad)
type AEADHMAC struct {
	aead    cipher.AEAD
	hmacKey []byte
}

// 确保 AEADHMAC 满足 Encryptor 接口。
var _ Encryptor = (*AEADHMAC)(nil)

// NewAEADHMAC 创建加密器。encKey 必须为 32 字节，macKey 不能为空。
func NewAEADHMAC(encKey, macKey []byte) (*AEADHMAC, error) {
	if len(encKey) != KeySize {
		return nil, merr.WrapErrParameterInvalid(KeySize, len(encKey), "encryption key size")
	}
	if len(macKey) == 0 {
		return nil, merr.WrapErrParameterMissing("macKey")
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AEADHMAC{
		aead:    aead,
		hmacKey: append([]byte(nil), macKey...),
	}, nil
}

// NewAEADHMACFromHex 使用十六进制编码的密钥创建加密器，用于配置文件。
func NewAEADHMACFromHex(encKeyHex, macKeyHex string) (*AEADHMAC, error) {
	encKey, err := hex.DecodeString(encKeyHex)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("encKey is not hex: %v", err)
	}
	macKey, err := hex.DecodeString(macKeyHex)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("macKey is not hex: %v", err)
	}
	return NewAEADHMAC(encKey, macKey)
}

func (c *AEADHMAC) sign(nonce, ciphertext, aad []byte) []byte {
	m := hmac.New(sha256.New, c.hmacKey)
	_, _ = m.Write(nonce)
	_, _ = m.Write(ciphertext)
	_, _ = m.Write(aad)
	return m.Sum(nil)
}

// Encrypt 对明文进行加密并计算签名。
func (c *AEADHMAC) Encrypt(plaintext, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	packet := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead()+sha256.Size)
	if _, err := io.ReadFull(rand.Reader, packet); err != nil {
		return nil, err
	}
	packet = c.aead.Seal(packet, packet[:nonceSize], plaintext, aad)
	return append(packet, c.sign(packet[:nonceSize], packet[nonceSize:], aad)...), nil
}

// Decrypt 验证签名并解密报文，aad 必须与加密时一致。
func (c *AEADHMAC) Decrypt(packet, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(packet) < nonceSize+c.aead.Overhead()+sha256.Size {
		return nil, ErrPacketTooShort
	}

	macOffset := len(packet) - sha256.Size
	nonce := packet[:nonceSize]
	ciphertext := packet[nonceSize:macOffset]

	if !hmac.Equal(c.sign(nonce, ciphertext, aad), packet[macOffset:]) {
		return nil, ErrInvalidMAC
	}
	return c.aead.Open(nil, nonce, ciphertext, aad)
}
