package crypto

// Encryptor 抽象了单一“加密方案”的能力：
//   - Encrypt：加密并签名，生成完整报文
//   - Decrypt：验签后解密，还原明文
//
// aad（Associated Data）为关联数据，不加密但需要完整性保护，流编解码中为帧头。
type Encryptor interface {
	Encrypt(plaintext, aad []byte) (packet []byte, err error)
	Decrypt(packet, aad []byte) (plaintext []byte, err error)
}

// NopEncryptor 是一个空实现：不做加密也不做验签，直接透传数据。
type NopEncryptor struct{}

func (NopEncryptor) Encrypt(plaintext, _ []byte) ([]byte, error) {
	return plaintext, nil
}

func (NopEncryptor) Decrypt(packet, _ []byte) ([]byte, error) {
	return packet, nil
}

// 编译期断言：确保 NopEncryptor 实现了 Encryptor 接口。
var _ Encryptor = NopEncryptor{}
