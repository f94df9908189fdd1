// Package envelope реализует симметричное шифрование тел API-запросов и
// ответов: AES-256-CBC с дополнением PKCS7 и фиксированным IV, совместимое
// с шифрованием на стороне мобильного клиента. Это обфускация внутреннего
// канала между известным клиентом и сервером, а не криптографическая
// граница: ключ общий, а фиксированный IV делает одинаковые открытые
// тексты одинаковыми шифртекстами.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Codec шифрует и расшифровывает значения, сериализуемые в JSON.
type Codec struct {
	key []byte
	iv  []byte
}

// New создает Codec. Ключ должен быть длиной 16, 24 или 32 байта,
// IV — ровно один блок AES (16 байт).
func New(key, iv string) (*Codec, error) {
	const op = "envelope.New"
	if _, err := aes.NewCipher([]byte(key)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%s: iv must be %d bytes, got %d", op, aes.BlockSize, len(iv))
	}
	return &Codec{key: []byte(key), iv: []byte(iv)}, nil
}

// Encode шифрует значение и возвращает base64-строку. Строки шифруются
// как есть, любые другие значения сначала сериализуются в JSON.
func (c *Codec) Encode(value any) (string, error) {
	const op = "envelope.Encode"

	var plaintext []byte
	switch v := value.(type) {
	case string:
		plaintext = []byte(v)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		plaintext = data
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decode расшифровывает base64-строку. Расшифрованный текст парсится как
// JSON; если это не JSON — возвращается как строка. Любая ошибка
// (битый base64, неверная длина, неверное дополнение, пустой результат)
// дает nil: вызывающий код обязан трактовать nil как отсутствующее или
// невалидное значение, ошибки наружу не распространяются.
func (c *Codec) Decode(encoded string) any {
	plaintext, ok := c.decrypt(encoded)
	if !ok {
		return nil
	}

	var value any
	if err := json.Unmarshal(plaintext, &value); err != nil {
		return string(plaintext)
	}
	return value
}

// DecodeString расшифровывает значение в сырой открытый текст (поля вроде
// username, password или amount). Числовой текст остается текстом: "5"
// возвращается как "5", а не как число. Возвращает false, если значение
// не расшифровалось или оказалось пустым.
func (c *Codec) DecodeString(encoded string) (string, bool) {
	plaintext, ok := c.decrypt(encoded)
	if !ok {
		return "", false
	}
	return string(plaintext), true
}

// decrypt возвращает открытый текст конверта либо false при любой ошибке
// (битый base64, неверная длина, неверное дополнение, пустой результат).
// Открытый текст "0" — сентинель отсутствующего значения у мобильного
// клиента и тоже трактуется как пустой.
func (c *Codec) decrypt(encoded string) ([]byte, bool) {
	if encoded == "" {
		return nil, false
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, false
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, false
	}
	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(padded, ciphertext)

	plaintext, ok := pkcs7Unpad(padded, aes.BlockSize)
	if !ok || len(plaintext) == 0 || string(plaintext) == "0" {
		return nil, false
	}
	return plaintext, true
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, false
		}
	}
	return data[:len(data)-padding], true
}
