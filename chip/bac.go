package chip

import (
	"crypto/cipher"
	"crypto/des"
	"crypto/sha1"
	"math/bits"
)

// Key derivation and cryptographic primitives for BAC, per ICAO Doc 9303
// part 11: SHA-1 based derivation, two-key 3DES in CBC with a zero IV, and
// the ISO 9797-1 algorithm 3 retail MAC with method 2 padding.

const (
	keyTypeEnc = 1
	keyTypeMac = 2
)

// kseedFromKey derives the 16-byte key seed from the concatenated MRZ key
// (document number, date of birth, date of expiry, each with check digit).
func kseedFromKey(mrzKey string) []byte {
	sum := sha1.Sum([]byte(mrzKey))
	return sum[:16]
}

// deriveKey produces a 3DES key from a seed: SHA1(seed || counter), first
// 16 bytes, DES parity adjusted.
func deriveKey(seed []byte, keyType byte) []byte {
	d := make([]byte, 0, len(seed)+4)
	d = append(d, seed...)
	d = append(d, 0x00, 0x00, 0x00, keyType)
	sum := sha1.Sum(d)
	key := make([]byte, 16)
	copy(key, sum[:16])
	adjustParity(key)
	return key
}

// adjustParity sets the least significant bit of each byte so every byte
// has odd parity, as DES keys require.
func adjustParity(key []byte) {
	for i, b := range key {
		if bits.OnesCount8(b&0xFE)%2 == 0 {
			key[i] = b&0xFE | 0x01
		} else {
			key[i] = b & 0xFE
		}
	}
}

// tdesCipher builds a two-key 3DES cipher (EDE with K1, K2, K1).
func tdesCipher(key16 []byte) cipher.Block {
	full := make([]byte, 24)
	copy(full, key16)
	copy(full[16:], key16[:8])
	block, err := des.NewTripleDESCipher(full)
	if err != nil {
		// key material is always 24 bytes here
		panic(err)
	}
	return block
}

func tdesEncrypt(key16, plaintext []byte) []byte {
	out := make([]byte, len(plaintext))
	iv := make([]byte, des.BlockSize)
	cipher.NewCBCEncrypter(tdesCipher(key16), iv).CryptBlocks(out, plaintext)
	return out
}

func tdesDecrypt(key16, ciphertext []byte) []byte {
	out := make([]byte, len(ciphertext))
	iv := make([]byte, des.BlockSize)
	cipher.NewCBCDecrypter(tdesCipher(key16), iv).CryptBlocks(out, ciphertext)
	return out
}

// retailMAC computes the ISO 9797-1 MAC algorithm 3 over data with method 2
// padding: single DES CBC under K1, then a final decrypt under K2 and
// encrypt under K1.
func retailMAC(key16, data []byte) []byte {
	k1, err := des.NewCipher(key16[:8])
	if err != nil {
		panic(err)
	}
	k2, err := des.NewCipher(key16[8:16])
	if err != nil {
		panic(err)
	}

	padded := padMethod2(data)
	mac := make([]byte, des.BlockSize)
	block := make([]byte, des.BlockSize)
	for i := 0; i < len(padded); i += des.BlockSize {
		for j := 0; j < des.BlockSize; j++ {
			block[j] = mac[j] ^ padded[i+j]
		}
		k1.Encrypt(mac, block)
	}
	k2.Decrypt(mac, mac)
	k1.Encrypt(mac, mac)
	return mac
}

// padMethod2 appends 0x80 then zero bytes up to a block boundary.
func padMethod2(data []byte) []byte {
	padded := make([]byte, 0, len(data)+des.BlockSize)
	padded = append(padded, data...)
	padded = append(padded, 0x80)
	for len(padded)%des.BlockSize != 0 {
		padded = append(padded, 0x00)
	}
	return padded
}

func xor16(a, b []byte) []byte {
	out := make([]byte, 16)
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}
