// Package der implements the small subset of ASN.1 DER encoding needed to
// build PKCS#10 certification requests. Only encoding is provided; the
// verifying server owns decoding. Encoders are pure functions over byte
// slices and are safe for concurrent use.
package der

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Universal tag numbers used by the CSR builder.
const (
	TagInteger         = 0x02
	TagBitString       = 0x03
	TagNull            = 0x05
	TagOID             = 0x06
	TagUTF8String      = 0x0C
	TagPrintableString = 0x13
	TagSequence        = 0x10
	TagSet             = 0x11
)

// EncodeTag emits a complete TLV element. The constructed bit (0x20) is OR'ed
// into the tag byte when constructed is set.
func EncodeTag(tag byte, constructed bool, content []byte) []byte {
	if constructed {
		tag |= 0x20
	}
	out := make([]byte, 0, 2+len(content))
	out = append(out, tag)
	out = append(out, EncodeLength(len(content))...)
	out = append(out, content...)
	return out
}

// EncodeLength encodes a definite length: short form below 128, otherwise the
// minimal long form.
func EncodeLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var body []byte
	for v := n; v > 0; v >>= 8 {
		body = append([]byte{byte(v)}, body...)
	}
	return append([]byte{0x80 | byte(len(body))}, body...)
}

// EncodeSequence wraps the concatenation of its children in a SEQUENCE.
func EncodeSequence(children ...[]byte) []byte {
	return EncodeTag(TagSequence, true, concat(children))
}

// EncodeSet wraps the concatenation of its children in a SET.
func EncodeSet(children ...[]byte) []byte {
	return EncodeTag(TagSet, true, concat(children))
}

// EncodeInteger encodes a signed INTEGER with minimal two's-complement
// content. Negative values never occur in a CSR, but a leading pad byte is
// still required when the top bit of a positive value is set.
func EncodeInteger(v *big.Int) []byte {
	if v.Sign() == 0 {
		return EncodeTag(TagInteger, false, []byte{0x00})
	}
	b := v.Bytes()
	if b[0]&0x80 != 0 {
		b = append([]byte{0x00}, b...)
	}
	return EncodeTag(TagInteger, false, b)
}

// EncodeObjectIdentifier encodes a dotted OID string. The first two
// components collapse into a single byte (40*c1+c2); later components use
// base-128 continuation bytes. An OID with fewer than two components is a
// programmer error and panics.
func EncodeObjectIdentifier(oid string) []byte {
	parts := strings.Split(oid, ".")
	if len(parts) < 2 {
		panic(fmt.Sprintf("der: object identifier %q has fewer than 2 components", oid))
	}
	components := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			panic(fmt.Sprintf("der: object identifier %q has invalid component %q", oid, p))
		}
		components[i] = n
	}

	content := []byte{byte(40*components[0] + components[1])}
	for _, c := range components[2:] {
		content = append(content, encodeBase128(c)...)
	}
	return EncodeTag(TagOID, false, content)
}

// encodeBase128 emits a component as big-endian 7-bit groups, continuation
// bit set on all but the last byte.
func encodeBase128(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var out []byte
	for v := n; v > 0; v >>= 7 {
		out = append([]byte{byte(v&0x7F) | 0x80}, out...)
	}
	out[len(out)-1] &= 0x7F
	return out
}

// EncodeUTF8String encodes a UTF8String.
func EncodeUTF8String(s string) []byte {
	return EncodeTag(TagUTF8String, false, []byte(s))
}

// EncodePrintableString encodes a PrintableString. Character-set policing is
// left to the caller; subject country codes are the only users.
func EncodePrintableString(s string) []byte {
	return EncodeTag(TagPrintableString, false, []byte(s))
}

// EncodeBitString encodes byte-aligned content as a BIT STRING with zero
// unused bits.
func EncodeBitString(b []byte) []byte {
	content := make([]byte, 0, 1+len(b))
	content = append(content, 0x00)
	content = append(content, b...)
	return EncodeTag(TagBitString, false, content)
}

// EncodeNull encodes an ASN.1 NULL.
func EncodeNull() []byte {
	return []byte{TagNull, 0x00}
}

func concat(chunks [][]byte) []byte {
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
