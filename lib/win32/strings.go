// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package win32

import (
	"unsafe"

	"golang.org/x/text/encoding/unicode"
)

// maxNameLength bounds the scan for a terminating NUL. Windows object
// names are limited to 32767 characters; anything longer is not a
// name the OS would accept.
const maxNameLength = 32767

// AnsiString returns the NUL-terminated single-byte string at name as
// Go bytes, without code page translation. A nil pointer yields "".
func AnsiString(name *byte) string {
	if name == nil {
		return ""
	}
	length := 0
	for length < maxNameLength && *(*byte)(unsafe.Add(unsafe.Pointer(name), length)) != 0 {
		length++
	}
	return string(unsafe.Slice(name, length))
}

// WideString decodes the NUL-terminated UTF-16LE string at name to
// UTF-8. Unpaired surrogates decode to U+FFFD. A nil pointer yields "".
func WideString(name *uint16) string {
	if name == nil {
		return ""
	}
	length := 0
	for length < maxNameLength && *(*uint16)(unsafe.Add(unsafe.Pointer(name), 2*length)) != 0 {
		length++
	}
	units := unsafe.Slice(name, length)
	raw := make([]byte, 0, 2*length)
	for _, unit := range units {
		raw = append(raw, byte(unit), byte(unit>>8))
	}
	return decodeUTF16(raw)
}

// WideBytes encodes s as a NUL-terminated UTF-16 string, suitable for
// passing to a W-suffixed primitive.
func WideBytes(s string) []uint16 {
	encoded, err := utf16Encoding.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []uint16{0}
	}
	units := make([]uint16, 0, len(encoded)/2+1)
	for index := 0; index+1 < len(encoded); index += 2 {
		units = append(units, uint16(encoded[index])|uint16(encoded[index+1])<<8)
	}
	return append(units, 0)
}

// AnsiBytes returns s as a NUL-terminated byte string.
func AnsiBytes(s string) []byte {
	return append([]byte(s), 0)
}

var utf16Encoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func decodeUTF16(raw []byte) string {
	decoded, err := utf16Encoding.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return string(decoded)
}
