package financialimporter

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"k8s.io/klog"
)

// previewEncoding is used to read the header row before the format, and so
// the real encoding, is known. Latin-1 accepts every byte sequence.
const previewEncoding = "iso-8859-1"

var boms = [][]byte{
	{0xEF, 0xBB, 0xBF},
	{0xFF, 0xFE},
	{0xFE, 0xFF},
}

// decodeContent converts raw file bytes to UTF-8 text. A byte order mark
// decides the encoding when present, valid UTF-8 is kept as is, otherwise the
// declared encoding is used. Anything still undecodable is read as UTF-8 with
// replacement characters, so decoding never fails.
func decodeContent(raw []byte, declared string) string {
	if hasBOM(raw) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		if err == nil {
			return string(out)
		}
	}

	if utf8.Valid(raw) {
		return string(raw)
	}

	if enc := lookupEncoding(declared); enc != nil {
		out, err := enc.NewDecoder().Bytes(raw)
		if err == nil {
			return string(out)
		}
		klog.Warningf("failed to decode content as %s, falling back to utf-8: %v", declared, err)
	}

	return strings.ToValidUTF8(string(raw), "�")
}

func lookupEncoding(name string) encoding.Encoding {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		klog.Warningf("unknown encoding %q: %v", name, err)
		return nil
	}

	return enc
}

func hasBOM(raw []byte) bool {
	for _, bom := range boms {
		if bytes.HasPrefix(raw, bom) {
			return true
		}
	}
	return false
}
