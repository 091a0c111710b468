// Package signature implements the parameter signing scheme shared with the
// platform, plus the URL-safe base64 variant used by signed tokens.
package signature

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrMalformedEncoding = errors.New("malformed base64url encoding")

// Generate returns the hex MD5 digest of the params sorted by key and
// concatenated as key=value pairs, with secret appended. The concatenation
// order must not change: the platform computes the same digest.
func Generate(
	params map[string]string,
	secret string,
) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var base strings.Builder
	for _, key := range keys {
		base.WriteString(key)
		base.WriteByte('=')
		base.WriteString(params[key])
	}
	base.WriteString(secret)

	sum := md5.Sum([]byte(base.String()))
	return hex.EncodeToString(sum[:])
}

// Base64URLDecode decodes base64 that uses '-' and '_' in place of '+' and
// '/'. Missing padding is tolerated; '+', '/' and non-canonical trailing bits
// are not.
func Base64URLDecode(input string) ([]byte, error) {
	if i := strings.IndexAny(input, "+/"); i >= 0 {
		return nil, fmt.Errorf("%w: standard alphabet character %q at offset %d", ErrMalformedEncoding, input[i], i)
	}

	std := strings.NewReplacer("-", "+", "_", "/").Replace(input)
	if rem := len(std) % 4; rem != 0 {
		std += strings.Repeat("=", 4-rem)
	}

	decoded, err := base64.StdEncoding.Strict().DecodeString(std)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	return decoded, nil
}

// Base64URLEncode is the inverse of Base64URLDecode; it emits no padding.
func Base64URLEncode(input []byte) string {
	return base64.RawURLEncoding.EncodeToString(input)
}
