package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"net/url"
	"sort"
	"strings"
)

// Algorithm selects the keyed-hash function used to sign a canonical string.
type Algorithm string

const (
	// AlgorithmHmacSHA256 is required by the MoMo create-order API.
	AlgorithmHmacSHA256 Algorithm = "HmacSHA256"
	// AlgorithmHmacSHA512 is required by the VNPay redirect gateway.
	AlgorithmHmacSHA512 Algorithm = "HmacSHA512"
)

// Sign computes the lowercase hex HMAC digest of the canonical string.
//
// The canonical string must already be in the provider's pinned key order;
// both gateways reject requests whose signature was computed over a
// reordered or re-encoded parameter list.
func Sign(canonical, secret string, alg Algorithm) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", cryptoError(fmt.Errorf("signing: empty secret for %s", alg))
	}
	var newHash func() hash.Hash
	switch alg {
	case AlgorithmHmacSHA256:
		newHash = sha256.New
	case AlgorithmHmacSHA512:
		newHash = sha512.New
	default:
		return "", cryptoError(fmt.Errorf("signing: unsupported algorithm %q", alg))
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// sortedKeys returns the map keys in lexicographic order. VNPay signs and
// renders its parameters in this order.
func sortedKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// joinSorted builds key=value pairs in sorted key order joined by "&". The
// values pass through encode, or verbatim when encode is nil.
func joinSorted(params map[string]string, encode func(string) string) string {
	var b strings.Builder
	for i, k := range sortedKeys(params) {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		if encode != nil {
			b.WriteString(encode(params[k]))
		} else {
			b.WriteString(params[k])
		}
	}
	return b.String()
}

// vnpayHashData renders the canonical string VNPay hashes: sorted keys,
// raw (unencoded) values.
func vnpayHashData(params map[string]string) string {
	return joinSorted(params, nil)
}

// vnpayQuery renders the redirect query string: same key order as the hash
// data but with percent-encoded values.
func vnpayQuery(params map[string]string) string {
	return joinSorted(params, url.QueryEscape)
}
