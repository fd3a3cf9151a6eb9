package payment_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aqualife-vn/backend-aqualife/internal/payment"
)

func TestSignIsDeterministic(t *testing.T) {
	canonical := "accessKey=abc&amount=150000&orderId=1-x"

	first, err := payment.Sign(canonical, "secret", payment.AlgorithmHmacSHA256)
	require.NoError(t, err)
	second, err := payment.Sign(canonical, "secret", payment.AlgorithmHmacSHA256)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 64)
	require.Equal(t, first, strings.ToLower(first))
}

func TestSignSHA512DigestLength(t *testing.T) {
	sig, err := payment.Sign("vnp_Amount=15000000&vnp_Command=pay", "secret", payment.AlgorithmHmacSHA512)
	require.NoError(t, err)
	require.Len(t, sig, 128)
}

func TestSignDiffersPerSecret(t *testing.T) {
	canonical := "amount=1000"
	a, err := payment.Sign(canonical, "secret-a", payment.AlgorithmHmacSHA256)
	require.NoError(t, err)
	b, err := payment.Sign(canonical, "secret-b", payment.AlgorithmHmacSHA256)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestSignRejectsEmptySecret(t *testing.T) {
	_, err := payment.Sign("amount=1000", "   ", payment.AlgorithmHmacSHA256)
	require.Error(t, err)
	require.Equal(t, payment.CodeCrypto, payment.CodeOf(err))
}

func TestSignRejectsUnknownAlgorithm(t *testing.T) {
	_, err := payment.Sign("amount=1000", "secret", payment.Algorithm("HmacMD5"))
	require.Error(t, err)
	require.Equal(t, payment.CodeCrypto, payment.CodeOf(err))
}
