package pix

import (
	"strings"
	"testing"

	"github.com/nextlevelcode/meterbill/internal/checksum"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basePayload() Payload {
	return Payload{
		Key:          "pagamentos@nextlevelcode.dev",
		MerchantName: "NextLevelCode",
		MerchantCity: "SAO PAULO",
	}
}

func TestEncode_CRCRoundTrip(t *testing.T) {
	cases := []Payload{
		basePayload(),
		func() Payload {
			p := basePayload()
			p.Amount = decimal.RequireFromString("12.34")
			return p
		}(),
		func() Payload {
			p := basePayload()
			p.Amount = decimal.RequireFromString("0.01")
			p.Description = "By API Gateway"
			return p
		}(),
	}

	for _, p := range cases {
		encoded, err := p.Encode()
		require.NoError(t, err)

		// The last four characters must be the CRC of everything before
		// them, including the 6304 header.
		body := encoded[:len(encoded)-4]
		assert.Equal(t, checksum.CRC16([]byte(body)), encoded[len(encoded)-4:])
		assert.True(t, strings.HasSuffix(body, "6304"))
	}
}

func TestEncode_AmountField(t *testing.T) {
	p := basePayload()
	p.Amount = decimal.RequireFromString("12.34")
	encoded, err := p.Encode()
	require.NoError(t, err)
	assert.Contains(t, encoded, "540512.34")

	p.Amount = decimal.Zero
	encoded, err = p.Encode()
	require.NoError(t, err)
	assert.NotContains(t, encoded, "5405")
}

func TestEncode_Idempotent(t *testing.T) {
	p := basePayload()
	p.Amount = decimal.RequireFromString("1734.58")
	first, err := p.Encode()
	require.NoError(t, err)
	second, err := p.Encode()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEncode_StaticFields(t *testing.T) {
	encoded, err := basePayload().Encode()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(encoded, "000201"))
	assert.Contains(t, encoded, "010211")
	assert.Contains(t, encoded, "0014br.gov.bcb.pix")
	assert.Contains(t, encoded, "52040000")
	assert.Contains(t, encoded, "5303986")
	assert.Contains(t, encoded, "5802BR")
	assert.Contains(t, encoded, "62070503***")
}

func TestEncode_Description(t *testing.T) {
	p := basePayload()
	p.Description = "By API Gateway"
	encoded, err := p.Encode()
	require.NoError(t, err)
	assert.Contains(t, encoded, "0214By API Gateway")

	without, err := basePayload().Encode()
	require.NoError(t, err)
	assert.NotContains(t, without, "By API Gateway")
}

func TestEncode_CustomCurrency(t *testing.T) {
	p := basePayload()
	p.Currency = "840"
	encoded, err := p.Encode()
	require.NoError(t, err)
	assert.Contains(t, encoded, "5303840")
}

func TestEncode_Validation(t *testing.T) {
	p := basePayload()
	p.Key = ""
	_, err := p.Encode()
	assert.ErrorIs(t, err, ErrMissingKey)

	p = basePayload()
	p.MerchantName = " "
	_, err = p.Encode()
	assert.ErrorIs(t, err, ErrMissingName)

	p = basePayload()
	p.MerchantCity = ""
	_, err = p.Encode()
	assert.ErrorIs(t, err, ErrMissingCity)

	p = basePayload()
	p.Amount = decimal.RequireFromString("-1")
	_, err = p.Encode()
	assert.ErrorIs(t, err, ErrNegativeAmount)

	p = basePayload()
	p.Description = strings.Repeat("x", 100)
	_, err = p.Encode()
	assert.ErrorIs(t, err, ErrFieldTooLong)
}

func TestQRCodePNG(t *testing.T) {
	encoded, err := basePayload().Encode()
	require.NoError(t, err)

	png, err := QRCodePNG(encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}
