// Package pix builds static BR-Code (EMV/TLV) payment payloads.
package pix

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nextlevelcode/meterbill/internal/checksum"
	"github.com/shopspring/decimal"
)

const (
	tagPayloadFormat      = "00"
	tagInitiationMethod   = "01"
	tagMerchantAccount    = "26"
	tagMerchantCategory   = "52"
	tagCurrency           = "53"
	tagAmount             = "54"
	tagCountryCode        = "58"
	tagMerchantName       = "59"
	tagMerchantCity       = "60"
	tagAdditionalData     = "62"
	tagCRC                = "63"
	subTagGUI             = "00"
	subTagKey             = "01"
	subTagDescription     = "02"
	subTagReference       = "05"
	pixGUI                = "br.gov.bcb.pix"
	defaultReference      = "***"
	payloadFormatValue    = "01"
	staticInitiationValue = "11"
	countryCodeValue      = "BR"
	merchantCategoryValue = "0000"
)

// DefaultCurrency is the ISO 4217 numeric code for BRL.
const DefaultCurrency = "986"

var (
	ErrMissingKey     = errors.New("pix: missing payee key")
	ErrMissingName    = errors.New("pix: missing merchant name")
	ErrMissingCity    = errors.New("pix: missing merchant city")
	ErrFieldTooLong   = errors.New("pix: field exceeds 99 bytes")
	ErrNegativeAmount = errors.New("pix: negative amount")
)

// Payload describes one static, reusable payment code.
type Payload struct {
	Key          string
	Amount       decimal.Decimal
	MerchantName string
	MerchantCity string
	Description  string
	// Currency is the ISO 4217 numeric code. Empty means DefaultCurrency.
	Currency string
	// Reference fills additional-data subfield 05. Empty means "***".
	Reference string
}

// Encode serializes the payload as a checksummed TLV string. The same
// input always produces the same output; the amount field (54) is only
// emitted for positive amounts and always carries the real value.
func (p Payload) Encode() (string, error) {
	if strings.TrimSpace(p.Key) == "" {
		return "", ErrMissingKey
	}
	if strings.TrimSpace(p.MerchantName) == "" {
		return "", ErrMissingName
	}
	if strings.TrimSpace(p.MerchantCity) == "" {
		return "", ErrMissingCity
	}
	if p.Amount.IsNegative() {
		return "", ErrNegativeAmount
	}

	currency := p.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	reference := p.Reference
	if reference == "" {
		reference = defaultReference
	}

	var b strings.Builder

	if err := writeTLV(&b, tagPayloadFormat, payloadFormatValue); err != nil {
		return "", err
	}
	if err := writeTLV(&b, tagInitiationMethod, staticInitiationValue); err != nil {
		return "", err
	}

	account, err := encodeTLV(subTagGUI, pixGUI)
	if err != nil {
		return "", err
	}
	key, err := encodeTLV(subTagKey, p.Key)
	if err != nil {
		return "", err
	}
	account += key
	if p.Description != "" {
		desc, err := encodeTLV(subTagDescription, p.Description)
		if err != nil {
			return "", err
		}
		account += desc
	}
	if err := writeTLV(&b, tagMerchantAccount, account); err != nil {
		return "", err
	}

	if err := writeTLV(&b, tagMerchantCategory, merchantCategoryValue); err != nil {
		return "", err
	}
	if err := writeTLV(&b, tagCurrency, currency); err != nil {
		return "", err
	}
	if p.Amount.IsPositive() {
		if err := writeTLV(&b, tagAmount, p.Amount.StringFixed(2)); err != nil {
			return "", err
		}
	}
	if err := writeTLV(&b, tagCountryCode, countryCodeValue); err != nil {
		return "", err
	}
	if err := writeTLV(&b, tagMerchantName, p.MerchantName); err != nil {
		return "", err
	}
	if err := writeTLV(&b, tagMerchantCity, p.MerchantCity); err != nil {
		return "", err
	}

	additional, err := encodeTLV(subTagReference, reference)
	if err != nil {
		return "", err
	}
	if err := writeTLV(&b, tagAdditionalData, additional); err != nil {
		return "", err
	}

	// The CRC is computed over the payload including its own tag+length
	// header, appended before the four checksum digits.
	b.WriteString(tagCRC + "04")
	payload := b.String()
	return payload + checksum.CRC16([]byte(payload)), nil
}

func encodeTLV(tag, value string) (string, error) {
	if len(value) > 99 {
		return "", fmt.Errorf("%w: tag %s", ErrFieldTooLong, tag)
	}
	return fmt.Sprintf("%s%02d%s", tag, len(value), value), nil
}

func writeTLV(b *strings.Builder, tag, value string) error {
	field, err := encodeTLV(tag, value)
	if err != nil {
		return err
	}
	b.WriteString(field)
	return nil
}
