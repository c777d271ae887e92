package services

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rentflow/utils"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockPaymentRailAccepts(t *testing.T) {
	rail := NewMockPaymentRail()

	receipt, err := rail.TransferFunds(RailTransfer{
		ObligationID: 7,
		AmountUSDC:   1500,
		FromWallet:   testTenantWallet,
		ToWallet:     testLandlordWallet,
	})
	require.NoError(t, err)
	assert.True(t, receipt.Accepted)
	assert.True(t, strings.HasPrefix(receipt.Ref, "MOCK-7-"))
}

func TestMockPaymentRailRejects(t *testing.T) {
	rail := NewMockPaymentRail()
	rail.RejectTransfers = true

	receipt, err := rail.TransferFunds(RailTransfer{ObligationID: 7, AmountUSDC: 1500})
	require.NoError(t, err)
	assert.False(t, receipt.Accepted)
}

// Запрос подписывается HMAC, а сумма сериализуется с двумя знаками после запятой
func TestXMLPaymentRailTransfer(t *testing.T) {
	secret := "test-secret"
	var gotBody string
	var gotSignature string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = string(body)
		gotSignature = r.Header.Get("X-Rail-Signature")

		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><TransferResponse><Status>accepted</Status><Ref>RAIL-42</Ref></TransferResponse>`))
	}))
	defer server.Close()

	rail := NewXMLPaymentRail(server.URL, secret)
	receipt, err := rail.TransferFunds(RailTransfer{
		ObligationID: 42,
		AmountUSDC:   1500,
		FromWallet:   testTenantWallet,
		ToWallet:     testLandlordWallet,
		Memo:         "lease 1 rent",
	})
	require.NoError(t, err)
	assert.True(t, receipt.Accepted)
	assert.Equal(t, "RAIL-42", receipt.Ref)

	// Подпись тела сверяется на стороне платежной системы
	assert.True(t, utils.ValidateHMAC(gotBody, gotSignature, []byte(secret)))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(gotBody))
	assert.Equal(t, "42", doc.FindElement("//ObligationID").Text())
	assert.Equal(t, "1500.00", doc.FindElement("//Amount").Text())
	assert.Equal(t, "USDC", doc.FindElement("//Currency").Text())
	assert.Equal(t, testTenantWallet, doc.FindElement("//FromWallet").Text())
	assert.Equal(t, testLandlordWallet, doc.FindElement("//ToWallet").Text())
	assert.Equal(t, "lease 1 rent", doc.FindElement("//Memo").Text())
}

func TestXMLPaymentRailRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><TransferResponse><Status>rejected</Status></TransferResponse>`))
	}))
	defer server.Close()

	rail := NewXMLPaymentRail(server.URL, "test-secret")
	receipt, err := rail.TransferFunds(RailTransfer{ObligationID: 1, AmountUSDC: 100})
	require.NoError(t, err)
	assert.False(t, receipt.Accepted)
	assert.Empty(t, receipt.Ref)
}

func TestXMLPaymentRailServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	rail := NewXMLPaymentRail(server.URL, "test-secret")
	_, err := rail.TransferFunds(RailTransfer{ObligationID: 1, AmountUSDC: 100})
	assert.Error(t, err)
}
