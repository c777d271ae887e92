package services

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentflow/config"
	"rentflow/utils"

	"github.com/beevik/etree"
)

// RailTransfer представляет запрос на перевод средств в платежную систему
type RailTransfer struct {
	ObligationID uint
	AmountUSDC   float64
	FromWallet   string
	ToWallet     string
	Memo         string
}

// RailReceipt представляет ответ платежной системы на запрос перевода
type RailReceipt struct {
	Ref      string
	Accepted bool
}

// PaymentRail представляет интерфейс взаимодействия с платежной системой
type PaymentRail interface {
	TransferFunds(transfer RailTransfer) (*RailReceipt, error)
}

// NewPaymentRail создает платежную систему согласно конфигурации
func NewPaymentRail(cfg *config.Config) PaymentRail {
	if cfg.Rail.Mode == "xml" {
		return NewXMLPaymentRail(cfg.Rail.Endpoint, cfg.Rail.Secret)
	}
	return NewMockPaymentRail()
}

// MockPaymentRail имитирует платежную систему для разработки и тестов
type MockPaymentRail struct {
	// RejectTransfers заставляет имитацию отклонять все переводы
	RejectTransfers bool
}

// NewMockPaymentRail создает новый экземпляр MockPaymentRail
func NewMockPaymentRail() *MockPaymentRail {
	return &MockPaymentRail{}
}

// TransferFunds имитирует перевод средств через платежную систему
func (r *MockPaymentRail) TransferFunds(transfer RailTransfer) (*RailReceipt, error) {
	if r.RejectTransfers {
		return &RailReceipt{Accepted: false}, nil
	}

	ref := fmt.Sprintf("MOCK-%d-%d", transfer.ObligationID, time.Now().UnixNano())
	return &RailReceipt{Ref: ref, Accepted: true}, nil
}

// XMLPaymentRail отправляет переводы во внешнюю платежную систему по XML-протоколу
type XMLPaymentRail struct {
	endpoint string
	secret   string
	client   *http.Client
}

// NewXMLPaymentRail создает новый экземпляр XMLPaymentRail
func NewXMLPaymentRail(endpoint, secret string) *XMLPaymentRail {
	return &XMLPaymentRail{
		endpoint: endpoint,
		secret:   secret,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// TransferFunds выполняет перевод средств через платежную систему
func (r *XMLPaymentRail) TransferFunds(transfer RailTransfer) (*RailReceipt, error) {
	// Формируем XML-запрос
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("TransferRequest")
	root.CreateElement("ObligationID").SetText(strconv.FormatUint(uint64(transfer.ObligationID), 10))
	root.CreateElement("Amount").SetText(strconv.FormatFloat(transfer.AmountUSDC, 'f', 2, 64))
	root.CreateElement("Currency").SetText("USDC")
	root.CreateElement("FromWallet").SetText(transfer.FromWallet)
	root.CreateElement("ToWallet").SetText(transfer.ToWallet)
	root.CreateElement("Memo").SetText(transfer.Memo)

	body, err := doc.WriteToString()
	if err != nil {
		return nil, fmt.Errorf("ошибка формирования XML-запроса: %v", err)
	}

	// Формируем HTTP-запрос с HMAC-подписью тела
	req, err := http.NewRequest(http.MethodPost, r.endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %v", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("X-Rail-Signature", utils.GenerateHMAC(body, []byte(r.secret)))

	// Отправляем запрос
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка обращения к платежной системе: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("платежная система вернула статус %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа платежной системы: %v", err)
	}

	// Разбираем XML-ответ
	respDoc := etree.NewDocument()
	if err := respDoc.ReadFromBytes(respBody); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа платежной системы: %v", err)
	}

	statusEl := respDoc.FindElement("//Status")
	if statusEl == nil {
		return nil, errors.New("ответ платежной системы не содержит статуса")
	}

	receipt := &RailReceipt{
		Accepted: strings.EqualFold(strings.TrimSpace(statusEl.Text()), "accepted"),
	}

	if refEl := respDoc.FindElement("//Ref"); refEl != nil {
		receipt.Ref = strings.TrimSpace(refEl.Text())
	}

	return receipt, nil
}
