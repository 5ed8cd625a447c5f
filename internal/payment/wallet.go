package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fleamarket-service/config"
	"fleamarket-service/internal/store"
)

// TossPay is completed client side by the Toss SDK; the server only hands
// out the parameters and return URLs.
type TossPay struct {
	clientKey     string
	publicBaseURL string
}

func NewTossPay(cfg config.TossConfig, publicBaseURL string) *TossPay {
	return &TossPay{clientKey: cfg.ClientKey, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (t *TossPay) Name() string { return MethodToss }

func (t *TossPay) SettlesOnPrepare() bool { return false }

func (t *TossPay) Prepare(_ context.Context, req PrepareRequest) (*Intent, error) {
	if t.clientKey == "" {
		return nil, fmt.Errorf("toss client key is not configured")
	}
	return &Intent{
		PaymentID: store.NewPaymentID(MethodToss),
		OrderID:   req.OrderID,
		Method:    MethodToss,
		Kind:      KindSDK,
		Params: map[string]string{
			"clientKey":  t.clientKey,
			"orderId":    req.OrderID,
			"amount":     strconv.FormatInt(req.Amount, 10),
			"orderName":  req.DisplayName,
			"successUrl": fmt.Sprintf("%s/payment/%s/success", t.publicBaseURL, MethodToss),
			"failUrl":    fmt.Sprintf("%s/payment/%s/fail", t.publicBaseURL, MethodToss),
		},
	}, nil
}

// BankTransfer returns deposit instructions; the stall owner confirms the
// deposit later through the confirm endpoint.
type BankTransfer struct {
	cfg config.BankConfig
}

func NewBankTransfer(cfg config.BankConfig) *BankTransfer {
	return &BankTransfer{cfg: cfg}
}

func (b *BankTransfer) Name() string { return MethodBank }

func (b *BankTransfer) SettlesOnPrepare() bool { return false }

func (b *BankTransfer) Prepare(_ context.Context, req PrepareRequest) (*Intent, error) {
	if b.cfg.BankName == "" || b.cfg.AccountNumber == "" {
		return nil, fmt.Errorf("bank account is not configured")
	}
	return &Intent{
		PaymentID: store.NewPaymentID(MethodBank),
		OrderID:   req.OrderID,
		Method:    MethodBank,
		Kind:      KindInstructions,
		Instructions: &TransferInstructions{
			Bank:        b.cfg.BankName,
			Account:     b.cfg.AccountNumber,
			Holder:      b.cfg.AccountHolder,
			Amount:      req.Amount,
			DepositMemo: req.OrderID,
		},
	}, nil
}

// Demo settles as soon as it is prepared. Used at the stall when payment is
// taken by hand.
type Demo struct{}

func (Demo) Name() string { return MethodDemo }

func (Demo) SettlesOnPrepare() bool { return true }

func (Demo) Prepare(_ context.Context, req PrepareRequest) (*Intent, error) {
	return &Intent{
		PaymentID: store.NewPaymentID(MethodDemo),
		OrderID:   req.OrderID,
		Method:    MethodDemo,
		Kind:      KindImmediate,
	}, nil
}
