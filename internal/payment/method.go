package payment

import "context"

// Method names accepted by the dispatcher and the HTTP routes
const (
	MethodKakao = "kakao"
	MethodToss  = "toss"
	MethodBank  = "bank"
	MethodDemo  = "demo"
)

// Kind tells the client what to do with an intent
type Kind string

const (
	KindRedirect     Kind = "redirect"
	KindSDK          Kind = "sdk"
	KindInstructions Kind = "instructions"
	KindImmediate    Kind = "immediate"
)

type PrepareRequest struct {
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	DisplayName string `json:"displayName"`
}

// Intent is what the customer needs to complete a payment: a redirect, SDK
// parameters, or bank transfer instructions.
type Intent struct {
	PaymentID         string                `json:"paymentId"`
	OrderID           string                `json:"orderId"`
	Method            string                `json:"method"`
	Kind              Kind                  `json:"kind"`
	RedirectURL       string                `json:"redirectUrl,omitempty"`
	MobileRedirectURL string                `json:"mobileRedirectUrl,omitempty"`
	Params            map[string]string     `json:"params,omitempty"`
	Instructions      *TransferInstructions `json:"instructions,omitempty"`
}

type TransferInstructions struct {
	Bank        string `json:"bank"`
	Account     string `json:"account"`
	Holder      string `json:"holder"`
	Amount      int64  `json:"amount"`
	DepositMemo string `json:"depositMemo"`
}

// Method is one way of paying. Prepare talks to the provider, if any, and
// must honor ctx cancellation.
type Method interface {
	Name() string
	Prepare(ctx context.Context, req PrepareRequest) (*Intent, error)
	// SettlesOnPrepare reports whether a prepared intent counts as paid
	SettlesOnPrepare() bool
}
