package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fleamarket-service/config"
	"fleamarket-service/internal/store"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// KakaoPay prepares a payment through the KakaoPay ready API. Without an
// admin key it falls back to the static QR remittance link.
type KakaoPay struct {
	cfg           config.KakaoConfig
	publicBaseURL string
	client        *http.Client
}

type kakaoReadyResponse struct {
	TID                   string `json:"tid"`
	NextRedirectPCURL     string `json:"next_redirect_pc_url"`
	NextRedirectMobileURL string `json:"next_redirect_mobile_url"`
}

func NewKakaoPay(cfg config.KakaoConfig, publicBaseURL string, client *http.Client) *KakaoPay {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &KakaoPay{
		cfg:           cfg,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		client:        client,
	}
}

func (k *KakaoPay) Name() string { return MethodKakao }

func (k *KakaoPay) SettlesOnPrepare() bool { return false }

func (k *KakaoPay) Prepare(ctx context.Context, req PrepareRequest) (*Intent, error) {
	if k.cfg.AdminKey == "" {
		return &Intent{
			PaymentID:         store.NewPaymentID(MethodKakao),
			OrderID:           req.OrderID,
			Method:            MethodKakao,
			Kind:              KindRedirect,
			RedirectURL:       k.cfg.QRLink,
			MobileRedirectURL: k.cfg.QRLink,
		}, nil
	}

	returnURL := func(outcome string) string {
		return fmt.Sprintf("%s/payment/%s/%s?orderId=%s", k.publicBaseURL, MethodKakao, outcome, url.QueryEscape(req.OrderID))
	}
	form := url.Values{}
	form.Set("cid", k.cfg.CID)
	form.Set("partner_order_id", req.OrderID)
	form.Set("partner_user_id", k.cfg.PartnerUserID)
	form.Set("item_name", req.DisplayName)
	form.Set("quantity", "1")
	form.Set("total_amount", strconv.FormatInt(req.Amount, 10))
	form.Set("tax_free_amount", "0")
	form.Set("approval_url", returnURL("success"))
	form.Set("cancel_url", returnURL("cancel"))
	form.Set("fail_url", returnURL("fail"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, k.cfg.ReadyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build kakao ready request: %w", err)
	}
	httpReq.Header.Set("Authorization", "KakaoAK "+k.cfg.AdminKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := k.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("kakao ready request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("kakao ready returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var ready kakaoReadyResponse
	if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
		return nil, fmt.Errorf("failed to decode kakao ready response: %w", err)
	}
	if ready.TID == "" {
		return nil, fmt.Errorf("kakao ready response has no tid")
	}

	return &Intent{
		PaymentID:         ready.TID,
		OrderID:           req.OrderID,
		Method:            MethodKakao,
		Kind:              KindRedirect,
		RedirectURL:       ready.NextRedirectPCURL,
		MobileRedirectURL: ready.NextRedirectMobileURL,
	}, nil
}
