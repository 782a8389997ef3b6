package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OrderType tags the workflow variant carried by an Order payload.
type OrderType string

const (
	OrderKYCPassed               OrderType = "KYCPassed"
	OrderQuoteRequestOffer       OrderType = "QuoteRequestOffer"
	OrderQuoteRequestNoOffer     OrderType = "QuoteRequestNoOffer"
	OrderLimitBuyOrderLocked     OrderType = "LimitBuyOrderLocked"
	OrderLimitBuyOrderNotLocked  OrderType = "LimitBuyOrderNotLocked"
	OrderLimitSellOrderLocked    OrderType = "LimitSellOrderLocked"
	OrderLimitSellOrderNotLocked OrderType = "LimitSellOrderNotLocked"
	OrderQuoteRequest            OrderType = "QuoteRequest"
	OrderLimitOrder              OrderType = "LimitOrder"
	OrderLiquidityOffer          OrderType = "LiquidityOffer"
	OrderFundAccount             OrderType = "FundAccount"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Order is the tagged trading workflow payload. Which fields are required
// depends on Type; see Validate.
type Order struct {
	Type            OrderType `json:"type"`
	Market          string    `json:"market,omitempty"`
	UUID            string    `json:"uuid,omitempty"`
	Side            Side      `json:"side,omitempty"`
	Amount          uint64    `json:"amount,omitempty"`
	Price           uint64    `json:"price,omitempty"`
	TargetAccountID string    `json:"target_account_id,omitempty"`
	Faucet          string    `json:"faucet,omitempty"`
}

type orderFields uint8

const (
	needMarket orderFields = 1 << iota
	needUUID
	needSide
	needAmount
	needPrice
	needTarget
)

var orderRequirements = map[OrderType]orderFields{
	OrderKYCPassed:               needMarket,
	OrderQuoteRequestOffer:       needMarket | needUUID | needSide | needAmount | needPrice,
	OrderQuoteRequestNoOffer:     needMarket | needUUID,
	OrderLimitBuyOrderLocked:     0,
	OrderLimitBuyOrderNotLocked:  0,
	OrderLimitSellOrderLocked:    0,
	OrderLimitSellOrderNotLocked: 0,
	OrderQuoteRequest:            needMarket | needUUID | needSide | needAmount,
	OrderLimitOrder:              needMarket | needUUID | needSide | needAmount | needPrice,
	OrderLiquidityOffer:          needMarket | needUUID | needAmount | needPrice,
	OrderFundAccount:             needTarget | needAmount,
}

// Validate checks the payload shape for its variant.
func (o Order) Validate() error {
	req, ok := orderRequirements[o.Type]
	if !ok {
		return Invalidf("unsupported order type %q", o.Type)
	}
	if o.UUID != "" {
		if _, err := uuid.Parse(o.UUID); err != nil {
			return Invalidf("order uuid %q is malformed", o.UUID)
		}
	}
	switch {
	case req&needMarket != 0 && o.Market == "":
		return Invalidf("%s requires market", o.Type)
	case req&needUUID != 0 && o.UUID == "":
		return Invalidf("%s requires uuid", o.Type)
	case req&needSide != 0 && !o.Side.Valid():
		return Invalidf("%s requires side BUY or SELL", o.Type)
	case req&needAmount != 0 && o.Amount == 0:
		return Invalidf("%s requires a positive amount", o.Type)
	case req&needPrice != 0 && o.Price == 0:
		return Invalidf("%s requires a positive price", o.Type)
	case req&needTarget != 0 && o.TargetAccountID == "":
		return Invalidf("%s requires target_account_id", o.Type)
	}
	return nil
}

var orderIDNamespace = uuid.MustParse("5b0c7a52-3f7e-4d8e-9a4c-2f1e6d0b7c91")

// DeriveID returns the order id: the payload uuid when present, otherwise a
// name-based uuid over the owning account and canonical payload so that a
// resubmitted payload always targets the same row.
func (o Order) DeriveID(accountID string) string {
	if o.UUID != "" {
		if id, err := uuid.Parse(o.UUID); err == nil {
			return id.String()
		}
		return o.UUID
	}
	canonical, _ := json.Marshal(o)
	name := append([]byte(accountID+"\x00"), canonical...)
	return uuid.NewSHA1(orderIDNamespace, name).String()
}

type OrderStage string

const (
	StageCreate OrderStage = "create"
	StageCommit OrderStage = "commit"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = ""
	StatusCreated   OrderStatus = "created"
	StatusCommitted OrderStatus = "committed"
	StatusFailed    OrderStatus = "failed"
)

func (s OrderStatus) Terminal() bool {
	return s == StatusCommitted || s == StatusFailed
}

// CanTransition reports whether an order may move from s to next. Statuses
// only move forward: pending → created → {committed, failed}.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusCreated || next.Terminal()
	case StatusCreated:
		return next.Terminal()
	}
	return false
}

// OrderRecord is the persisted row for an order. It is upserted by OrderID.
type OrderRecord struct {
	OrderID   string          `json:"order_id"`
	OrderType OrderType       `json:"order_type"`
	Payload   json.RawMessage `json:"payload"`
	Stage     OrderStage      `json:"stage"`
	Status    OrderStatus     `json:"status"`
	AccountID string          `json:"account_id"`
	Network   Network         `json:"network"`
	TxID      string          `json:"tx_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrderResult is returned from order creation.
type OrderResult struct {
	Order OrderRecord `json:"order"`
	Note  *Note       `json:"note,omitempty"`
}
