package payment

import (
	"context"
	"fmt"

	"photo-generator/internal/config"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

type TransactionRequest struct {
	Reference    string
	Amount       int64
	Email        string
	CustomerName string
	ItemID       string
	ItemName     string
}

type Transaction struct {
	Token       string
	RedirectURL string
}

type Gateway interface {
	CreateTransaction(ctx context.Context, req TransactionRequest) (Transaction, error)
}

// SnapGateway opens Midtrans Snap transactions.
type SnapGateway struct {
	client snap.Client
}

func NewSnapGateway(cfg config.MidtransConfig) *SnapGateway {
	env := midtrans.Sandbox
	if cfg.IsProduction {
		env = midtrans.Production
	}
	g := &SnapGateway{}
	g.client.New(cfg.ServerKey, env)
	return g
}

func (g *SnapGateway) CreateTransaction(_ context.Context, req TransactionRequest) (Transaction, error) {
	resp, merr := g.client.CreateTransaction(&snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.Reference,
			GrossAmt: req.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.Email,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    req.ItemID,
			Name:  req.ItemName,
			Price: req.Amount,
			Qty:   1,
		}},
	})
	if merr != nil {
		return Transaction{}, fmt.Errorf("snap create transaction: %v", merr)
	}
	return Transaction{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}
