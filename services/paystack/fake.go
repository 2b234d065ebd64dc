package paystack

import (
	"context"
	"sync"

	"github.com/acadamier/backend/core/payment"
)

// FakeGateway is an in-memory payment.Gateway. Payments are pending until settled with SetStatus.
type FakeGateway struct {
	mu       sync.Mutex
	statuses map[string]string
	Inits    []payment.GatewayInit
	Verified []string
}

var _ payment.Gateway = (*FakeGateway)(nil)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{statuses: make(map[string]string)}
}

func (g *FakeGateway) Initialize(_ context.Context, init payment.GatewayInit) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Inits = append(g.Inits, init)
	g.statuses[init.Reference] = "pending"
	return "https://checkout.paystack.test/" + init.Reference, nil
}

func (g *FakeGateway) Verify(_ context.Context, reference string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Verified = append(g.Verified, reference)
	status, ok := g.statuses[reference]
	if !ok {
		return "failed", nil
	}
	return status, nil
}

func (g *FakeGateway) SetStatus(reference, status string) {
	g.mu.Lock()
	g.statuses[reference] = status
	g.mu.Unlock()
}
