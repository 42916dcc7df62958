package lnurl

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lnurld/lnurld/lnnode"
)

// mockBackend is an in-memory Backend recording the node actions taken
// against it.
type mockBackend struct {
	mtx sync.Mutex

	uri      string
	invoices map[string]*lnnode.DecodedInvoice

	payErr error

	openedChannels []string
	paidInvoices   []string
}

var _ lnnode.Backend = (*mockBackend)(nil)

func newMockBackend() *mockBackend {
	return &mockBackend{
		uri:      "02aabb@127.0.0.1:9735",
		invoices: make(map[string]*lnnode.DecodedInvoice),
	}
}

func (m *mockBackend) addInvoice(invoice string, amountMsat int64) {
	m.invoices[invoice] = &lnnode.DecodedInvoice{
		AmountMsat:  lnwire.MilliSatoshi(amountMsat),
		PaymentHash: fmt.Sprintf("hash-%s", invoice),
	}
}

func (m *mockBackend) NodeURI(_ context.Context) (string, error) {
	return m.uri, nil
}

func (m *mockBackend) OpenChannel(_ context.Context, remoteID string,
	_, _ btcutil.Amount, _ bool) error {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.openedChannels = append(m.openedChannels, remoteID)
	return nil
}

func (m *mockBackend) PayInvoice(_ context.Context, invoice string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.payErr != nil {
		return m.payErr
	}
	m.paidInvoices = append(m.paidInvoices, invoice)
	return nil
}

func (m *mockBackend) DecodeInvoice(_ context.Context,
	invoice string) (*lnnode.DecodedInvoice, error) {

	decoded, ok := m.invoices[invoice]
	if !ok {
		return nil, fmt.Errorf("unknown invoice %q", invoice)
	}
	return decoded, nil
}

func (m *mockBackend) numPayments() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return len(m.paidInvoices)
}
