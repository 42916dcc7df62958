package lnnode

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// ClightningConfig holds the connection parameters for a c-lightning backend.
type ClightningConfig struct {
	RPCSocket string `long:"rpcsocket" description:"Path to c-lightning's lightning-rpc unix socket"`
}

// ClightningBackend drives a c-lightning node over its JSON-RPC unix socket.
// Each call uses its own connection; c-lightning handles any number of
// short-lived RPC clients.
type ClightningBackend struct {
	socketPath string
	netParams  *chaincfg.Params
	nextID     uint64
}

// A compile time check to ensure ClightningBackend implements the Backend
// interface.
var _ Backend = (*ClightningBackend)(nil)

// NewClightningBackend creates a backend talking to the c-lightning node
// behind the given unix socket.
func NewClightningBackend(cfg *ClightningConfig,
	netParams *chaincfg.Params) *ClightningBackend {

	return &ClightningBackend{
		socketPath: cfg.RPCSocket,
		netParams:  netParams,
	}
}

// rpcError is the error member of a JSON-RPC 2.0 response.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("c-lightning rpc error %d: %s", e.Code, e.Message)
}

// call performs a single JSON-RPC 2.0 request against the node's unix socket
// and unmarshals the result member into result, if non-nil.
func (c *ClightningBackend) call(ctx context.Context, method string,
	params, result interface{}) error {

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("unable to dial c-lightning socket: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	request := struct {
		Jsonrpc string      `json:"jsonrpc"`
		ID      uint64      `json:"id"`
		Method  string      `json:"method"`
		Params  interface{} `json:"params"`
	}{
		Jsonrpc: "2.0",
		ID:      atomic.AddUint64(&c.nextID, 1),
		Method:  method,
		Params:  params,
	}
	if err := json.NewEncoder(conn).Encode(&request); err != nil {
		return err
	}

	var response struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return err
	}
	if response.Error != nil {
		return response.Error
	}
	if result != nil {
		return json.Unmarshal(response.Result, result)
	}
	return nil
}

// NodeURI returns the node's public URI.
//
// NOTE: Part of the Backend interface.
func (c *ClightningBackend) NodeURI(ctx context.Context) (string, error) {
	var info struct {
		ID      string `json:"id"`
		Address []struct {
			Address string `json:"address"`
			Port    int    `json:"port"`
		} `json:"address"`
	}
	err := c.call(ctx, "getinfo", map[string]interface{}{}, &info)
	if err != nil {
		return "", err
	}

	if len(info.Address) > 0 {
		addr := info.Address[0]
		return fmt.Sprintf("%s@%s:%d", info.ID, addr.Address,
			addr.Port), nil
	}
	return info.ID, nil
}

// OpenChannel opens a channel to the given node.
//
// NOTE: Part of the Backend interface.
func (c *ClightningBackend) OpenChannel(ctx context.Context, remoteID string,
	localAmt, pushAmt btcutil.Amount, private bool) error {

	log.Infof("Opening channel to %v: local_amt=%v push_amt=%v "+
		"private=%v", remoteID, localAmt, pushAmt, private)

	return c.call(ctx, "fundchannel", map[string]interface{}{
		"id":        remoteID,
		"amount":    int64(localAmt),
		"push_msat": int64(pushAmt) * 1000,
		"announce":  !private,
	}, nil)
}

// PayInvoice pays the given BOLT11 invoice.
//
// NOTE: Part of the Backend interface.
func (c *ClightningBackend) PayInvoice(ctx context.Context,
	invoice string) error {

	return c.call(ctx, "pay", map[string]interface{}{
		"bolt11": invoice,
	}, nil)
}

// DecodeInvoice decodes the given BOLT11 invoice.
//
// NOTE: Part of the Backend interface.
func (c *ClightningBackend) DecodeInvoice(_ context.Context,
	invoice string) (*DecodedInvoice, error) {

	return decodeInvoice(invoice, c.netParams)
}
