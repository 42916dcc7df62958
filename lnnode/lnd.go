package lnnode

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/macaroons"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	macaroon "gopkg.in/macaroon.v2"
)

// LndConfig holds the connection parameters for an lnd backend.
type LndConfig struct {
	Host         string `long:"host" description:"lnd gRPC host:port"`
	TLSCertPath  string `long:"tlscertpath" description:"Path to lnd's tls.cert"`
	MacaroonPath string `long:"macaroonpath" description:"Path to an lnd macaroon with openchannel and payinvoice permissions"`
}

// LndBackend drives an lnd node over its gRPC interface.
type LndBackend struct {
	conn      *grpc.ClientConn
	client    lnrpc.LightningClient
	netParams *chaincfg.Params
}

// A compile time check to ensure LndBackend implements the Backend interface.
var _ Backend = (*LndBackend)(nil)

// NewLndBackend connects to the lnd node described by the given config.
func NewLndBackend(ctx context.Context, cfg *LndConfig,
	netParams *chaincfg.Params) (*LndBackend, error) {

	creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertPath, "")
	if err != nil {
		return nil, fmt.Errorf("unable to load lnd TLS cert: %w", err)
	}

	macBytes, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read macaroon: %w", err)
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("unable to decode macaroon: %w", err)
	}

	macCred, err := macaroons.NewMacaroonCredential(mac)
	if err != nil {
		return nil, fmt.Errorf("unable to create macaroon "+
			"credential: %w", err)
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macCred),
	}
	conn, err := grpc.DialContext(ctx, cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to dial lnd at %v: %w",
			cfg.Host, err)
	}

	log.Infof("Connected to lnd backend at %v", cfg.Host)

	return &LndBackend{
		conn:      conn,
		client:    lnrpc.NewLightningClient(conn),
		netParams: netParams,
	}, nil
}

// Close tears down the gRPC connection.
func (l *LndBackend) Close() error {
	return l.conn.Close()
}

// NodeURI returns the node's public URI.
//
// NOTE: Part of the Backend interface.
func (l *LndBackend) NodeURI(ctx context.Context) (string, error) {
	info, err := l.client.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return "", err
	}
	if len(info.Uris) > 0 {
		return info.Uris[0], nil
	}

	// A node without any advertised addresses still has a usable identity
	// key.
	return info.IdentityPubkey, nil
}

// OpenChannel opens a channel to the given node.
//
// NOTE: Part of the Backend interface.
func (l *LndBackend) OpenChannel(ctx context.Context, remoteID string,
	localAmt, pushAmt btcutil.Amount, private bool) error {

	nodePubKey, err := hex.DecodeString(remoteID)
	if err != nil {
		return fmt.Errorf("invalid remote node id: %w", err)
	}

	log.Infof("Opening channel to %v: local_amt=%v push_amt=%v "+
		"private=%v", remoteID, localAmt, pushAmt, private)

	_, err = l.client.OpenChannelSync(ctx, &lnrpc.OpenChannelRequest{
		NodePubkey:         nodePubKey,
		LocalFundingAmount: int64(localAmt),
		PushSat:            int64(pushAmt),
		Private:            private,
	})
	return err
}

// PayInvoice pays the given BOLT11 invoice.
//
// NOTE: Part of the Backend interface.
func (l *LndBackend) PayInvoice(ctx context.Context, invoice string) error {
	resp, err := l.client.SendPaymentSync(ctx, &lnrpc.SendRequest{
		PaymentRequest: invoice,
	})
	if err != nil {
		return err
	}
	if resp.PaymentError != "" {
		return errors.New(resp.PaymentError)
	}

	log.Infof("Paid invoice with hash %x", resp.PaymentHash)

	return nil
}

// DecodeInvoice decodes the given BOLT11 invoice.
//
// NOTE: Part of the Backend interface.
func (l *LndBackend) DecodeInvoice(_ context.Context,
	invoice string) (*DecodedInvoice, error) {

	return decodeInvoice(invoice, l.netParams)
}
