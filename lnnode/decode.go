package lnnode

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
)

// decodeInvoice decodes a BOLT11 invoice in-process. Decoding is a pure
// function of the invoice string, so all backends share this implementation
// rather than round-tripping to the node.
func decodeInvoice(invoice string,
	netParams *chaincfg.Params) (*DecodedInvoice, error) {

	payReq, err := zpay32.Decode(invoice, netParams)
	if err != nil {
		return nil, err
	}

	var amount lnwire.MilliSatoshi
	if payReq.MilliSat != nil {
		amount = *payReq.MilliSat
	}

	var description string
	if payReq.Description != nil {
		description = *payReq.Description
	}

	return &DecodedInvoice{
		AmountMsat:  amount,
		PaymentHash: hex.EncodeToString(payReq.PaymentHash[:]),
		Description: description,
	}, nil
}
