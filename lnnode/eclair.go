package lnnode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// EclairConfig holds the connection parameters for an eclair backend.
type EclairConfig struct {
	Host     string `long:"host" description:"eclair API host:port"`
	Password string `long:"password" description:"eclair API password"`
}

// EclairBackend drives an eclair node over its HTTP API.
type EclairBackend struct {
	host      string
	password  string
	client    *http.Client
	netParams *chaincfg.Params
}

// A compile time check to ensure EclairBackend implements the Backend
// interface.
var _ Backend = (*EclairBackend)(nil)

// NewEclairBackend creates a backend talking to the eclair node at the given
// host.
func NewEclairBackend(cfg *EclairConfig,
	netParams *chaincfg.Params) *EclairBackend {

	return &EclairBackend{
		host:      cfg.Host,
		password:  cfg.Password,
		client:    &http.Client{},
		netParams: netParams,
	}
}

// call performs a single form-encoded POST against the eclair API and
// unmarshals the JSON response into result, if non-nil.
func (e *EclairBackend) call(ctx context.Context, method string,
	form url.Values, result interface{}) error {

	endpoint := fmt.Sprintf("http://%s/%s", e.host, method)
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return err
	}

	// The eclair API uses basic auth with an empty user name.
	req.SetBasicAuth("", e.password)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("eclair api error: %s", apiErr.Error)
		}
		return fmt.Errorf("eclair api returned status %d",
			resp.StatusCode)
	}

	if result != nil {
		return json.Unmarshal(body, result)
	}
	return nil
}

// NodeURI returns the node's public URI.
//
// NOTE: Part of the Backend interface.
func (e *EclairBackend) NodeURI(ctx context.Context) (string, error) {
	var info struct {
		NodeID    string   `json:"nodeId"`
		Addresses []string `json:"publicAddresses"`
	}
	err := e.call(ctx, "getinfo", url.Values{}, &info)
	if err != nil {
		return "", err
	}

	if len(info.Addresses) > 0 {
		return fmt.Sprintf("%s@%s", info.NodeID, info.Addresses[0]), nil
	}
	return info.NodeID, nil
}

// OpenChannel opens a channel to the given node.
//
// NOTE: Part of the Backend interface.
func (e *EclairBackend) OpenChannel(ctx context.Context, remoteID string,
	localAmt, pushAmt btcutil.Amount, private bool) error {

	log.Infof("Opening channel to %v: local_amt=%v push_amt=%v "+
		"private=%v", remoteID, localAmt, pushAmt, private)

	form := url.Values{}
	form.Set("nodeId", remoteID)
	form.Set("fundingSatoshis", strconv.FormatInt(int64(localAmt), 10))
	form.Set("pushMsat", strconv.FormatInt(int64(pushAmt)*1000, 10))
	if private {
		// Channel flags with the announce-channel bit unset.
		form.Set("channelFlags", "0")
	}

	return e.call(ctx, "open", form, nil)
}

// PayInvoice pays the given BOLT11 invoice.
//
// NOTE: Part of the Backend interface.
func (e *EclairBackend) PayInvoice(ctx context.Context, invoice string) error {
	form := url.Values{}
	form.Set("invoice", invoice)

	return e.call(ctx, "payinvoice", form, nil)
}

// DecodeInvoice decodes the given BOLT11 invoice.
//
// NOTE: Part of the Backend interface.
func (e *EclairBackend) DecodeInvoice(_ context.Context,
	invoice string) (*DecodedInvoice, error) {

	return decodeInvoice(invoice, e.netParams)
}
