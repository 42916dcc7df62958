package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/urfave/cli"

	"github.com/lnurld/lnurld/lnauth"
	"github.com/lnurld/lnurld/lnurl"
)

func printJSON(resp interface{}) error {
	out, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

var generateAPIKeyCommand = cli.Command{
	Name:  "generateapikey",
	Usage: "Generate a new API key for signing LNURL creation requests.",
	Description: `
	Generates a random API key and prints it. Add the printed id:hexkey
	string to the server's configuration as an --apikey option to
	authorize requests signed with it.`,
	Action: generateAPIKey,
}

func generateAPIKey(_ *cli.Context) error {
	apiKey, err := lnauth.GenerateAPIKey()
	if err != nil {
		return err
	}

	return printJSON(struct {
		ID     string `json:"id"`
		Key    string `json:"key"`
		Joined string `json:"apikey"`
	}{
		ID:     apiKey.ID,
		Key:    hex.EncodeToString(apiKey.Key),
		Joined: apiKey.String(),
	})
}

var generateNewURLCommand = cli.Command{
	Name:  "generatenewurl",
	Usage: "Build a signed LNURL creation request URL.",
	Description: `
	Builds a URL carrying an API-key signed creation request for the given
	subprotocol tag. Resolving the URL against the server mints a new
	secret and returns the subprotocol's info response. The URL is printed
	both raw and bech32 encoded, optionally with a QR code PNG.

	Subprotocol parameters are passed as repeated --param options, e.g.:

	lnurlcli generatenewurl --apikey <id:hexkey> \
	    --url https://example.com/lnurl --tag withdrawRequest \
	    --param minWithdrawable=1000 --param maxWithdrawable=5000 \
	    --param defaultDescription=""`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "apikey",
			Usage: "the API key to sign with, in id:hexkey form",
		},
		cli.StringFlag{
			Name:  "url",
			Usage: "the server's externally visible endpoint URL",
		},
		cli.StringFlag{
			Name:  "tag",
			Usage: "the subprotocol tag, e.g. withdrawRequest",
		},
		cli.StringSliceFlag{
			Name:  "param",
			Usage: "a subprotocol parameter in key=value form",
		},
		cli.StringFlag{
			Name:  "qr",
			Usage: "write a QR code PNG of the encoded LNURL to this file",
		},
	},
	Action: generateNewURL,
}

func generateNewURL(ctx *cli.Context) error {
	apiKey, err := lnauth.ParseAPIKey(ctx.String("apikey"))
	if err != nil {
		return err
	}

	baseURL := ctx.String("url")
	tag := ctx.String("tag")
	if baseURL == "" || tag == "" {
		return fmt.Errorf("both --url and --tag are required")
	}

	nonce := make([]byte, 10)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}

	params := map[string]string{
		"tag": tag,
		"n":   hex.EncodeToString(nonce),
		"t":   strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	for _, pair := range ctx.StringSlice("param") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("malformed --param %q, expected "+
				"key=value", pair)
		}
		params[parts[0]] = parts[1]
	}

	params["s"] = lnauth.SignQuery(apiKey, params)

	query := url.Values{}
	for key, value := range params {
		query.Set(key, value)
	}

	separator := "?"
	if strings.Contains(baseURL, "?") {
		separator = "&"
	}
	signedURL := baseURL + separator + query.Encode()

	encoded, err := lnurl.Encode(signedURL)
	if err != nil {
		return err
	}

	if qrFile := ctx.String("qr"); qrFile != "" {
		err := qrcode.WriteFile(encoded, qrcode.Medium, 256, qrFile)
		if err != nil {
			return err
		}
	}

	return printJSON(struct {
		URL     string `json:"url"`
		Encoded string `json:"encoded"`
	}{
		URL:     signedURL,
		Encoded: encoded,
	})
}

var encodeCommand = cli.Command{
	Name:      "encode",
	Usage:     "Encode a URL into its bech32 LNURL form.",
	ArgsUsage: "url",
	Action:    encodeURL,
}

func encodeURL(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one url argument")
	}

	encoded, err := lnurl.Encode(ctx.Args().First())
	if err != nil {
		return err
	}
	fmt.Println(encoded)
	return nil
}

var decodeCommand = cli.Command{
	Name:      "decode",
	Usage:     "Decode a bech32 LNURL back into the URL it wraps.",
	ArgsUsage: "lnurl",
	Action:    decodeLNURL,
}

func decodeLNURL(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one lnurl argument")
	}

	decoded, err := lnurl.Decode(ctx.Args().First())
	if err != nil {
		return err
	}
	fmt.Println(decoded)
	return nil
}
