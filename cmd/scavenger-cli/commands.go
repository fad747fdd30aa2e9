package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"scavenger/cmd/internal/passphrase"
	"scavenger/core/types"
	"scavenger/crypto"
)

// passSource is replaced in tests.
var passSource = func(confirm bool) func() (string, error) {
	src := passphrase.NewSource(keyPassEnv)
	if confirm {
		src = src.WithConfirmation()
	}
	return src.Get
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", "./keys", "directory for the keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	pass, err := passSource(true)()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Error: generate key: %v\n", err)
		return 1
	}
	addr := addressOf(key)
	path := filepath.Join(*dir, crypto.KeyFileName(addr))
	if err := crypto.SaveToKeystore(path, key, pass); err != nil {
		fmt.Fprintf(stderr, "Error: save keystore: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "address: %s\nkeystore: %s\n", crypto.FormatAddress(addr), path)
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(stderr)
	keyFile := fs.String("key", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, code := loadKey(*keyFile, stderr)
	if key == nil {
		return code
	}
	fmt.Fprintln(stdout, crypto.FormatAddress(addressOf(key)))
	return 0
}

func runCall(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	fs.SetOutput(stderr)
	keyFile := fs.String("key", "", "keystore file of the signer")
	method := fs.String("method", "", "custody method, e.g. custody_submit")
	params := fs.String("params", "{}", "JSON parameter object")
	nonceFlag := fs.Int64("nonce", -1, "explicit nonce (default: fetched from the node)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*method) == "" {
		fmt.Fprintln(stderr, "Error: --method is required")
		return 1
	}
	// The signature covers the exact parameter bytes the node receives, and
	// the node receives them compacted.
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(*params)); err != nil {
		fmt.Fprintf(stderr, "Error: --params is not valid JSON: %v\n", err)
		return 1
	}
	key, code := loadKey(*keyFile, stderr)
	if key == nil {
		return code
	}
	addr := crypto.FormatAddress(addressOf(key))

	var head struct {
		ChainID string `json:"chainId"`
	}
	if err := queryInto("scavenger_head", nil, &head); err != nil {
		fmt.Fprintf(stderr, "Error: fetch head: %v\n", err)
		return 1
	}
	nonce := uint64(0)
	if *nonceFlag >= 0 {
		nonce = uint64(*nonceFlag)
	} else {
		var current struct {
			Nonce uint64 `json:"nonce"`
		}
		if err := queryInto("scavenger_nonce", map[string]string{"address": addr}, &current); err != nil {
			fmt.Fprintf(stderr, "Error: fetch nonce: %v\n", err)
			return 1
		}
		nonce = current.Nonce
	}

	call := &types.Call{
		ChainID: head.ChainID,
		Method:  strings.TrimSpace(*method),
		Params:  json.RawMessage(compact.Bytes()),
		Nonce:   nonce,
	}
	if err := call.Sign(key.PrivateKey); err != nil {
		fmt.Fprintf(stderr, "Error: sign call: %v\n", err)
		return 1
	}
	result, err := callRPC("scavenger_sendCall", call)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	writeRPCResult(stdout, result)
	return 0
}

func runQuery(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || len(args) > 2 {
		fmt.Fprintln(stderr, "Usage: scavenger-cli query METHOD [JSON]")
		return 1
	}
	var param interface{}
	if len(args) == 2 {
		raw := json.RawMessage(args[1])
		if !json.Valid(raw) {
			fmt.Fprintln(stderr, "Error: parameter is not valid JSON")
			return 1
		}
		param = raw
	}
	result, err := callRPC(args[0], param)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	writeRPCResult(stdout, result)
	return 0
}

func queryInto(method string, param interface{}, dst interface{}) error {
	result, err := callRPC(method, param)
	if err != nil {
		return err
	}
	return json.Unmarshal(result, dst)
}

func loadKey(path string, stderr io.Writer) (*crypto.PrivateKey, int) {
	if strings.TrimSpace(path) == "" {
		fmt.Fprintln(stderr, "Error: --key is required")
		return nil, 1
	}
	pass, err := passSource(false)()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 1
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		fmt.Fprintf(stderr, "Error: load key: %v\n", err)
		return nil, 1
	}
	return key, 0
}

func addressOf(key *crypto.PrivateKey) [20]byte {
	var addr [20]byte
	copy(addr[:], key.PubKey().Address().Bytes())
	return addr
}
