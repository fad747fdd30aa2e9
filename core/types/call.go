package types

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"
)

var (
	ErrMissingMethod    = errors.New("call: method must not be empty")
	ErrMissingSignature = errors.New("call: signature missing")
)

// Call is a signed request to run one custody operation. The signer is
// recovered from the signature; Nonce must equal the signer's next nonce and
// ChainID must match the network the runtime was started with.
type Call struct {
	ChainID   string          `json:"chainId"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	Nonce     uint64          `json:"nonce"`
	Signature hexutil.Bytes   `json:"signature,omitempty"`

	from *[20]byte
}

type callPayload struct {
	ChainID string
	Method  string
	Params  []byte
	Nonce   uint64
}

// Hash returns the blake3 digest of the RLP encoded call without its
// signature.
func (c *Call) Hash() ([]byte, error) {
	if strings.TrimSpace(c.Method) == "" {
		return nil, ErrMissingMethod
	}
	encoded, err := rlp.EncodeToBytes(callPayload{
		ChainID: c.ChainID,
		Method:  c.Method,
		Params:  []byte(c.Params),
		Nonce:   c.Nonce,
	})
	if err != nil {
		return nil, err
	}
	sum := blake3.Sum256(encoded)
	return sum[:], nil
}

// Sign attaches a recoverable secp256k1 signature produced by privKey.
func (c *Call) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := c.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	c.Signature = sig
	c.from = nil
	return nil
}

// From recovers the address that signed the call.
func (c *Call) From() ([20]byte, error) {
	if c.from != nil {
		return *c.from, nil
	}
	var out [20]byte
	if len(c.Signature) != crypto.SignatureLength {
		return out, ErrMissingSignature
	}
	hash, err := c.Hash()
	if err != nil {
		return out, err
	}
	pubKey, err := crypto.SigToPub(hash, c.Signature)
	if err != nil {
		return out, err
	}
	copy(out[:], crypto.PubkeyToAddress(*pubKey).Bytes())
	c.from = &out
	return out, nil
}

// ID is the hex form of the call hash.
func (c *Call) ID() string {
	hash, err := c.Hash()
	if err != nil {
		return ""
	}
	return hexutil.Encode(hash)
}

// Receipt reports the outcome of a committed call.
type Receipt struct {
	CallID string          `json:"callId"`
	Method string          `json:"method"`
	Signer string          `json:"signer"`
	Height uint64          `json:"height"`
	Root   string          `json:"stateRoot"`
	Result json.RawMessage `json:"result,omitempty"`
	Events []Event         `json:"events"`
}
