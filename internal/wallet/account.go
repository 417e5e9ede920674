// Package wallet manages the viewer's account key and signing utilities. The
// account address (checksummed hex) is the canonical identity compared
// against property owners and attributed to every submitted intent.
package wallet

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"propmarket.dapp/pmc/internal/types"
)

// Wallet represents the viewer's account
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// New creates a Wallet from a private key
func New(priv *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		privateKey: priv,
		address:    crypto.PubkeyToAddress(priv.PublicKey),
	}
}

// Address returns the checksummed account address.
// This is the canonical viewer identity.
func (w *Wallet) Address() string {
	return w.address.Hex()
}

// Sign signs the Keccak256 digest of message with the account key
func (w *Wallet) Sign(message []byte) ([]byte, error) {
	return crypto.Sign(crypto.Keccak256(message), w.privateKey)
}

// SignIntent encodes the intent and signs the encoding. The intent sender
// must be this wallet's account.
func (w *Wallet) SignIntent(in types.Intent) (*types.SignedIntent, error) {
	if in.Sender != w.Address() {
		return nil, fmt.Errorf("intent sender %s is not wallet account %s", in.Sender, w.Address())
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal intent: %w", err)
	}
	sig, err := w.Sign(raw)
	if err != nil {
		return nil, fmt.Errorf("sign intent: %w", err)
	}
	return &types.SignedIntent{Intent: raw, Signature: sig}, nil
}

// RecoverSigner returns the account address that produced sig over message.
func RecoverSigner(message, sig []byte) (string, error) {
	pub, err := crypto.SigToPub(crypto.Keccak256(message), sig)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// VerifyIntent decodes a signed intent and checks that it was signed by its
// declared sender.
func VerifyIntent(s *types.SignedIntent) (types.Intent, error) {
	in, err := s.Decode()
	if err != nil {
		return types.Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	signer, err := RecoverSigner(s.Intent, s.Signature)
	if err != nil {
		return types.Intent{}, fmt.Errorf("recover signer: %w", err)
	}
	if signer != in.Sender {
		return types.Intent{}, errors.New("signature does not match intent sender")
	}
	return in, nil
}

// IsAccount reports whether s is a well-formed, non-zero account address.
func IsAccount(s string) bool {
	if !common.IsHexAddress(s) {
		return false
	}
	return common.HexToAddress(s) != (common.Address{})
}
