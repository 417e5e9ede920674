// Package wallet handles loading, generating, and persisting the viewer's
// account key (secp256k1). It provides helpers to create and load key
// files, ensure secure permissions, and build a Wallet object used to
// resolve the active account and sign intents submitted to the ledger.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// LoadOrCreate loads an existing wallet or creates a new one from the
// given key path. This is the main entry point for account management.
//
// The function will:
// 1. Check if a key file exists at the given path
// 2. If it exists, load and validate the key
// 3. If it doesn't exist (or is empty), generate a new key and save it
// 4. Create a Wallet instance from the key
//
// The key file holds the hex-encoded private key and must have 0600
// permissions.
func LoadOrCreate(keyPath string) (*Wallet, error) {
	info, err := os.Stat(keyPath)
	if os.IsNotExist(err) {
		priv, err := generateAndSaveKey(keyPath)
		if err != nil {
			return nil, err
		}
		return New(priv), nil
	}
	if err != nil {
		return nil, err
	}

	if info.Size() == 0 {
		priv, err := generateAndSaveKey(keyPath)
		if err != nil {
			return nil, err
		}
		return New(priv), nil
	}

	priv, err := loadKey(keyPath)
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// Generate writes a fresh key to keyPath, replacing any existing file.
func Generate(keyPath string) (*Wallet, error) {
	priv, err := generateAndSaveKey(keyPath)
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

func generateAndSaveKey(keyPath string) (*ecdsa.PrivateKey, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "%x\n", crypto.FromECDSA(priv)); err != nil {
		return nil, err
	}

	return priv, nil
}

func loadKey(keyPath string) (*ecdsa.PrivateKey, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	hexKey := strings.TrimPrefix(strings.TrimSpace(string(keyData)), "0x")
	if hexKey == "" {
		return nil, errors.New("key file is empty")
	}

	priv, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key file: %w", err)
	}
	return priv, nil
}
