package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/Amr-9/keyhunter/pkg/generator"
	"github.com/Amr-9/keyhunter/pkg/generator/ethereum"
	"github.com/Amr-9/keyhunter/pkg/generator/tron"
)

func (a *app) keygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a secret and the seed public key to search with.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}

			a.out.Warn("Keep the secret private; every key printed by a search is an offset to it.")
			a.out.Println("Secret:  %s", hex.EncodeToString(crypto.FromECDSA(key)))
			a.out.Println("Seed:    %s", hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey)[1:]))
			a.out.Println("Address: %s", crypto.PubkeyToAddress(key.PublicKey).Hex())
			return nil
		},
	}
}

func (a *app) verifyCommand() *cobra.Command {
	var secret, offset string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Combine a secret with a found key and print the resulting address.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := generator.ParseTarget(a.settings.Target)
			if err != nil {
				return err
			}
			format, err := generator.ParseFormat(a.settings.Format)
			if err != nil {
				return err
			}

			priv, address, err := verifyKey(secret, offset, target, format)
			if err != nil {
				return err
			}
			a.out.Println("Private Key: %s", priv)
			a.out.Println("%s: %s", target, address)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Secret matching the seed public key (64 hex characters)")
	cmd.Flags().StringVar(&offset, "key", "", "Key printed by the search (64 hex characters)")
	_ = cmd.MarkFlagRequired("secret")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

// verifyKey computes secret + offset mod n and the identifier it controls.
func verifyKey(secretHex, offsetHex string, target generator.Target, format generator.Format) (string, string, error) {
	secret, err := parseScalar(secretHex)
	if err != nil {
		return "", "", fmt.Errorf("secret: %w", err)
	}
	offset, err := parseScalar(offsetHex)
	if err != nil {
		return "", "", fmt.Errorf("key: %w", err)
	}

	var sum btcec.ModNScalar
	sum.Add2(&secret, &offset)
	if sum.IsZero() {
		return "", "", errors.New("secret + key is zero")
	}
	b := sum.Bytes()
	priv, _ := btcec.PrivKeyFromBytes(b[:])

	var p btcec.JacobianPoint
	priv.PubKey().AsJacobian(&p)
	hash := ethereum.PublicKeyHash(&p)
	if target == generator.Contract {
		hash = ethereum.ContractAddress(hash, 0)
	}

	var address string
	switch format {
	case generator.Tron:
		address = tron.AddressFromHash(hash)
	default:
		address = ethereum.ChecksumAddress(hash)
	}
	return hex.EncodeToString(b[:]), address, nil
}

// parseScalar reads up to 64 hex characters and reduces them mod n.
func parseScalar(s string) (btcec.ModNScalar, error) {
	var v btcec.ModNScalar
	s = strings.TrimPrefix(s, "0x")
	if s == "" || len(s) > 64 {
		return v, fmt.Errorf("want 1 to 64 hex characters, got %d", len(s))
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return v, err
	}
	v.SetByteSlice(raw)
	return v, nil
}
