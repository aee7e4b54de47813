package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Layr-Labs/eigensdk-go/crypto/bls"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Agentopians/WeAi/pkg/common/crypto/signer"
)

// Generates local development keystores: a BLS and an ECDSA key per
// operator plus an ECDSA key for the aggregator.
func main() {
	keysDir := flag.String("dir", "./keys", "directory to write keystores to")
	operators := flag.Int("operators", 3, "number of operator key sets")
	password := flag.String("password", "testpassword", "keystore password")
	flag.Parse()

	if err := os.MkdirAll(*keysDir, 0755); err != nil {
		fmt.Printf("Failed to create keys directory: %v\n", err)
		os.Exit(1)
	}

	for i := 1; i <= *operators; i++ {
		name := fmt.Sprintf("operator%d", i)
		if err := generateBLSKey(*keysDir, name, *password); err != nil {
			fmt.Printf("Failed to generate BLS key for %s: %v\n", name, err)
			os.Exit(1)
		}
		if err := generateECDSAKey(*keysDir, name, *password); err != nil {
			fmt.Printf("Failed to generate ECDSA key for %s: %v\n", name, err)
			os.Exit(1)
		}
	}
	if err := generateECDSAKey(*keysDir, "aggregator", *password); err != nil {
		fmt.Printf("Failed to generate ECDSA key for aggregator: %v\n", err)
		os.Exit(1)
	}
}

func generateBLSKey(keysDir, name, password string) error {
	kp, err := bls.GenRandomBlsKeys()
	if err != nil {
		return fmt.Errorf("failed to generate BLS key: %w", err)
	}

	filename := filepath.Join(keysDir, name+".bls.key.json")
	if err := kp.SaveToFile(filename, password); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	s := signer.NewBLSSignerFromKeyPair(kp)
	defer s.Close()

	fmt.Printf("Generated BLS key for %s:\n", name)
	fmt.Printf("  Key file:    %s\n", filename)
	fmt.Printf("  Operator ID: %s\n\n", s.OperatorID().Hex())
	return nil
}

func generateECDSAKey(keysDir, name, password string) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	ks := keystore.NewKeyStore(keysDir, keystore.StandardScryptN, keystore.StandardScryptP)
	account, err := ks.ImportECDSA(key, password)
	if err != nil {
		return fmt.Errorf("failed to import key: %w", err)
	}

	filename := filepath.Join(keysDir, name+".ecdsa.key.json")
	if err := os.Rename(account.URL.Path, filename); err != nil {
		return fmt.Errorf("failed to rename keystore file: %w", err)
	}

	fmt.Printf("Generated ECDSA key for %s:\n", name)
	fmt.Printf("  Key file: %s\n", filename)
	fmt.Printf("  Address:  %s\n\n", account.Address.Hex())
	return nil
}
