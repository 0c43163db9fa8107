package main

import (
	"encoding/hex"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vulpemventures/dinghy/internal/config"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
	singlekey_provider "github.com/vulpemventures/dinghy/internal/infrastructure/key-provider/single-key"
	"github.com/vulpemventures/dinghy/pkg/wallet/mnemonic"
)

var (
	entropySize      int
	message          string
	messageAddress   string
	messageSignature string

	keysNewCmd = &cobra.Command{
		Use:   "new",
		Short: "generate a new mnemonic",
		Long: "this command generates a new random mnemonic and shows the " +
			"address of its key at the configured derivation path",
		Args: cobra.NoArgs,
		RunE: keysNew,
	}
	keysDeriveCmd = &cobra.Command{
		Use:   "derive",
		Short: "derive the address controlled by a credential",
		Long: "this command shows the address and public key of the WIF key or " +
			"mnemonic read from --credential-file (use - to read it from stdin)",
		Args: cobra.NoArgs,
		RunE: keysDerive,
	}
	keysSignMessageCmd = &cobra.Command{
		Use:   "sign-message",
		Short: "sign a message with a credential",
		Long: "this command signs --message with the key of the credential read " +
			"from --credential-file and shows the base64 signature",
		Args: cobra.NoArgs,
		RunE: keysSignMessage,
	}
	keysVerifyMessageCmd = &cobra.Command{
		Use:   "verify-message",
		Short: "verify the signature of a message",
		Long: "this command checks whether --signature is a signature of " +
			"--message made with the key controlling the P2PKH --address",
		Args: cobra.NoArgs,
		RunE: keysVerifyMessage,
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "manage credentials",
	}
)

func init() {
	keysNewCmd.Flags().IntVar(
		&entropySize, "entropy-size", mnemonic.Entropy12Words,
		"entropy size in bits, 128 for 12 words or 256 for 24 words",
	)
	keysDeriveCmd.Flags().StringVar(
		&credentialFile, "credential-file", "",
		"path of the file containing the WIF key or the mnemonic, - for stdin",
	)
	keysDeriveCmd.Flags().StringVar(
		&passphraseFile, "passphrase-file", "",
		"path of the file containing the optional mnemonic passphrase",
	)
	keysDeriveCmd.MarkFlagRequired("credential-file")

	keysSignMessageCmd.Flags().StringVar(
		&credentialFile, "credential-file", "",
		"path of the file containing the WIF key or the mnemonic, - for stdin",
	)
	keysSignMessageCmd.Flags().StringVar(
		&passphraseFile, "passphrase-file", "",
		"path of the file containing the optional mnemonic passphrase",
	)
	keysSignMessageCmd.Flags().StringVar(&message, "message", "", "message to sign")
	keysSignMessageCmd.MarkFlagRequired("credential-file")
	keysSignMessageCmd.MarkFlagRequired("message")

	keysVerifyMessageCmd.Flags().StringVar(
		&messageAddress, "address", "", "P2PKH address of the signer",
	)
	keysVerifyMessageCmd.Flags().StringVar(
		&messageSignature, "signature", "", "base64 signature of the message",
	)
	keysVerifyMessageCmd.Flags().StringVar(
		&message, "message", "", "message that has been signed",
	)
	keysVerifyMessageCmd.MarkFlagRequired("address")
	keysVerifyMessageCmd.MarkFlagRequired("signature")
	keysVerifyMessageCmd.MarkFlagRequired("message")

	keysCmd.AddCommand(
		keysNewCmd, keysDeriveCmd, keysSignMessageCmd, keysVerifyMessageCmd,
	)
}

func keysNew(cmd *cobra.Command, _ []string) error {
	words, err := mnemonic.Generate(entropySize)
	if err != nil {
		return err
	}
	credential, err := domain.NewCredential(strings.Join(words, " "), "")
	if err != nil {
		return err
	}

	kp, err := getKeyProvider()
	if err != nil {
		return err
	}
	address, err := kp.DeriveAddress(credential)
	if err != nil {
		return err
	}

	return printJSON(cmd, map[string]string{
		"mnemonic":        strings.Join(words, " "),
		"derivation_path": config.GetDerivationPath(),
		"address":         address,
	})
}

func keysDerive(cmd *cobra.Command, _ []string) error {
	credential, err := readCredential(cmd, credentialFile, passphraseFile)
	if err != nil {
		return err
	}

	kp, err := getKeyProvider()
	if err != nil {
		return err
	}
	address, err := kp.DeriveAddress(credential)
	if err != nil {
		return err
	}
	pubkey, err := kp.DerivePublicKey(credential)
	if err != nil {
		return err
	}

	return printJSON(cmd, map[string]string{
		"address":    address,
		"public_key": hex.EncodeToString(pubkey),
	})
}

func keysSignMessage(cmd *cobra.Command, _ []string) error {
	credential, err := readCredential(cmd, credentialFile, passphraseFile)
	if err != nil {
		return err
	}

	kp, err := getKeyProvider()
	if err != nil {
		return err
	}
	address, err := kp.DeriveAddress(credential)
	if err != nil {
		return err
	}
	signature, err := kp.SignMessage(message, credential)
	if err != nil {
		return err
	}

	return printJSON(cmd, map[string]string{
		"address":   address,
		"message":   message,
		"signature": signature,
	})
}

func keysVerifyMessage(cmd *cobra.Command, _ []string) error {
	kp, err := getKeyProvider()
	if err != nil {
		return err
	}
	valid, err := kp.VerifyMessage(messageAddress, messageSignature, message)
	if err != nil {
		return err
	}

	return printJSON(cmd, map[string]interface{}{
		"address": messageAddress,
		"valid":   valid,
	})
}

func getKeyProvider() (ports.KeyProvider, error) {
	return singlekey_provider.NewService(singlekey_provider.ServiceArgs{
		Network:        config.GetNetwork(),
		DerivationPath: config.GetString(config.DerivationPathKey),
	})
}
