package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	bolt "github.com/rivine/bbolt"

	"github.com/raiblocks/walletcore/build"
	"github.com/raiblocks/walletcore/crypto"
	"github.com/raiblocks/walletcore/persist"
	"github.com/raiblocks/walletcore/wallet"
)

// exit codes, following sysexits.h conventions.
const (
	exitCodeGeneral = 1
	exitCodeUsage   = 64
)

// globalConfig holds the flags cobra fills in for every subcommand.
var globalConfig struct {
	WalletDir string
	Verbose   bool
}

func die(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(exitCodeGeneral)
}

func versionCmd(*cobra.Command, []string) {
	switch build.Release {
	case "dev":
		fmt.Println("walletd v" + build.Version + "-dev")
	case "testing":
		fmt.Println("walletd v" + build.Version + "-testing")
	default:
		fmt.Println("walletd v" + build.Version)
	}
}

// openDatabase opens the wallet store database under globalConfig.WalletDir,
// creating the directory and an empty database the first time it is
// called.
func openDatabase() (*persist.Database, error) {
	if err := os.MkdirAll(globalConfig.WalletDir, 0700); err != nil {
		return nil, err
	}
	md := persist.Metadata{Header: "walletcore store", Version: "1"}
	return persist.OpenDatabase(md, filepath.Join(globalConfig.WalletDir, "wallet.db"))
}

func openLogger() (*persist.Logger, error) {
	return persist.NewFileLogger(filepath.Join(globalConfig.WalletDir, "walletd.log"), globalConfig.Verbose)
}

func parseWalletID(s string) (wallet.WalletID, error) {
	var id wallet.WalletID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("walletd: %q is not a %d-byte hex wallet id", s, len(id))
	}
	copy(id[:], b)
	return id, nil
}

func parsePublicKey(s string) (crypto.PublicKey, error) {
	var pk crypto.PublicKey
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(pk) {
		return pk, fmt.Errorf("walletd: %q is not a %d-byte hex public key", s, len(pk))
	}
	copy(pk[:], b)
	return pk, nil
}

func createCmd(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		die("usage: walletd create [wallet-id] [representative]")
	}
	id, err := parseWalletID(args[0])
	if err != nil {
		die(err)
	}
	rep, err := parsePublicKey(args[1])
	if err != nil {
		die(err)
	}

	db, err := openDatabase()
	if err != nil {
		die(err)
	}
	defer db.Close()

	log, err := openLogger()
	if err != nil {
		die(err)
	}
	defer log.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := wallet.Create(tx, id, rep)
		return err
	})
	if err != nil {
		die(err)
	}
	log.Printf("created wallet %x with representative %x", id, rep)
	fmt.Printf("created wallet %x\n", id)
}

func newAccountCmd(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		die("usage: walletd new-account [wallet-id]")
	}
	id, err := parseWalletID(args[0])
	if err != nil {
		die(err)
	}

	db, err := openDatabase()
	if err != nil {
		die(err)
	}
	defer db.Close()

	var pub crypto.PublicKey
	err = db.Update(func(tx *bolt.Tx) error {
		s, err := wallet.Open(tx, id)
		if err != nil {
			return err
		}
		sk, pk := crypto.GenerateKeyPair()
		defer crypto.SecureWipe(sk[:])
		pub, err = s.Insert(tx, sk)
		return err
	})
	if err != nil {
		die(err)
	}
	fmt.Printf("%x\n", pub)
}

func accountsCmd(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		die("usage: walletd accounts [wallet-id]")
	}
	id, err := parseWalletID(args[0])
	if err != nil {
		die(err)
	}

	db, err := openDatabase()
	if err != nil {
		die(err)
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		s, err := wallet.Open(tx, id)
		if err != nil {
			return err
		}
		accounts, err := s.Accounts(tx)
		if err != nil {
			return err
		}
		for _, pub := range accounts {
			fmt.Printf("%x\n", pub)
		}
		return nil
	})
	if err != nil {
		die(err)
	}
}

func unlockCmd(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		die("usage: walletd unlock [wallet-id] [passphrase]")
	}
	id, err := parseWalletID(args[0])
	if err != nil {
		die(err)
	}

	db, err := openDatabase()
	if err != nil {
		die(err)
	}
	defer db.Close()

	var valid bool
	err = db.Update(func(tx *bolt.Tx) error {
		s, err := wallet.Open(tx, id)
		if err != nil {
			return err
		}
		if err := s.EnterPassword(tx, args[1]); err != nil {
			return err
		}
		valid, err = s.ValidPassword(tx)
		return err
	})
	if err != nil {
		die(err)
	}
	if !valid {
		die("incorrect passphrase")
	}
	fmt.Println("unlocked")
}

func exportCmd(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		die("usage: walletd export [wallet-id]")
	}
	id, err := parseWalletID(args[0])
	if err != nil {
		die(err)
	}

	db, err := openDatabase()
	if err != nil {
		die(err)
	}
	defer db.Close()

	var blob map[string]string
	err = db.View(func(tx *bolt.Tx) error {
		s, err := wallet.Open(tx, id)
		if err != nil {
			return err
		}
		blob, err = s.SerializeJSON(tx)
		return err
	})
	if err != nil {
		die(err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(blob); err != nil {
		die(err)
	}
}

func main() {
	root := &cobra.Command{
		Use:   os.Args[0],
		Short: "walletd v" + build.Version,
		Long:  "walletd manages encrypted wallet key stores and signs account actions.",
		Run:   versionCmd,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   versionCmd,
	})
	root.AddCommand(&cobra.Command{
		Use:   "create [wallet-id] [representative]",
		Short: "Create a new wallet sub-namespace",
		Run:   createCmd,
	})
	root.AddCommand(&cobra.Command{
		Use:   "new-account [wallet-id]",
		Short: "Generate and insert a new account keypair",
		Run:   newAccountCmd,
	})
	root.AddCommand(&cobra.Command{
		Use:   "accounts [wallet-id]",
		Short: "List every account held by a wallet",
		Run:   accountsCmd,
	})
	root.AddCommand(&cobra.Command{
		Use:   "unlock [wallet-id] [passphrase]",
		Short: "Enter a passphrase and report whether it unlocks the wallet",
		Run:   unlockCmd,
	})
	root.AddCommand(&cobra.Command{
		Use:   "export [wallet-id]",
		Short: "Export a wallet's entries as JSON",
		Run:   exportCmd,
	})

	home, _ := os.UserHomeDir()
	root.PersistentFlags().StringVarP(&globalConfig.WalletDir, "wallet-directory", "d", filepath.Join(home, ".walletcore"), "location of the wallet database and log")
	root.PersistentFlags().BoolVarP(&globalConfig.Verbose, "verbose", "v", false, "enable verbose logging")

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeUsage)
	}
}
