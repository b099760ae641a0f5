package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vaultpass/go-vaultpass-core/repository"
	"github.com/vaultpass/go-vaultpass-core/services"
)

var (
	backupMnemonic string
	backupPassword string
	backupOutFile  string
)

func init() {
	backupExportCmd.Flags().StringVarP(&backupMnemonic, "mnemonic", "m", "", "mnemonic word list of the vault seed")
	backupExportCmd.Flags().StringVarP(&backupPassword, "password", "p", "", "vault password")
	backupExportCmd.Flags().StringVarP(&backupOutFile, "output", "o", "", "output file (default is stdout)")
	backupCmd.AddCommand(backupInspectCmd)
	backupCmd.AddCommand(backupExportCmd)
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Backup utilities",
	Long:  "Inspect and export serialized vault backups",
}

var backupInspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Inspect a backup file",
	Long:  "Parse a backup file and print its schema version, origin and content counts",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		check(err)

		selector := repository.NewStoreSelectorWithDefaults()
		bs := services.NewBackupService(services.NewItemService(selector), newKeyService())
		backup, err := bs.Parse(data)
		check(err)

		fmt.Printf("schemaVersion: %d\n", backup.SchemaVersion)
		fmt.Printf("origin: %s %s (%s)\n", backup.Origin.OS, backup.Origin.AppVersionName, backup.Origin.DeviceName)
		fmt.Printf("encrypted: %t\n", backup.Encrypted())
		v := backup.Vault
		items := len(v.Items) + len(v.ItemsEnc)
		tags := len(v.Tags) + len(v.TagsEnc)
		deleted := len(v.DeletedItems) + len(v.DeletedEnc)
		fmt.Printf("vault %s: %d items, %d tags, %d deleted\n", v.ID, items, tags, deleted)
	},
}

var backupExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Decrypt a backup file",
	Long:  "Decrypt an encrypted backup with the vault mnemonic and password and write the plaintext document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if backupMnemonic == "" || backupPassword == "" {
			fmt.Println("both --mnemonic and --password are required")
			os.Exit(1)
		}
		data, err := os.ReadFile(args[0])
		check(err)

		selector := repository.NewStoreSelectorWithDefaults()
		ks := newKeyService()
		bs := services.NewBackupService(services.NewItemService(selector), ks)
		backup, err := bs.Parse(data)
		check(err)
		if !backup.Encrypted() {
			fmt.Println("backup is not encrypted")
			os.Exit(1)
		}

		seed, err := ks.RestoreSeed(strings.Fields(backupMnemonic))
		check(err)
		master, err := ks.DeriveMasterKey(backupPassword, seed, backup.Encryption.KdfSpec)
		check(err)
		keys, err := ks.DeriveVaultKeys(master.HashHex, backup.Vault.ID)
		check(err)
		vc := services.NewVaultCipher(keys, ks.DeviceKey())

		if err := bs.ValidateReference(vc, backup); err != nil {
			fmt.Println("wrong password or mnemonic")
			os.Exit(1)
		}
		plain, err := bs.DecryptBackup(vc, backup)
		check(err)
		out, err := bs.Serialize(plain)
		check(err)

		if backupOutFile != "" {
			check(os.WriteFile(backupOutFile, out, 0600))
			fmt.Printf("Output file: %s\n", backupOutFile)
		} else {
			fmt.Printf("%s\n", out)
		}
	},
}
