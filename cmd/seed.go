package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vaultpass/go-vaultpass-core/repository"
	"github.com/vaultpass/go-vaultpass-core/services"
	"github.com/vaultpass/go-vaultpass-core/types"
	"github.com/vaultpass/go-vaultpass-core/util"
)

var seedOutputFile string

func init() {
	seedGenerateCmd.Flags().StringVarP(&seedOutputFile, "output", "o", "", "output file (default is stdout)")
	seedCmd.AddCommand(seedGenerateCmd)
	seedCmd.AddCommand(seedRestoreCmd)
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed utilities",
	Long:  "Generate a new vault seed or restore one from its mnemonic word list",
}

func newKeyService() *services.KeyService {
	deviceKey, err := util.RandomBytes(util.KeySize)
	check(err)
	env := types.NewEnvironment(services.NewSoftwareDeviceKey(deviceKey))
	return services.NewKeyService(repository.NewStoreSelectorWithDefaults(), env)
}

var seedGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new seed",
	Long:  "Generate a new seed and print its mnemonic word list",
	Run: func(cmd *cobra.Command, args []string) {
		ks := newKeyService()
		seed, err := ks.GenerateSeed(nil)
		check(err)

		seedJson := map[string]interface{}{
			"seedHex": seed.SeedHex,
			"saltHex": seed.SaltHex,
			"words":   seed.Words,
		}
		fileBytes, err := json.MarshalIndent(seedJson, "", "  ")
		check(err)
		if seedOutputFile != "" {
			// fail if file already exists
			if _, err := os.Stat(seedOutputFile); !errors.Is(err, os.ErrNotExist) {
				fmt.Printf("File already exists: %s\n", seedOutputFile)
				os.Exit(1)
			}
			err = os.WriteFile(seedOutputFile, fileBytes, 0600)
			check(err)
			fmt.Printf("Output file: %s\n", seedOutputFile)
		} else {
			fmt.Printf("%s\n", fileBytes)
		}
	},
}

var seedRestoreCmd = &cobra.Command{
	Use:   "restore [words...]",
	Short: "Restore a seed from its mnemonic",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		words := args
		if len(args) == 1 {
			words = strings.Fields(args[0])
		}
		ks := newKeyService()
		seed, err := ks.RestoreSeed(words)
		check(err)
		fmt.Printf("seedHex: %s\nsaltHex: %s\n", seed.SeedHex, seed.SaltHex)
	},
}
