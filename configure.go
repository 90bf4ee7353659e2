// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ImaSet/laptop-smart-power-manager/config"
	"github.com/ImaSet/laptop-smart-power-manager/credentials"
)

// defaultPlugModel is assumed when no model was configured. The P100 is the
// plug the manager was originally built around.
const defaultPlugModel = "P100"

var (
	flagPlugAddress  string
	flagPlugModel    string
	flagPlugUsername string
	flagPlugPassword string
	flagClearConfig  bool
	flagCheckConfig  bool
)

func init() {
	configCmd.Flags().StringVarP(&flagPlugAddress, "address", "a", "", "Set or update the smart plug IP address")
	configCmd.Flags().StringVarP(&flagPlugModel, "model", "m", "", "Set or update the smart plug model")
	configCmd.Flags().StringVarP(&flagPlugUsername, "username", "u", "", "Set or update the username associated with the smart plug")
	configCmd.Flags().StringVarP(&flagPlugPassword, "password", "p", "", "Set or update the password associated with the smart plug")
	configCmd.Flags().BoolVarP(&flagClearConfig, "clear", "c", false, "Clear the smart plug configuration")
	configCmd.Flags().BoolVar(&flagCheckConfig, "check", false, "Validate the configuration file and exit")
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure the smart plug connection",
	Long: `Configure the smart plug lspm drives.

The plug address and model are written to the configuration file; the
account credentials go to the system keyring. Without flags the command
walks through the configuration interactively.`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, _ []string) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}
	store := credentials.NewStore()

	switch {
	case flagCheckConfig:
		return checkConfiguration(cmd.OutOrStdout(), path)
	case flagClearConfig:
		return clearConfiguration(cmd.OutOrStdout(), store, path)
	case flagPlugAddress == "" && flagPlugModel == "" && flagPlugUsername == "" && flagPlugPassword == "":
		return configureInteractively(cmd, store, path)
	default:
		return applyConfigFlags(cmd.OutOrStdout(), store, path)
	}
}

// checkConfiguration validates the configuration file against the embedded
// schema and the struct constraints without modifying it.
func checkConfiguration(out io.Writer, path string) error {
	if err := config.ValidateWithSchema(path); err != nil {
		return err
	}
	if _, err := config.Load(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Configuration file %s is valid.\n", path)
	return nil
}

// applyConfigFlags updates only the pieces of the configuration named by
// flags, leaving the rest untouched.
func applyConfigFlags(out io.Writer, store *credentials.Store, path string) error {
	if flagPlugAddress != "" || flagPlugModel != "" {
		cfg := loadOrDefault(path)
		if flagPlugAddress != "" {
			cfg.Plug.Address = flagPlugAddress
		}
		if flagPlugModel != "" {
			cfg.Plug.Model = flagPlugModel
		}
		if cfg.Plug.Model == "" {
			cfg.Plug.Model = defaultPlugModel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
	}

	if flagPlugUsername != "" {
		if err := store.SetUsername(flagPlugUsername); err != nil {
			return err
		}
	}
	if flagPlugPassword != "" {
		if err := store.SetPassword(flagPlugPassword); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "Smart plug configuration updated.")
	return nil
}

// clearConfiguration removes the configuration file and the stored
// credentials. Clearing an empty configuration is not an error.
func clearConfiguration(out io.Writer, store *credentials.Store, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove config file: %w", err)
	}
	if err := store.Clear(); err != nil {
		return err
	}

	fmt.Fprintln(out, "Smart plug configuration cleared.")
	return nil
}

func configureInteractively(cmd *cobra.Command, store *credentials.Store, path string) error {
	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	if hasExistingConfiguration(store, path) {
		answer, err := promptLine(reader, out, "Found existing configuration. This operation will erase the previous configuration.\nDo you wish to continue? [y/n] ")
		if err != nil {
			return err
		}
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			fmt.Fprintln(out, "Operation aborted.")
			return nil
		}
	}

	address, err := promptLine(reader, out, "Enter the Smart Plug IP Address: ")
	if err != nil {
		return err
	}
	model, err := promptLine(reader, out, fmt.Sprintf("Enter the Smart Plug model [%s]: ", defaultPlugModel))
	if err != nil {
		return err
	}
	if model == "" {
		model = defaultPlugModel
	}
	username, err := promptLine(reader, out, "Enter a new username: ")
	if err != nil {
		return err
	}
	password, err := promptLine(reader, out, "Enter a new password: ")
	if err != nil {
		return err
	}
	if username == "" || password == "" {
		return errors.New("username and password must not be empty")
	}

	cfg := loadOrDefault(path)
	cfg.Plug.Address = address
	cfg.Plug.Model = model
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	if err := store.SetUsername(username); err != nil {
		return err
	}
	if err := store.SetPassword(password); err != nil {
		return err
	}

	fmt.Fprintln(out, "Smart plug configuration saved.")
	return nil
}

// loadOrDefault reads the configuration file, starting from defaults when
// the file is missing or unreadable so a first run can build it up.
func loadOrDefault(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: existing configuration not reused (%v)\n", err)
		}
		return config.Default()
	}
	return cfg
}

// hasExistingConfiguration reports whether a previous run left a config file
// or stored credentials behind.
func hasExistingConfiguration(store *credentials.Store, path string) bool {
	if _, err := os.Stat(path); err == nil {
		return true
	}
	_, err := store.Username()
	return err == nil
}

func promptLine(reader *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
