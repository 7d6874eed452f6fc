package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"vessellog/crypto"
)

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			if !confirmed {
				err := NewExitError(ExitCommandError, "refusing to clear the store without --yes")
				out.Error(err)
				return err
			}

			sess, err := rootOpts.openSession(cmd.Context(), cmd)
			if err != nil {
				out.Error(err)
				return err
			}
			defer sess.Close()

			if !sess.store.ClearAll(cmd.Context()) {
				err := NewExitError(ExitFailure, "messages were not cleared")
				out.Error(err)
				return err
			}

			return out.Success(map[string]bool{"cleared": true}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, "All messages cleared")
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm deleting every message")
	return cmd
}

// HealthResult is the JSON payload of the health command.
type HealthResult struct {
	Healthy  bool   `json:"healthy"`
	Database string `json:"database"`
	KeyID    string `json:"key_id"`
}

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the message store answers queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)

			sess, err := rootOpts.openSession(cmd.Context(), cmd)
			if err != nil {
				out.Error(err)
				return err
			}
			defer sess.Close()

			result := HealthResult{
				Healthy:  sess.store.HealthCheck(cmd.Context()),
				Database: sess.store.Path(),
				KeyID:    sess.cipher.KeyID(),
			}
			if !result.Healthy {
				err := NewExitError(ExitFailure, "message store is unreachable")
				out.Error(err)
				return err
			}

			return out.Success(result, func(w io.Writer) error {
				fmt.Fprintln(w, "Status:    ok")
				fmt.Fprintf(w, "Database:  %s\n", result.Database)
				_, err := fmt.Fprintf(w, "Key ID:    %s\n", result.KeyID)
				return err
			})
		},
	}
}

// KeygenResult is the JSON payload of the keygen command.
type KeygenResult struct {
	KeyID       string `json:"key_id"`
	Key         string `json:"key,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Path        string `json:"path,omitempty"`
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	var writePath string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new master key",
		Long: `Generate a new random master key.

Without --write the key is printed as base64, ready to be placed in the
environment variable or SSM parameter named by the config. With --write it is
stored as a PEM key file instead and never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)

			keyFile, err := crypto.GenerateKeyFile()
			if err != nil {
				err = WrapExitError(ExitCommandError, "failed to generate key", err)
				out.Error(err)
				return err
			}

			result := KeygenResult{
				KeyID:       keyFile.ID,
				Fingerprint: crypto.FormatFingerprint(crypto.KeyFingerprint(keyFile.Key)),
			}
			if writePath == "" {
				result.Key = crypto.EncodeMasterKey(keyFile.Key)
			} else {
				if _, err := os.Stat(writePath); !errors.Is(err, fs.ErrNotExist) {
					err := NewExitError(ExitCommandError, fmt.Sprintf("refusing to overwrite %s", writePath))
					out.Error(err)
					return err
				}
				if err := crypto.SaveKeyFile(writePath, keyFile); err != nil {
					err = WrapExitError(ExitCommandError, "failed to write key file", err)
					out.Error(err)
					return err
				}
				result.Path = writePath
			}

			return out.Success(result, func(w io.Writer) error {
				fmt.Fprintf(w, "Key ID:      %s\n", result.KeyID)
				fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)
				if result.Path != "" {
					_, err := fmt.Fprintf(w, "Written to:  %s\n", result.Path)
					return err
				}
				_, err := fmt.Fprintf(w, "Key:         %s\n", result.Key)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&writePath, "write", "", "write the key to this PEM file instead of printing it")
	return cmd
}
