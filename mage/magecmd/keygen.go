package magecmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/TheusHen/mage/mage/config"
	"github.com/TheusHen/mage/mage/identity"
)

func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen <seed-file>",
		Short: "generates a seed, writes it to a file and prints the public key",
		Args:  cobra.ExactArgs(1),
	}
	force := cmd.Flags().BoolP("force", "f", false, "overwrite an existing seed file")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !*force {
			if _, err := identity.LoadSeedFile(path); err == nil {
				return errors.Errorf("%s already holds a seed, use --force to replace it", path)
			}
		}
		id, err := identity.Generate()
		if err != nil {
			return err
		}
		if err := identity.WriteSeedFile(path, id); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), id.PublicKey)
		return err
	}
	return cmd
}

func NewPubkeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pubkey <seed-file>",
		Short: "prints the public key and fingerprint derived from a seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.LoadSeedFile(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\nfingerprint %s\n", id.PublicKey, id.PublicKey.Fingerprint())
			return err
		},
	}
	return cmd
}

func NewCreateConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-config",
		Short: "prints a default config to stdout",
		Args:  cobra.NoArgs,
	}
	role := cmd.Flags().String("role", config.RoleClient, "client or server")
	remote := cmd.Flags().String("remote-key", "", "hex public key of the peer")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		cfg.Role = *role
		cfg.RemoteKey = *remote
		if err := cfg.Validate(); err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return cmd
}
