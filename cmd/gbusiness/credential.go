package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leelynne/gbusiness-httpsig/keyutil"
)

func credentialCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Inspect or clear the stored credential",
	}

	var asJWK bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the key id, environment and public key of the active credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			cred, err := a.sess.Credential()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJWK {
				jwk, err := keyutil.ReadJWKFromPEM([]byte(cred.KeyPair.PublicKey), cred.KeyID)
				if err != nil {
					return err
				}
				thumb, err := jwk.Thumbprint()
				if err != nil {
					return err
				}
				b, err := json.MarshalIndent(jwk, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(b))
				fmt.Fprintf(out, "thumbprint: %s\n", thumb)
				return nil
			}
			fmt.Fprintf(out, "key id:      %s\nenvironment: %s\n%s", cred.KeyID, cred.Environment, cred.KeyPair.PublicKey)
			return nil
		},
	}
	show.Flags().BoolVar(&asJWK, "jwk", false, "print the public key as a JWK")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credential cleared")
			return nil
		},
	}

	cmd.AddCommand(show, clearCmd)
	return cmd
}
