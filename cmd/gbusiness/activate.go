package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leelynne/gbusiness-httpsig/satispay"
	"github.com/leelynne/gbusiness-httpsig/session"
)

func activateCmd(load loader) *cobra.Command {
	var envName string
	var check bool

	cmd := &cobra.Command{
		Use:   "activate <activation-code>",
		Short: "Generate a key pair and activate it with an activation code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if envName == "" {
				envName = a.cfg.Provider.Environment
			}
			env, err := session.ParseEnvironment(envName)
			if err != nil {
				return err
			}

			cred, err := satispay.NewActivator(a.sess, a.transport, a.opts).Activate(cmd.Context(), env, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "activated key %s on %s\n", cred.KeyID, cred.Environment)

			if check {
				resp, err := satispay.NewClient(a.sess, a.transport, a.opts).Invoke(cmd.Context(), satispay.InvokeRequest{API: satispay.TestAuthentication})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "signature test: status %d\n", resp.StatusCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envName, "env", "", "sandbox or production (default from config)")
	cmd.Flags().BoolVar(&check, "check", false, "call the signature test endpoint after activating")
	return cmd
}
