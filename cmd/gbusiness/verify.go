package main

import (
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpsig "github.com/leelynne/gbusiness-httpsig"
	"github.com/leelynne/gbusiness-httpsig/internal/logger"
	"github.com/leelynne/gbusiness-httpsig/keyman"
	"github.com/leelynne/gbusiness-httpsig/session"
)

func verifyCmd(load loader) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run a server that verifies requests signed with the active credential",
		Long:  "Useful as the target of the signing proxy: every request is verified and the result echoed back.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			handler, err := newVerifyHandler(a.sess, a.log.With(logger.Component("verify")))
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, a, srv)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":3211", "listen address")
	return cmd
}

// newVerifyHandler verifies every request against the public key of the active credential.
func newVerifyHandler(sess *session.Session, log *zap.Logger) (http.Handler, error) {
	cred, err := sess.Credential()
	if err != nil {
		return nil, err
	}
	kf := keyman.NewKeyFetchInMemory(nil)
	if err := kf.RegisterPEM(cred.KeyID, cred.KeyPair.PublicKey); err != nil {
		return nil, err
	}
	verifier, err := httpsig.NewVerifier(kf, httpsig.DefaultVerifyProfile)
	if err != nil {
		return nil, err
	}

	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		res, err := verifier.Verify(r)
		if err != nil {
			log.Info("verification failed", logger.Path(r.URL.Path), logger.Err(err))
			http.Error(rw, string(httpsig.CodeOf(err))+": "+err.Error(), http.StatusUnauthorized)
			return
		}
		log.Info("verified", logger.Path(r.URL.Path), logger.KeyID(res.KeyID))
		rw.Write([]byte("Success! keyId=" + res.KeyID + "\n"))
	}), nil
}
