package main

import (
	"net/http"
	"os/signal"
	"syscall"

	"github.com/elazarl/goproxy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpsig "github.com/leelynne/gbusiness-httpsig"
	"github.com/leelynne/gbusiness-httpsig/internal/logger"
	"github.com/leelynne/gbusiness-httpsig/session"
)

func proxyCmd(load loader) *cobra.Command {
	var addr string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run a forward proxy that signs every plain HTTP request with the active credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if addr == "" {
				addr = a.cfg.Proxy.Addr
			}

			proxy := newSigningProxy(a.sess, a.log.With(logger.Component("proxy")))
			proxy.Verbose = verbose || a.cfg.Proxy.Verbose
			srv := &http.Server{Addr: addr, Handler: proxy}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, a, srv)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log every proxied request")
	return cmd
}

// newSigningProxy signs requests with the credential active at the time each request passes through.
// Requests are rejected with 401 when no credential is active.
func newSigningProxy(sess *session.Session, log *zap.Logger) *goproxy.ProxyHttpServer {
	proxy := goproxy.NewProxyHttpServer()
	proxy.OnRequest().DoFunc(
		func(r *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
			cred, err := sess.Credential()
			if err != nil {
				return r, goproxy.NewResponse(r, goproxy.ContentTypeText, http.StatusUnauthorized, "no active credential\n")
			}
			signer, err := cred.Signer()
			if err == nil {
				err = signer.Sign(r)
			}
			if err != nil {
				log.Warn("signing failed", logger.URL(r.URL.Redacted()), logger.Err(err))
				status := http.StatusBadGateway
				if httpsig.IsCode(err, httpsig.ErrUnsupportedBody) {
					status = http.StatusBadRequest
				}
				return r, goproxy.NewResponse(r, goproxy.ContentTypeText, status, string(httpsig.CodeOf(err))+"\n")
			}
			ctx.Logf("Authorization: %s", r.Header.Get("Authorization"))
			ctx.Logf("Digest: %s", r.Header.Get("Digest"))
			ctx.Logf("target-uri: %s", r.RequestURI)
			log.Debug("signed", logger.Method(r.Method), logger.URL(r.URL.Redacted()), logger.KeyID(cred.KeyID))
			return r, nil
		})
	return proxy
}
