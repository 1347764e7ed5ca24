package main

import (
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmetk3436/markops/internal/probe"
)

func newProbeCmd() *cobra.Command {
	var (
		timeout    time.Duration
		tlsTimeout time.Duration
		withTLS    bool
		noFollow   bool
	)
	cmd := &cobra.Command{
		Use:   "probe URL",
		Short: "Probe a single URL once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := struct {
				HTTP probe.Result      `json:"http"`
				TLS  *probe.CertResult `json:"tls,omitempty"`
			}{}
			var opts []probe.HTTPOption
			if noFollow {
				opts = append(opts, probe.WithoutRedirects())
			}
			out.HTTP = probe.NewHTTPProber(timeout, opts...).Probe(cmd.Context(), args[0])
			if withTLS {
				if u, err := url.Parse(args[0]); err == nil && u.Hostname() != "" {
					cert := probe.NewTLSProber(tlsTimeout).Probe(cmd.Context(), u.Hostname())
					out.TLS = &cert
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", probe.DefaultHTTPTimeout, "HTTP probe timeout")
	cmd.Flags().DurationVar(&tlsTimeout, "tls-timeout", probe.DefaultTLSTimeout, "TLS handshake timeout")
	cmd.Flags().BoolVar(&withTLS, "tls", false, "Also inspect the certificate on port 443")
	cmd.Flags().BoolVar(&noFollow, "no-redirects", false, "Report 301/302 instead of following them")
	return cmd
}
