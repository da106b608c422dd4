package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leelynne/gbusiness-httpsig/satispay"
)

func invokeCmd(load loader) *cobra.Command {
	var entityID, body, bodyFile string
	var query []string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "invoke <api>",
		Short: "Call a provider operation with the active credential",
		Long:  "Supported operations: " + apiList(),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			raw, err := readBodyArg(cmd.InOrStdin(), body, bodyFile)
			if err != nil {
				return err
			}
			q := url.Values{}
			for _, kv := range query {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("query %q: expected key=value", kv)
				}
				q.Add(k, v)
			}

			resp, err := satispay.NewClient(a.sess, a.transport, a.opts).Invoke(cmd.Context(), satispay.InvokeRequest{
				API:      satispay.API(args[0]),
				EntityID: entityID,
				Body:     raw,
				Query:    q,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status: %d\n", resp.StatusCode)
			var v any
			if pretty && json.Unmarshal(resp.Body, &v) == nil {
				p, _ := json.MarshalIndent(v, "", "  ")
				fmt.Fprintln(out, string(p))
				return nil
			}
			fmt.Fprintln(out, resp.Text())
			return nil
		},
	}
	cmd.Flags().StringVar(&entityID, "id", "", "payment id, authorization id or closure date (yyyyMMdd)")
	cmd.Flags().StringVar(&body, "body", "", "JSON object body")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "read the JSON body from a file, - for stdin")
	cmd.Flags().StringArrayVar(&query, "query", nil, "query parameter key=value, repeatable")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "indent JSON responses")
	return cmd
}

func readBodyArg(stdin io.Reader, body, file string) (json.RawMessage, error) {
	switch {
	case body != "" && file != "":
		return nil, fmt.Errorf("use either --body or --body-file")
	case body != "":
		return json.RawMessage(body), nil
	case file == "-":
		b, err := io.ReadAll(stdin)
		return b, err
	case file != "":
		return os.ReadFile(file)
	}
	return nil, nil
}

func apiList() string {
	names := make([]string, 0)
	for _, api := range satispay.APIs() {
		names = append(names, string(api))
	}
	return strings.Join(names, ", ")
}
