package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/zynerotech/evalforward/app"
	"github.com/zynerotech/evalforward/forwarder"
)

func newSendCommand(g *globalArgs) *cobra.Command {
	var failOnError bool

	cmd := &cobra.Command{
		Use:   "send [file]",
		Short: "Forward one JSON document and print the result envelope",
		Long: `Reads a JSON document from file (or stdin when file is omitted or "-"),
forwards it once and prints the result envelope as JSON to stdout.
The exit status is 0 even for failure envelopes unless --fail-on-error is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}

			data, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}

			cfg, _, err := loadConfig(g.loadOptions())
			if err != nil {
				return err
			}

			application, err := app.NewForwarder(cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			var env forwarder.Envelope
			var input any
			if err := sonic.ConfigStd.Unmarshal(data, &input); err != nil {
				env = forwarder.Failure(&forwarder.Error{
					Kind: forwarder.KindEncode,
					Err:  fmt.Errorf("invalid input document: %w", err),
				})
			} else {
				env = application.Forwarder.Forward(cmd.Context(), input)
			}

			out, err := sonic.ConfigStd.MarshalIndent(env, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if failOnError && !env.Result.Success {
				return errForwardFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "exit with status 1 when the forward fails")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}
