package main

import (
	"errors"

	"github.com/spf13/cobra"
)

// errForwardFailed is returned by send --fail-on-error when the envelope reports a failure.
var errForwardFailed = errors.New("forward failed")

// globalArgs значения флагов корневой команды, общие для всех подкоманд
type globalArgs struct {
	configPath string
	envFiles   []string
	backendURL string
	raw        bool
	logLevel   string
}

func (g *globalArgs) loadOptions() loadOptions {
	return loadOptions{
		configPath: g.configPath,
		envFiles:   g.envFiles,
		backendURL: g.backendURL,
		raw:        g.raw,
		logLevel:   g.logLevel,
	}
}

// newRootCommand собирает дерево команд
func newRootCommand() *cobra.Command {
	args := &globalArgs{}

	root := &cobra.Command{
		Use:   "evalforward",
		Short: "Forward evaluation results to the visualization backend",
		Long: `evalforward relays evaluation results produced by a workflow step to the
visualization backend (POST {backend_url}/api/save-evaluation) and reports the
outcome as {"result": {"success", "message", "details"}}.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&args.configPath, "config", "c", "", "path to the config file (default configs/$APP_ENV.yaml, optional)")
	flags.StringSliceVar(&args.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config; missing files are skipped")
	flags.StringVar(&args.backendURL, "backend-url", "", "backend base URL, overrides APP_FORWARDER_BACKEND_URL and "+LegacyBackendURLEnv)
	flags.BoolVar(&args.raw, "raw", false, "never unwrap the arg1 key; forward the input as-is")
	flags.StringVar(&args.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newSendCommand(args),
		newServeCommand(args),
		newPluginCommand(args),
		newVersionCommand(),
	)
	return root
}
