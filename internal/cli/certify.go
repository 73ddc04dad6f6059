package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tillerhq/tiller/internal/certify"
	"github.com/tillerhq/tiller/internal/config"
)

var (
	certifySuite     string
	certifySuiteFile string
	certifyFormat    string
	certifyBaseline  string
	certifySave      bool
)

func init() {
	rootCmd.AddCommand(certifyCmd)
	certifyCmd.Flags().StringVar(&certifySuite, "suite", "core", "Built-in certification suite")
	certifyCmd.Flags().StringVar(&certifySuiteFile, "suite-file", "", "Path to a suite YAML (overrides --suite)")
	certifyCmd.Flags().StringVarP(&certifyFormat, "format", "f", "text", "Output format (text|json)")
	certifyCmd.Flags().StringVar(&certifyBaseline, "baseline", "", "Baseline JSON to compare against (regression check)")
	certifyCmd.Flags().BoolVar(&certifySave, "save-baseline", false, "Write the run's baseline to the --baseline path")
}

var certifyCmd = &cobra.Command{
	Use:   "certify",
	Short: "Run governance scenarios against the configured policy",
	Long: "Runs a battery of synthetic governance scenarios against the active\n" +
		"config and reports pass/fail per category. With --baseline, also\n" +
		"fails when a previously passing case regresses.\n\n" +
		"Built-in suites: " + fmt.Sprintf("%v", certify.ListSuites()),
	RunE: runCertify,
}

func runCertify(cmd *cobra.Command, args []string) error {
	var suite *certify.Suite
	var err error
	if certifySuiteFile != "" {
		suite, err = certify.LoadSuiteFile(certifySuiteFile)
	} else {
		suite, err = certify.LoadSuite(certifySuite)
	}
	if err != nil {
		return err
	}

	cfg, hash, err := config.LoadWithHash(configPath)
	if err != nil {
		return err
	}

	result := certify.Run(cfg, hash, suite)

	switch certifyFormat {
	case "json":
		out, err := certify.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(certify.FormatText(result))
	}

	if certifyBaseline != "" && !certifySave {
		base, err := certify.LoadBaseline(certifyBaseline)
		if err != nil {
			return err
		}
		if err := certify.CheckRegression(base, result); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if certifyBaseline != "" && certifySave {
		if err := certify.SaveBaseline(certifyBaseline, certify.NewBaseline(result)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "baseline written to %s\n", certifyBaseline)
	}

	if result.Failed > 0 {
		os.Exit(1)
	}
	return nil
}
