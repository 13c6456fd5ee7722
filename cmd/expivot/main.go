// Package main provides the CLI entry point for expivot-go.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ukaji3/expivot-go/pkg/expivot"
	"github.com/ukaji3/expivot-go/pkg/expivot/output"
)

var (
	cfgFile    string
	outputPath string
	rangeRef   string
	asRecords  bool
)

func init() {
	cobra.OnInitialize(initConfig)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "expivot",
		Short: "Extract pivot tables from Excel files",
		Long: `expivot-go lists the pivot tables of an xlsx workbook and outputs
their definitions and cached source data as JSON.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(viper.GetString("log-level"))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.expivot.yaml)")
	flags.String("log-level", "warning", "Log level: debug, info, warning, error")
	flags.Bool("pretty", false, "Pretty-print JSON output")
	flags.String("password", "", "Password of an encrypted workbook")
	flags.Bool("live-fallback", true, "Read worksheet cells when a cache stores no records")

	for _, name := range []string{"log-level", "pretty", "password", "live-fallback"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	dataCmd := &cobra.Command{
		Use:   "data [input.xlsx] [table]",
		Short: "Output the cached source data of a pivot table",
		Args:  cobra.ExactArgs(2),
		RunE:  runData,
	}
	dataCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	dataCmd.Flags().StringVar(&rangeRef, "range", "", "Restrict output to part of the source range, e.g. A1:C20")
	dataCmd.Flags().BoolVar(&asRecords, "records", false, "Output one object per row keyed by header")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "list [input.xlsx]",
			Short: "List pivot table names in discovery order",
			Args:  cobra.ExactArgs(1),
			RunE:  runList,
		},
		&cobra.Command{
			Use:   "show [input.xlsx] [table]",
			Short: "Output a pivot table definition",
			Args:  cobra.ExactArgs(2),
			RunE:  runShow,
		},
		dataCmd,
		&cobra.Command{
			Use:   "caches [input.xlsx]",
			Short: "Output pivot cache summaries",
			Args:  cobra.ExactArgs(1),
			RunE:  runCaches,
		},
	)
	return rootCmd
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			log.Warn(err)
			return
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".expivot")
	}

	viper.SetEnvPrefix("EXPIVOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debug("Using config file: ", viper.ConfigFileUsed())
	}
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	return nil
}

// openPivots opens the workbook and discovers its pivot tables. Partial
// discovery is reported as a warning.
func openPivots(inputPath string) (*expivot.Workbook, *expivot.Registry, error) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("file not found: %s", inputPath)
	}

	fallback := viper.GetBool("live-fallback")
	opts := expivot.Options{
		Logger:       log.StandardLogger(),
		Password:     viper.GetString("password"),
		LiveFallback: &fallback,
	}

	wb, err := expivot.Open(inputPath, opts)
	if err != nil {
		return nil, nil, err
	}
	reg, err := wb.Pivots()
	var partial *expivot.PartialDiscoveryError
	switch {
	case errors.As(err, &partial):
		for _, pe := range partial.Errors {
			log.WithField("part", pe.Part).Warn(pe.Err)
		}
	case err != nil:
		wb.Close()
		return nil, nil, fmt.Errorf("discovery failed: %w", err)
	}
	return wb, reg, nil
}

func runList(cmd *cobra.Command, args []string) error {
	wb, reg, err := openPivots(args[0])
	if err != nil {
		return err
	}
	defer wb.Close()

	for _, name := range reg.Names() {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	wb, reg, err := openPivots(args[0])
	if err != nil {
		return err
	}
	defer wb.Close()

	table, err := reg.Get(args[1])
	if err != nil {
		return err
	}
	jsonData, err := output.TableToJSON(table, viper.GetBool("pretty"))
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	return writeOutput(cmd.OutOrStdout(), "", jsonData)
}

func runData(cmd *cobra.Command, args []string) error {
	wb, reg, err := openPivots(args[0])
	if err != nil {
		return err
	}
	defer wb.Close()

	grid, err := reg.Data(args[1], rangeRef)
	if err != nil {
		return err
	}

	pretty := viper.GetBool("pretty")
	var jsonData []byte
	if asRecords {
		jsonData, err = output.ToJSON(output.GridRecords(grid), pretty)
	} else {
		jsonData, err = output.GridToJSON(grid, pretty)
	}
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	return writeOutput(cmd.OutOrStdout(), outputPath, jsonData)
}

func runCaches(cmd *cobra.Command, args []string) error {
	wb, reg, err := openPivots(args[0])
	if err != nil {
		return err
	}
	defer wb.Close()

	return output.Write(cmd.OutOrStdout(), reg.CacheSummaries(), viper.GetBool("pretty"))
}

func writeOutput(stdout io.Writer, path string, jsonData []byte) error {
	if path != "" {
		if err := os.WriteFile(path, jsonData, 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	_, err := fmt.Fprintln(stdout, string(jsonData))
	return err
}
