package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"adsb1090/internal/app"
)

func main() {
	var configPath string
	config := app.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "adsb1090",
		Short: "ADS-B decode core (1090 MHz Mode S)",
		Long: `ADS-B receiver decode core.

Consumes IQ samples from an RTL-SDR dongle (or a recorded capture) at
2 MHz, demodulates Mode S frames, validates CRC-24 with bit-flip
recovery, reconstructs positions via CPR, tracks aircraft and emits
track and anomaly events to a rotated log.

Example usage:
  adsb1090 --device 0 --gain 40
  adsb1090 --iq-file capture.bin
  adsb1090 --hex-file - < frames.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion()
				return nil
			}

			if configPath != "" {
				loaded, err := app.LoadConfig(configPath)
				if err != nil {
					return err
				}
				// Flags set explicitly win over the file.
				applyFlagOverrides(cmd, &loaded, &config)
				config = loaded
			}

			application, err := app.NewApplication(config)
			if err != nil {
				return err
			}
			return application.Start()
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.Flags().Uint32VarP(&config.Frequency, "frequency", "f", app.DefaultFrequency, "Frequency to tune to (Hz)")
	rootCmd.Flags().Uint32VarP(&config.SampleRate, "sample-rate", "s", app.DefaultSampleRate, "Sample rate (Hz)")
	rootCmd.Flags().IntVarP(&config.Gain, "gain", "g", app.DefaultGain, "Gain setting (0 for auto)")
	rootCmd.Flags().IntVarP(&config.Device, "device", "d", 0, "RTL-SDR device index")
	rootCmd.Flags().StringVar(&config.IQFile, "iq-file", "", "Read IQ samples from file instead of a dongle (- for stdin)")
	rootCmd.Flags().StringVar(&config.HexFile, "hex-file", "", "Read hex frames from file instead of a dongle (- for stdin)")
	rootCmd.Flags().StringVarP(&config.LogDir, "log-dir", "l", "./logs", "Event log directory")
	rootCmd.Flags().BoolVarP(&config.LogRotateUTC, "utc", "u", true, "Use UTC for event log rotation")
	rootCmd.Flags().BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.Flags().BoolVar(&config.ShowVersion, "version", false, "Show version information")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlagOverrides copies explicitly set flag values over the loaded
// file configuration.
func applyFlagOverrides(cmd *cobra.Command, loaded, flags *app.Config) {
	if cmd.Flags().Changed("frequency") {
		loaded.Frequency = flags.Frequency
	}
	if cmd.Flags().Changed("sample-rate") {
		loaded.SampleRate = flags.SampleRate
	}
	if cmd.Flags().Changed("gain") {
		loaded.Gain = flags.Gain
	}
	if cmd.Flags().Changed("device") {
		loaded.Device = flags.Device
	}
	if cmd.Flags().Changed("iq-file") {
		loaded.IQFile = flags.IQFile
	}
	if cmd.Flags().Changed("hex-file") {
		loaded.HexFile = flags.HexFile
	}
	if cmd.Flags().Changed("log-dir") {
		loaded.LogDir = flags.LogDir
	}
	if cmd.Flags().Changed("utc") {
		loaded.LogRotateUTC = flags.LogRotateUTC
	}
	if cmd.Flags().Changed("verbose") {
		loaded.Verbose = flags.Verbose
	}
}
