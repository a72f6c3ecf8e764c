package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"trackprobe/internal/config"
	"trackprobe/pkg/build"
)

// ParseArgs builds the runtime configuration: YAML file and environment
// first, then CLI flags on top. Only flags the user actually set
// override the loaded values. The returned Command field tells main
// what to do ("run", "list", or "" when cobra already handled
// everything, e.g. --help).
func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	options := config.NewConfig()

	var (
		configPath string
		deviceID   int
		channels   int
		sampleRate float64
		frames     int
		lowLatency bool
		gate       bool
		record     bool
		wsAddr     string
		logLevel   string
		tuiMode    bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       build.VersionString(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			*options = *loaded

			f := cmd.Flags()
			if f.Changed("device") {
				options.Audio.InputDevice = deviceID
			}
			if f.Changed("channels") {
				options.Audio.InputChannels = channels
			}
			if f.Changed("sample-rate") {
				options.Audio.SampleRate = sampleRate
			}
			if f.Changed("frames-per-buffer") {
				options.Audio.FramesPerBuffer = frames
			}
			if f.Changed("low-latency") {
				options.Audio.LowLatency = lowLatency
			}
			if f.Changed("gate") {
				options.Audio.GateEnabled = gate
			}
			if f.Changed("record") {
				options.Recording.Enabled = record
			}
			if f.Changed("ws") {
				options.WebSocket.Enabled = true
				options.WebSocket.Addr = wsAddr
			}
			if f.Changed("log-level") {
				options.LogLevel = logLevel
			}
			options.TUIMode = tuiMode
			return options.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = "run"
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available capture devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML configuration file")

	// Capture device configuration.
	rootCmd.PersistentFlags().IntVarP(&deviceID, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use the 'list' command to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	rootCmd.PersistentFlags().Float64VarP(&sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.PersistentFlags().IntVarP(&frames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	rootCmd.PersistentFlags().BoolVarP(&lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	rootCmd.PersistentFlags().BoolVarP(&gate, "gate", "g", false,
		"Enable the noise gate")

	// Recording and fan-out.
	rootCmd.PersistentFlags().BoolVarP(&record, "record", "r", false,
		"Record the processed input stream to a WAV file")
	rootCmd.PersistentFlags().StringVar(&wsAddr, "ws", ":8090",
		"Serve browser meter frames on this address")

	// Diagnostics.
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&tuiMode, "tui", "t", false,
		"Show the terminal monitor instead of plain log output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}
