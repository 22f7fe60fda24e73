package config

const (
	defaultConfigPath           = "~/.config/natronfarm/config.toml"
	defaultDataDir              = "~/.local/share/natronfarm"
	defaultTempDir              = "~/.local/share/natronfarm/tmp"
	defaultLogDir               = "~/.local/share/natronfarm/logs"
	defaultEcosystemDir         = "~/.config/natronfarm/ecosystem"
	defaultLocationVariable     = "NATRON_LOCATION"
	defaultLocationRelativePath = "bin/NatronRenderer"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"

	// ExecutableStrategyConfigured searches the configured executable lists.
	ExecutableStrategyConfigured = "configured"
	// ExecutableStrategyEnvironment reads the install location from the job environment.
	ExecutableStrategyEnvironment = "environment"
	// ErrorPolicyStrict fails the task on the first renderer error line.
	ErrorPolicyStrict = "strict"
	// ErrorPolicyLenient defers failure decisions to the exit code.
	ErrorPolicyLenient = "lenient"

	// WindowsAccessViolation is the exit code Natron reports when it crashes
	// during shutdown on Windows (0xC0000005 as a signed 32-bit value).
	WindowsAccessViolation = -1073741819
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			TempDir: defaultTempDir,
			LogDir:  defaultLogDir,
		},
		Render: Render{
			ExecutableStrategy: ExecutableStrategyConfigured,
			ErrorPolicy:        ErrorPolicyStrict,
			Executables: map[string]string{
				"2_0": `C:\Program Files\INRIA\Natron-2.0\bin\NatronRenderer.exe;/opt/Natron2/bin/NatronRenderer;/Applications/Natron.app/Contents/MacOS/NatronRenderer`,
			},
			LocationVariable:     defaultLocationVariable,
			LocationRelativePath: defaultLocationRelativePath,
			EnablePathMapping:    true,
			ToleratedExitCodes:   []int{WindowsAccessViolation},
		},
		Ecosystem: Ecosystem{
			DefinitionsDir: defaultEcosystemDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
