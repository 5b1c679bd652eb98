package config

const (
	defaultCellrangerBinary       = "cellranger"
	defaultUIPort                 = 72647
	defaultFastqSubdir            = "outs/fastq_path"
	defaultNormalization          = "mapped"
	defaultUIMarkerDelaySeconds   = 5
	defaultUIMarkerTimeoutSeconds = 60
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Cellranger: Cellranger{
			Binary:                 defaultCellrangerBinary,
			UIPort:                 defaultUIPort,
			FastqSubdir:            defaultFastqSubdir,
			Normalization:          defaultNormalization,
			UIMarkerDelaySeconds:   defaultUIMarkerDelaySeconds,
			UIMarkerTimeoutSeconds: defaultUIMarkerTimeoutSeconds,
		},
		Pipeline: Pipeline{
			ContinueOnError: false,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
