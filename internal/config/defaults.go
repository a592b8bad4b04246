package config

const (
	defaultWindowDir      = "features"
	defaultFeatureDir     = "features"
	defaultDownsampledDir = "features/downsampled"
	defaultOutputDir      = "features"
	defaultEventsFile     = "features/events_combined.csv"
	defaultLogDir         = "~/.local/share/biolabel/logs"
	defaultStateDir       = "~/.local/share/biolabel"
	defaultStride         = 25
	defaultEventScope     = EventScopeSubject
	defaultSeizurePrefix  = "sz"
	defaultDelimiter      = ","
	defaultEventRunColumn = "run_key"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Event association scopes.
const (
	EventScopeSubject = "subject"
	EventScopeRun     = "run"
)

// KnownModalities lists the modality tags the pipeline understands, in the
// order their columns appear in the unified table.
var KnownModalities = []string{"eeg", "ecg", "emg", "mov"}

// defaultMetadataColumns are never treated as signal channels.
var defaultMetadataColumns = []string{"source_file", "time_sec", "run_key", "remote_events_path"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WindowDir:      defaultWindowDir,
			FeatureDir:     defaultFeatureDir,
			DownsampledDir: defaultDownsampledDir,
			OutputDir:      defaultOutputDir,
			EventsFile:     defaultEventsFile,
			LogDir:         defaultLogDir,
			StateDir:       defaultStateDir,
		},
		Pipeline: Pipeline{
			Modalities:    append([]string(nil), KnownModalities...),
			Stride:        defaultStride,
			EventScope:    defaultEventScope,
			SeizurePrefix: defaultSeizurePrefix,
			Delimiter:     defaultDelimiter,
		},
		Schema: Schema{
			MetadataColumns: append([]string(nil), defaultMetadataColumns...),
			EventRunColumn:  defaultEventRunColumn,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
