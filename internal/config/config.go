package config

// Config holds app configuration
type Config struct {
	// Language is the full-text index language code attached to newly
	// created archives, e.g. "eng"
	Language string `mapstructure:"language"`

	// Indexing enables title index construction for newly created archives
	Indexing bool `mapstructure:"indexing"`

	LogLevel     string `mapstructure:"log_level"`
	LogOutputDir string `mapstructure:"log_output_dir"`
}
