package types

// Config holds backend selection and process parameters. It is constructed
// once at startup (flags + config file) and passed into constructors; the
// core never reads ambient configuration.
type Config struct {
	Backend    string `json:"backend" yaml:"backend"`
	DataDir    string `json:"data_dir" yaml:"data_dir"`
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
	LogLevel   string `json:"log_level" yaml:"log_level"`
}

// Supported backend kinds.
const (
	BackendNative = "native"
	BackendSQLite = "sqlite"
)

var knownBackends = map[string]bool{
	BackendNative: true,
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed, returning a sentinel error
// on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	return nil
}
