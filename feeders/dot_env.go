package feeders

import (
	"github.com/joho/godotenv"
)

// DotEnvFeeder reads a .env file. Variable names map to keys the same way as
// EnvFeeder, and Prefix restricts and strips matching names.
type DotEnvFeeder struct {
	verbose
	Path     string
	Prefix   string
	Optional bool
}

// NewDotEnvFeeder creates a new DotEnvFeeder that reads from the specified .env file
func NewDotEnvFeeder(filePath string) *DotEnvFeeder {
	return &DotEnvFeeder{Path: filePath}
}

// Name identifies the feeder in provenance output.
func (f *DotEnvFeeder) Name() string { return "dotenv:" + f.Path }

// Paths returns the watched file.
func (f *DotEnvFeeder) Paths() []string { return []string{f.Path} }

// Load parses the .env file.
func (f *DotEnvFeeder) Load() (map[string]string, error) {
	f.debug("DotEnvFeeder: Starting load", "filePath", f.Path)
	data, err := readOptional("DotEnvFeeder", f.Path, f.Optional)
	if err != nil {
		f.debug("DotEnvFeeder: Failed to read file", "filePath", f.Path, "error", err)
		return nil, err
	}
	if data == nil {
		return map[string]string{}, nil
	}
	vars, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return nil, wrapDecodeError("DotEnvFeeder", f.Path, err)
	}
	environ := make([]string, 0, len(vars))
	for k, v := range vars {
		environ = append(environ, k+"="+v)
	}
	out := envToKeys(environ, f.Prefix, "")
	f.debug("DotEnvFeeder: Load completed", "filePath", f.Path, "varsFound", len(vars), "keys", len(out))
	return out, nil
}
