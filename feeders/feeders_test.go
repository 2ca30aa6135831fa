package feeders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	messages []string
}

func (r *recordingLogger) Debug(msg string, args ...any) {
	r.messages = append(r.messages, msg)
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestJSONFeeder_Load(t *testing.T) {
	path := writeTemp(t, "app.json", `{
  "Logging": {"Level": "debug", "Enabled": true},
  "Ports": [80, 443],
  "Ratio": 1.5,
  "Empty": {},
  "Nothing": null
}`)
	feeder := NewJSONFeeder(path)
	logger := &recordingLogger{}
	feeder.SetVerboseDebug(true, logger)

	data, err := feeder.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Logging:Level":   "debug",
		"Logging:Enabled": "true",
		"Ports:0":         "80",
		"Ports:1":         "443",
		"Ratio":           "1.5",
		"Empty":           "",
		"Nothing":         "",
	}, data)
	assert.NotEmpty(t, logger.messages)
	assert.Equal(t, []string{path}, feeder.Paths())
}

func TestJSONFeeder_MissingFile(t *testing.T) {
	feeder := NewJSONFeeder(filepath.Join(t.TempDir(), "missing.json"))
	_, err := feeder.Load()
	require.Error(t, err)

	feeder.Optional = true
	data, err := feeder.Load()
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestJSONFeeder_EmptyPath(t *testing.T) {
	_, err := NewJSONFeeder("").Load()
	require.ErrorIs(t, err, ErrFeederPathEmpty)
}

func TestYamlFeeder_KeepsScalarText(t *testing.T) {
	path := writeTemp(t, "app.yaml", `
ComplexObject:
  Name: hello
  Value:
    Time: "13:00:10"
Serilog:
  Using:
    - Sink.Console
    - Sink.File
Version: 1.10
Anchor: &a
  Key: v
Alias: *a
`)
	data, err := NewYamlFeeder(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "hello", data["ComplexObject:Name"])
	assert.Equal(t, "13:00:10", data["ComplexObject:Value:Time"])
	assert.Equal(t, "Sink.File", data["Serilog:Using:1"])
	assert.Equal(t, "1.10", data["Version"])
	assert.Equal(t, "v", data["Alias:Key"])
}

func TestTomlFeeder_Load(t *testing.T) {
	path := writeTemp(t, "app.toml", `
Name = "svc"
Retries = 3

[Logging]
Level = "info"

[[Sinks]]
Name = "Console"

[[Sinks]]
Name = "File"
`)
	data, err := NewTomlFeeder(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "svc", data["Name"])
	assert.Equal(t, "3", data["Retries"])
	assert.Equal(t, "info", data["Logging:Level"])
	assert.Equal(t, "Console", data["Sinks:0:Name"])
	assert.Equal(t, "File", data["Sinks:1:Name"])
}

func TestHCLFeeder_Load(t *testing.T) {
	path := writeTemp(t, "app.hcl", `
SimpleString = "hello"
DummyArray = [1, 2]
Logging = {
  Level = "warn"
  Enabled = true
}
`)
	data, err := NewHCLFeeder(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "hello", data["SimpleString"])
	assert.Equal(t, "1", data["DummyArray:0"])
	assert.Equal(t, "2", data["DummyArray:1"])
	assert.Equal(t, "warn", data["Logging:Level"])
	assert.Equal(t, "true", data["Logging:Enabled"])
}

func TestHCLFeeder_RejectsBlocks(t *testing.T) {
	path := writeTemp(t, "app.hcl", `
logging {
  level = "warn"
}
`)
	_, err := NewHCLFeeder(path).Load()
	require.ErrorIs(t, err, ErrHCLParse)
}

func TestEnvFeeder_Load(t *testing.T) {
	feeder := NewEnvFeeder("APP_")
	feeder.lookup = func() []string {
		return []string{
			"APP_LOGGING__LEVEL=debug",
			"APP_NAME=svc",
			"OTHER=ignored",
			"APP_=empty",
		}
	}
	data, err := feeder.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"LOGGING:LEVEL": "debug",
		"NAME":          "svc",
	}, data)
}

func TestAffixedEnvFeeder_Load(t *testing.T) {
	feeder := NewAffixedEnvFeeder("app_", "_prod")
	feeder.lookup = func() []string {
		return []string{
			"APP_DB__HOST_PROD=db.internal",
			"APP_DB__HOST_DEV=localhost",
		}
	}
	data, err := feeder.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"DB:HOST": "db.internal"}, data)

	_, err = NewAffixedEnvFeeder("", "").Load()
	require.ErrorIs(t, err, ErrEnvEmptyPrefixAndSuffix)
}

func TestDotEnvFeeder_Load(t *testing.T) {
	path := writeTemp(t, ".env", "# comment\nCONNECTIONSTRINGS__CONN1=abcd\nSVC_PORT=8080\n")
	feeder := NewDotEnvFeeder(path)
	data, err := feeder.Load()
	require.NoError(t, err)
	assert.Equal(t, "abcd", data["CONNECTIONSTRINGS:CONN1"])
	assert.Equal(t, "8080", data["SVC_PORT"])

	feeder.Prefix = "SVC_"
	data, err = feeder.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PORT": "8080"}, data)
}

func TestContentFeeder_Formats(t *testing.T) {
	tests := []struct {
		format  string
		content string
	}{
		{"json", `{"A":{"B":"c"}}`},
		{"yaml", "A:\n  B: c\n"},
		{"toml", "[A]\nB = \"c\"\n"},
		{"hcl", "A = { B = \"c\" }\n"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			data, err := NewContentFeeder(tt.format, []byte(tt.content)).Load()
			require.NoError(t, err)
			assert.Equal(t, "c", data["A:B"])
		})
	}

	_, err := NewContentFeeder("ini", nil).Load()
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestForFile(t *testing.T) {
	for path, want := range map[string]string{
		"a.json": "json:a.json",
		"a.YML":  "yaml:a.YML",
		"a.toml": "toml:a.toml",
		"a.hcl":  "hcl:a.hcl",
		"x.env":  "dotenv:x.env",
	} {
		f, err := ForFile(path)
		require.NoError(t, err)
		assert.Equal(t, want, f.Name())
	}
	_, err := ForFile("a.ini")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestMapFeeder_ReturnsCopy(t *testing.T) {
	src := map[string]string{"A": "1"}
	data, err := NewMapFeeder(src).Load()
	require.NoError(t, err)
	data["A"] = "2"
	assert.Equal(t, "1", src["A"])
}
