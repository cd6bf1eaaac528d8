package bundle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scriptroots/internal/vfs"
)

const yamlBundle = `
workingDir: /work/app
toolVersion: "8.5"
toolHome: /opt/gradle-8.5
javaHome: /opt/jdk17
projectRoots:
  - /work/app
  - lib
models:
  - file: build.gradle.kts
    classpath:
      - /opt/gradle-8.5/lib/gradle-api.jar
      - libs/local.jar
    imports:
      - org.gradle.kotlin.dsl.*
  - file: /work/app/settings.gradle.kts
    inputsTimestamp: 2024-02-01T10:00:00Z
timestamp: 2024-02-01T12:00:00Z
`

const jsonBundle = `{
  "workingDir": "/work/app",
  "toolHome": "/opt/gradle-8.5",
  "failed": true,
  "models": [{"file": "lib/build.gradle.kts"}],
  "timestamp": "2024-02-01T12:00:00Z"
}`

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatOf("/b/import.yaml"))
	assert.Equal(t, FormatYAML, FormatOf("/b/import.YML"))
	assert.Equal(t, FormatJSON, FormatOf("/b/import.json"))
	assert.Equal(t, FormatAuto, FormatOf("/b/import"))
}

func TestDecode_YAML(t *testing.T) {
	res, err := Decode([]byte(yamlBundle), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "/work/app", res.WorkingDir)
	assert.Equal(t, "8.5", res.ToolVersion)
	assert.Equal(t, "/opt/gradle-8.5", res.ToolHome)
	assert.Equal(t, "/opt/jdk17", res.JavaHome)
	assert.Equal(t, []string{"/work/app", "/work/app/lib"}, res.ProjectRoots)
	require.Len(t, res.Models, 2)
	assert.Equal(t, "/work/app/build.gradle.kts", res.Models[0].File)
	assert.Equal(t, []string{"/opt/gradle-8.5/lib/gradle-api.jar", "/work/app/libs/local.jar"}, res.Models[0].Classpath)
	assert.Equal(t, []string{"org.gradle.kotlin.dsl.*"}, res.Models[0].Imports)
	assert.True(t, res.Models[1].InputsTimestamp.Equal(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, res.Timestamp.Equal(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)))
	assert.False(t, res.Failed)
}

func TestDecode_JSON(t *testing.T) {
	res, err := Decode([]byte(jsonBundle), FormatAuto)
	require.NoError(t, err)

	assert.True(t, res.Failed)
	require.Len(t, res.Models, 1)
	assert.Equal(t, "/work/app/lib/build.gradle.kts", res.Models[0].File)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"missing working dir", "toolHome: /g\n", FormatYAML},
		{"unknown yaml field", "workingDir: /w\nbogus: 1\n", FormatYAML},
		{"unknown json field", `{"workingDir": "/w", "bogus": 1}`, FormatJSON},
		{"malformed json", `{"workingDir": `, FormatJSON},
		{"empty", "", FormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), tt.format)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
		})
	}

	_, err := Decode([]byte("toolHome: /g\n"), FormatYAML)
	assert.True(t, errors.Is(err, ErrNoWorkingDir))
}

func TestLoad_RelativeWorkingDir(t *testing.T) {
	fsys := vfs.NewMemFS()
	require.NoError(t, fsys.AddFile("/work/out/import.yaml", "workingDir: ../app\nmodels:\n  - file: build.gradle.kts\n"))

	res, err := Load(fsys, "/work/out/import.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/work/app", res.WorkingDir)
	require.Len(t, res.Models, 1)
	assert.Equal(t, "/work/app/build.gradle.kts", res.Models[0].File)
}

func TestLoad_DefaultsTimestampToModTime(t *testing.T) {
	fsys := vfs.NewMemFS()
	mod := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, fsys.AddFile("/b/import.json", `{"workingDir": "/w"}`))
	require.NoError(t, fsys.Chtimes("/b/import.json", mod))

	res, err := Load(fsys, "/b/import.json")
	require.NoError(t, err)
	assert.True(t, res.Timestamp.Equal(mod))
}

func TestLoad_ErrorsCarryPath(t *testing.T) {
	fsys := vfs.NewMemFS()
	require.NoError(t, fsys.AddFile("/b/bad.yaml", "workingDir: [\n"))

	_, err := Load(fsys, "/b/bad.yaml")
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "/b/bad.yaml", de.Path)
	assert.Contains(t, err.Error(), "/b/bad.yaml")

	_, err = Load(fsys, "/b/missing.yaml")
	require.Error(t, err)
}
