package core

import (
	"os"
	"path/filepath"
)

type Paths struct {
	DataDir    string
	LogFile    string
	ConfigFile string
}

// DataDirEnv overrides the data directory when set.
const DataDirEnv = "YARNSPEC_HOME"

var defaultPaths *Paths

func ensureDefaultPaths() {
	if defaultPaths == nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}

		dataDir := os.Getenv(DataDirEnv)
		if dataDir == "" {
			dataDir = filepath.Join(homeDir, ".yarnspec")
		}

		defaultPaths = &Paths{
			DataDir:    dataDir,
			LogFile:    filepath.Join(dataDir, "yarnspec.log"),
			ConfigFile: filepath.Join(dataDir, "config.yaml"),
		}

		err = os.MkdirAll(defaultPaths.DataDir, 0755)
		if err != nil {
			panic(err)
		}
	}
}

func DataDir() string {
	ensureDefaultPaths()
	return defaultPaths.DataDir
}

func LogFile() string {
	ensureDefaultPaths()
	return defaultPaths.LogFile
}

func ConfigFile() string {
	ensureDefaultPaths()
	return defaultPaths.ConfigFile
}

// ResetPaths clears the cached paths, forcing them to be reinitialized.
// This is primarily used for testing purposes.
func ResetPaths() {
	defaultPaths = nil
}
