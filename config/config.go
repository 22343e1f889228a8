package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    int    `yaml:"log_level"`
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`
	ConvertFLAC bool   `yaml:"convert_flac"`

	// HideProgress disables the terminal progress bar.
	HideProgress bool `yaml:"hide_progress"`

	Converter ConverterConfig `yaml:"converter"`
	Product   ProductConfig   `yaml:"product"`
	Storage   StorageConfig   `yaml:"storage"`
}

type ConverterConfig struct {
	// Binary is the ffmpeg executable, looked up in PATH when not absolute.
	Binary string `yaml:"binary"`

	// Subdir is created next to each converted source file.
	Subdir string `yaml:"subdir"`

	// Extension of converted files, without the leading dot.
	Extension string `yaml:"extension"`
}

// ProductConfig is written to the PRODUCT element of the output library.
type ProductConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Company string `yaml:"company"`
}

type StorageConfig struct {
	// Type of storage: "local" or "gcs"
	Type string `yaml:"type"`

	// GCS options
	Bucket          string `yaml:"bucket"`
	ObjectPrefix    string `yaml:"object_prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	config := &Config{}
	config.setDefaults()
	return config
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &Config{}

	// Unmarshal the YAML data into the struct
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	config.setDefaults()

	return config, nil
}

func (c *Config) setDefaults() {
	if c.Input == "" {
		c.Input = "$COLLECTION.nml"
	}

	if c.Output == "" {
		c.Output = "rekordbox.xml"
	}

	if c.Converter.Binary == "" {
		c.Converter.Binary = "ffmpeg"
	}

	if c.Converter.Subdir == "" {
		c.Converter.Subdir = "convertedWavs"
	}

	if c.Converter.Extension == "" {
		c.Converter.Extension = "wav"
	}

	if c.Product.Name == "" {
		c.Product.Name = "t2r"
	}

	if c.Product.Version == "" {
		c.Product.Version = "1.0.0"
	}

	if c.Product.Company == "" {
		c.Product.Company = "roundestrobin"
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
}
