package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MaxFileBytes bounds the size of a config file.
const MaxFileBytes = 1 << 20

// ErrUnknownFormat is returned for config files that are neither JSON nor YAML.
var ErrUnknownFormat = errors.New("unknown config format")

// Read loads the config at filePath on top of Default. Environment references such as
// ${HOME} are expanded before decoding.
func Read(filePath string) (*Config, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read config")
	}
	if info.Size() > MaxFileBytes {
		return nil, errors.Errorf("config %q is %d bytes, limit is %d", filePath, info.Size(), MaxFileBytes)
	}
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot expand config %q", filePath)
	}
	cfg, err := FromReader(filePath, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromReader decodes a config whose format is chosen by the extension of originalPath.
// Unknown fields are rejected.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := Default()
	cfg.ConfigFilePath = originalPath

	switch strings.ToLower(filepath.Ext(originalPath)) {
	case ".json":
		dec := json.NewDecoder(io.LimitReader(r, MaxFileBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, errors.Wrapf(err, "cannot parse config %q as json", originalPath)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(io.LimitReader(r, MaxFileBytes))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(err, "cannot parse config %q as yaml", originalPath)
		}
	default:
		return nil, errors.Wrap(ErrUnknownFormat, originalPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", originalPath)
	}
	return &cfg, nil
}
