package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"

	"github.com/tinytelemetry/loglatency/internal/model"
)

const (
	keyReportSize            = "report_size"
	keyReportDir             = "report_dir"
	keyLogDir                = "log_dir"
	keyReportNamePattern     = "report_name_pattern"
	keyErrorPercentThreshold = "error_percent_threshold"
	keyMonitorPath           = "monitor_path"
	keyLogPrefix             = "log_prefix"
	keyTemplatePath          = "template_path"
	keyProcessAll            = "process_all"
	keyLogLevel              = "log_level"
	keyMaxLineSize           = "max_line_size"

	// iniDefaultSection is the section older INI configs keep their keys in.
	iniDefaultSection = "default"
)

var (
	// ErrEmptyConfig means the config file exists but holds nothing.
	ErrEmptyConfig = errors.New("config is empty")

	// ErrConfigUnreadable means the config file exists but cannot be read.
	ErrConfigUnreadable = errors.New("config is unreadable")
)

// legacyKeys maps canonical keys to the names used by older config files.
var legacyKeys = map[string][]string{
	keyReportNamePattern:     {"rep_name"},
	keyErrorPercentThreshold: {"error_perc"},
}

// ConfigError reports a config file that could be read but not used.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	ReportSize            int    `mapstructure:"report_size"`
	ReportDir             string `mapstructure:"report_dir"`
	LogDir                string `mapstructure:"log_dir"`
	ReportNamePattern     string `mapstructure:"report_name_pattern"`
	ErrorPercentThreshold int    `mapstructure:"error_percent_threshold"`
	MonitorPath           string `mapstructure:"monitor_path"`
	LogPrefix             string `mapstructure:"log_prefix"`
	TemplatePath          string `mapstructure:"template_path"`
	ProcessAll            bool   `mapstructure:"process_all"`
	LogLevel              string `mapstructure:"log_level"`
	MaxLineSize           int    `mapstructure:"max_line_size"`
}

func (c appConfig) runConfig() model.RunConfig {
	return model.RunConfig{
		ReportSize:            c.ReportSize,
		ErrorPercentThreshold: c.ErrorPercentThreshold,
		ReportDir:             c.ReportDir,
		LogDir:                c.LogDir,
		ReportNamePattern:     c.ReportNamePattern,
		MonitorPath:           c.MonitorPath,
		LogPrefix:             c.LogPrefix,
		TemplatePath:          c.TemplatePath,
		ProcessAll:            c.ProcessAll,
		LogLevel:              strings.ToLower(c.LogLevel),
		MaxLineSize:           c.MaxLineSize,
	}
}

func newViper() *viper.Viper {
	def := model.DefaultRunConfig()

	v := viper.New()
	v.SetEnvPrefix("LOGLATENCY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.SetDefault(keyReportSize, def.ReportSize)
	v.SetDefault(keyReportDir, def.ReportDir)
	v.SetDefault(keyLogDir, def.LogDir)
	v.SetDefault(keyReportNamePattern, def.ReportNamePattern)
	v.SetDefault(keyErrorPercentThreshold, def.ErrorPercentThreshold)
	v.SetDefault(keyMonitorPath, def.MonitorPath)
	v.SetDefault(keyLogPrefix, def.LogPrefix)
	v.SetDefault(keyTemplatePath, def.TemplatePath)
	v.SetDefault(keyProcessAll, def.ProcessAll)
	v.SetDefault(keyLogLevel, def.LogLevel)
	v.SetDefault(keyMaxLineSize, def.MaxLineSize)

	return v
}

// configType picks the codec for path. Unknown extensions are read as JSON.
func configType(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "ini" || slices.Contains(viper.SupportedExts, ext) {
		return ext
	}
	return "json"
}

// readINI merges an INI document into v. Keys outside any section are
// stored at the root, named sections become nested maps.
func readINI(v *viper.Viper, data []byte) error {
	file, err := ini.Load(data)
	if err != nil {
		return err
	}

	settings := map[string]any{}
	for _, section := range file.Sections() {
		target := settings
		if section.Name() != ini.DefaultSection {
			nested := map[string]any{}
			settings[section.Name()] = nested
			target = nested
		}
		for _, key := range section.Keys() {
			target[key.Name()] = key.Value()
		}
	}
	return v.MergeConfigMap(settings)
}

func readConfig(v *viper.Viper, path string, data []byte) error {
	kind := configType(path)
	if kind == "ini" {
		return readINI(v, data)
	}
	v.SetConfigType(kind)
	return v.ReadConfig(bytes.NewReader(data))
}

// applyAliases copies legacy keys and keys of an explicit [default] INI
// section onto their canonical names unless the file sets the canonical key.
func applyAliases(v *viper.Viper) {
	canonical := []string{
		keyReportSize, keyReportDir, keyLogDir, keyReportNamePattern,
		keyErrorPercentThreshold, keyMonitorPath, keyLogPrefix, keyTemplatePath,
		keyProcessAll, keyLogLevel, keyMaxLineSize,
	}
	for _, key := range canonical {
		if v.InConfig(key) {
			continue
		}
		candidates := slices.Clone(legacyKeys[key])
		for _, name := range append([]string{key}, legacyKeys[key]...) {
			candidates = append(candidates, iniDefaultSection+"."+name)
		}
		for _, alias := range candidates {
			if v.InConfig(alias) {
				v.Set(key, v.Get(alias))
				break
			}
		}
	}
}

// loadConfig builds the run configuration from defaults, the optional file at
// configPath and LOGLATENCY_* environment variables. It returns the path of
// the file actually used, which is empty when defaults were used.
func loadConfig(fs afero.Fs, configPath string) (model.RunConfig, string, error) {
	v := newViper()
	used := ""

	if configPath != "" {
		data, err := afero.ReadFile(fs, configPath)
		switch {
		case err == nil:
			if len(bytes.TrimSpace(data)) == 0 {
				return model.RunConfig{}, "", fmt.Errorf("%w: %s", ErrEmptyConfig, configPath)
			}
			if err := readConfig(v, configPath, data); err != nil {
				return model.RunConfig{}, "", &ConfigError{Path: configPath, Err: err}
			}
			applyAliases(v)
			used = configPath
		case errors.Is(err, os.ErrNotExist):
			// Missing file: keep defaults.
		default:
			return model.RunConfig{}, "", fmt.Errorf("%w: %s: %v", ErrConfigUnreadable, configPath, err)
		}
	}

	var cfg appConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return model.RunConfig{}, "", &ConfigError{Path: configPath, Err: err}
	}

	run := cfg.runConfig()
	if err := validator.New().Struct(run); err != nil {
		return model.RunConfig{}, "", &ConfigError{Path: configPath, Err: err}
	}

	return run, used, nil
}
