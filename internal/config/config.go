// Package config loads and saves colab settings.
//
// Settings live in a YAML file inside the data directory and are created with
// defaults on first load. Any key can be overridden from the environment with
// the COLAB_ prefix, dots becoming underscores (COLAB_REPO_BRANCH).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the settings file name inside the data directory.
const DefaultConfigFile = "colab.yaml"

// Default values.
const (
	DefaultBranch       = "master"
	DefaultJarFile      = "file.jar"
	DefaultMappingsPath = "mappings/"
	DefaultJava         = "java"
	DefaultMainClass    = "cuchaz.enigma.network.DedicatedEnigmaServer"
	DefaultLockTimeout  = 30 * time.Second
)

// ErrInvalidKey is returned for keys that are not part of Settings.
var ErrInvalidKey = errors.New("invalid configuration key")

// validKeys is built once from Settings struct reflection.
var validKeys = buildValidKeys()

// validate is the shared validator instance.
var validate = validator.New()

// Settings is the full colab configuration.
type Settings struct {
	Repo               RepoSettings         `mapstructure:"repo" yaml:"repo"`
	Session            SessionSettings      `mapstructure:"session" yaml:"session"`
	HookFailurePolicy  string               `mapstructure:"hook_failure_policy" yaml:"hook_failure_policy" validate:"oneof=ignore abort"`
	FetchFailurePolicy string               `mapstructure:"fetch_failure_policy" yaml:"fetch_failure_policy" validate:"oneof=abort continue"`
	LockTimeout        time.Duration        `mapstructure:"lock_timeout" yaml:"lock_timeout" validate:"gt=0"`
	Notifications      NotificationSettings `mapstructure:"notifications" yaml:"notifications"`
}

// RepoSettings describes the shared repository.
type RepoSettings struct {
	URL          string `mapstructure:"url" yaml:"url"`
	Branch       string `mapstructure:"branch" yaml:"branch" validate:"required"`
	PostCloneCmd string `mapstructure:"post_clone_cmd" yaml:"post_clone_cmd"`
}

// SessionSettings describes how an editing session is run.
type SessionSettings struct {
	JarFile      string `mapstructure:"jar_file" yaml:"jar_file" validate:"required"`
	MappingsPath string `mapstructure:"mappings_path" yaml:"mappings_path" validate:"required"`
	PreCmd       string `mapstructure:"pre_cmd" yaml:"pre_cmd"`
	PostCmd      string `mapstructure:"post_cmd" yaml:"post_cmd"`
	Java         string `mapstructure:"java" yaml:"java" validate:"required"`
	MainClass    string `mapstructure:"main_class" yaml:"main_class" validate:"required"`
	Classpath    string `mapstructure:"classpath" yaml:"classpath"`
	Args         string `mapstructure:"args" yaml:"args"`
}

// NotificationSettings configures where session and repository events go.
type NotificationSettings struct {
	Webhooks []WebhookSettings `mapstructure:"webhooks" yaml:"webhooks" validate:"dive"`
	Slack    SlackSettings     `mapstructure:"slack" yaml:"slack"`
	Discord  DiscordSettings   `mapstructure:"discord" yaml:"discord"`
}

// WebhookSettings is a generic JSON webhook.
type WebhookSettings struct {
	URL     string            `mapstructure:"url" yaml:"url" validate:"required,url"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
}

// SlackSettings is a Slack incoming webhook.
type SlackSettings struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url" validate:"omitempty,url"`
	Channel    string `mapstructure:"channel" yaml:"channel"`
	Username   string `mapstructure:"username" yaml:"username"`
}

// DiscordSettings is a Discord webhook.
type DiscordSettings struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url" validate:"omitempty,url"`
	Username   string `mapstructure:"username" yaml:"username"`
}

// Validate checks the settings for errors using struct tags.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}
	return nil
}

// MappingsScope returns the mappings path as a git pathspec relative to the
// repository root.
func (s *Settings) MappingsScope() string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(s.Session.MappingsPath)), "./")
}

// Loader provides settings loading and saving.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a loader for the settings file at path.
func NewLoader(path string) *Loader {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("COLAB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l := &Loader{v: v, path: path}
	l.setDefaults()
	return l
}

// setDefaults sets all default values using Viper.
func (l *Loader) setDefaults() {
	l.v.SetDefault("repo.url", "")
	l.v.SetDefault("repo.branch", DefaultBranch)
	l.v.SetDefault("repo.post_clone_cmd", "")
	l.v.SetDefault("session.jar_file", DefaultJarFile)
	l.v.SetDefault("session.mappings_path", DefaultMappingsPath)
	l.v.SetDefault("session.pre_cmd", "")
	l.v.SetDefault("session.post_cmd", "")
	l.v.SetDefault("session.java", DefaultJava)
	l.v.SetDefault("session.main_class", DefaultMainClass)
	l.v.SetDefault("session.classpath", "")
	l.v.SetDefault("session.args", "")
	l.v.SetDefault("hook_failure_policy", "ignore")
	l.v.SetDefault("fetch_failure_policy", "abort")
	l.v.SetDefault("lock_timeout", DefaultLockTimeout.String())
	l.v.SetDefault("notifications.webhooks", []map[string]any{})
	l.v.SetDefault("notifications.slack.webhook_url", "")
	l.v.SetDefault("notifications.slack.channel", "")
	l.v.SetDefault("notifications.slack.username", "")
	l.v.SetDefault("notifications.discord.webhook_url", "")
	l.v.SetDefault("notifications.discord.username", "")
}

// Load reads the settings file, creating it with defaults if it doesn't exist.
func (l *Loader) Load() (*Settings, error) {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		if err := l.createDefault(); err != nil {
			return nil, fmt.Errorf("failed to create default settings: %w", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	s, err := l.decode()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (l *Loader) decode() (*Settings, error) {
	var s Settings
	if err := l.v.Unmarshal(&s, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}
	return &s, nil
}

// Path returns the settings file path.
func (l *Loader) Path() string {
	return l.path
}

// Get returns a value by dot-notation key.
func (l *Loader) Get(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return l.v.Get(key), nil
}

// Set validates and writes a single value by dot-notation key. The file is
// left unchanged when the resulting settings are invalid.
func (l *Loader) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	previous := l.v.Get(key)
	l.v.Set(key, value)

	s, err := l.decode()
	if err == nil {
		err = s.Validate()
	}
	if err != nil {
		l.v.Set(key, previous)
		return err
	}

	return l.v.WriteConfig()
}

// Save validates s and replaces the settings file with it.
func (l *Loader) Save(s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return l.v.ReadInConfig()
}

// createDefault writes the default settings file using Viper.
func (l *Loader) createDefault() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	return l.v.SafeWriteConfigAs(l.path)
}

// ValidateKey checks if a key is a settable configuration key.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if validKeys[key] {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidKey, key)
}

// Keys returns every settable key.
func Keys() []string {
	keys := make([]string, 0, len(validKeys))
	for k := range validKeys {
		keys = append(keys, k)
	}
	return keys
}

// buildValidKeys collects the scalar leaf keys of Settings.
func buildValidKeys() map[string]bool {
	keys := make(map[string]bool)
	addKeysFromType(reflect.TypeOf(Settings{}), "", keys)
	return keys
}

func addKeysFromType(t reflect.Type, prefix string, keys map[string]bool) {
	for i := range t.NumField() {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		switch field.Type.Kind() {
		case reflect.Struct:
			addKeysFromType(field.Type, key, keys)
		case reflect.Slice, reflect.Map:
			// lists and maps are edited in the file or the form
		default:
			keys[key] = true
		}
	}
}
