// Package config loads runtime settings for the store, its effects, the
// journal and logging. Files are CUE, JSON or YAML; all three are unified
// with an embedded CUE schema that supplies defaults and rejects unknown
// fields.
package config

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/statekit/internal/effect"
	"github.com/roach88/statekit/internal/store"
)

//go:embed schema.cue
var schemaSource string

// Config is the decoded, defaulted configuration.
type Config struct {
	Store   StoreConfig             `json:"store"`
	Effects map[string]EffectConfig `json:"effects"`
	Search  SearchConfig            `json:"search"`
	Journal JournalConfig           `json:"journal"`
	Log     LogConfig               `json:"log"`
}

// StoreConfig holds store options.
type StoreConfig struct {
	Subscribe string `json:"subscribe"`
}

// EffectConfig overrides one effect registration. An empty Strategy keeps
// the registration's default.
type EffectConfig struct {
	Strategy      string `json:"strategy,omitempty"`
	MaxConcurrent int64  `json:"max_concurrent"`
}

// SearchConfig tunes the search effect.
type SearchConfig struct {
	Debounce string `json:"debounce"`
}

// JournalConfig enables the SQLite journal when Path is set.
type JournalConfig struct {
	Path            string `json:"path"`
	CheckpointEvery int    `json:"checkpoint_every"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Error is a configuration problem, positioned when CUE can say where.
type Error struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// Default returns the schema defaults.
func Default() (*Config, error) {
	return Parse("default.cue", nil)
}

// Load reads and decodes path. The format is chosen by extension: .yaml and
// .yml are YAML, anything else is compiled as CUE (which includes JSON).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes data as if it had been read from filename.
func Parse(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	var user cue.Value
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &Error{File: filename, Message: err.Error()}
		}
		if doc == nil {
			doc = map[string]any{}
		}
		user = ctx.Encode(doc)
	default:
		user = ctx.CompileBytes(data, cue.Filename(filename))
	}
	if err := user.Err(); err != nil {
		return nil, cueError(filename, err)
	}

	v := def.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(filename, err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, cueError(filename, err)
	}
	if cfg.Effects == nil {
		cfg.Effects = map[string]EffectConfig{}
	}
	if _, err := time.ParseDuration(cfg.Search.Debounce); err != nil {
		return nil, &Error{File: filename, Message: fmt.Sprintf("search.debounce: %v", err)}
	}
	return &cfg, nil
}

func cueError(filename string, err error) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return &Error{File: filename, Message: err.Error()}
	}
	first := list[0]
	e := &Error{File: filename, Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 && pos[0].IsValid() {
		e.Line = pos[0].Line()
		e.Column = pos[0].Column()
	}
	return e
}

// Validate checks that every configured effect names one of known.
func (c *Config) Validate(known []string) error {
	var unknown []string
	for name := range c.Effects {
		if !slices.Contains(known, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return &Error{Message: fmt.Sprintf("unknown effects %s (known: %s)",
			strings.Join(unknown, ", "), strings.Join(known, ", "))}
	}
	return nil
}

// SubscribePolicy returns the parsed store.subscribe value.
func (c *Config) SubscribePolicy() (store.SubscribePolicy, error) {
	return store.ParseSubscribePolicy(c.Store.Subscribe)
}

// SearchDebounce returns the parsed search.debounce value.
func (c *Config) SearchDebounce() time.Duration {
	d, _ := time.ParseDuration(c.Search.Debounce)
	return d
}

// EffectOptions converts the effect overrides into registration options.
func (c *Config) EffectOptions() (map[string][]effect.Option, error) {
	out := make(map[string][]effect.Option, len(c.Effects))
	for name, ec := range c.Effects {
		var opts []effect.Option
		if ec.Strategy != "" {
			s, err := effect.ParseStrategy(ec.Strategy)
			if err != nil {
				return nil, fmt.Errorf("effects.%s: %w", name, err)
			}
			opts = append(opts, effect.WithStrategy(s))
		}
		if ec.MaxConcurrent > 0 {
			opts = append(opts, effect.WithMaxConcurrent(ec.MaxConcurrent))
		}
		out[name] = opts
	}
	return out, nil
}

// Logger builds a logger writing to w. verbose forces debug level.
func (l LogConfig) Logger(w io.Writer, verbose bool) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
