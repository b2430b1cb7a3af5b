package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

type Command string

const (
	CommandUp       Command = "up"
	CommandDown     Command = "down"
	CommandStatus   Command = "status"
	CommandVersion  Command = "version"
	CommandCreate   Command = "create"
	CommandValidate Command = "validate"
)

var ErrUnknownCommand = errors.New("unknown migrate command")

func ParseCommand(raw string) (Command, error) {
	cmd := Command(strings.ToLower(strings.TrimSpace(raw)))
	switch cmd {
	case CommandUp, CommandDown, CommandStatus, CommandVersion, CommandCreate, CommandValidate:
		return cmd, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, raw)
}

// NeedsDatabase reports whether the command talks to a live schema.
func (c Command) NeedsDatabase() bool {
	return c != CommandCreate && c != CommandValidate
}

// Step is one applied or inspected migration, reported back to the caller
// instead of goose's stdout printer.
type Step struct {
	Version   int64
	Path      string
	Direction string
	State     string
}

// Runner drives goose against the Postgres migration files in dir.
type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB, dir string) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("dir is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider for %q: %w", dir, err)
	}
	return &Runner{provider: provider}, nil
}

func (r *Runner) Up(ctx context.Context) ([]Step, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose up: %w", err)
	}
	return resultSteps(results), nil
}

// Down rolls back the most recent migration only.
func (r *Runner) Down(ctx context.Context) ([]Step, error) {
	result, err := r.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return resultSteps([]*goose.MigrationResult{result}), nil
}

func (r *Runner) Status(ctx context.Context) ([]Step, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	steps := make([]Step, 0, len(statuses))
	for _, st := range statuses {
		if st == nil || st.Source == nil {
			continue
		}
		steps = append(steps, Step{Version: st.Source.Version, Path: st.Source.Path, State: string(st.State)})
	}
	return steps, nil
}

// To moves the schema up or down until target is the current version.
func (r *Runner) To(ctx context.Context, target int64) ([]Step, error) {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err = r.provider.UpTo(ctx, target)
	default:
		results, err = r.provider.DownTo(ctx, target)
	}
	if err != nil {
		return nil, fmt.Errorf("goose to %d (from %d): %w", target, current, err)
	}
	return resultSteps(results), nil
}

func ParseVersion(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if !versionRe.MatchString(raw) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	return strconv.ParseInt(raw, 10, 64)
}

func resultSteps(results []*goose.MigrationResult) []Step {
	steps := make([]Step, 0, len(results))
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		steps = append(steps, Step{Version: res.Source.Version, Path: res.Source.Path, Direction: res.Direction})
	}
	return steps
}
