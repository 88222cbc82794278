// Package store persists ledger snapshots by name. A name is usually the
// strategy name in live trading or a run label in backtests.
package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rustyeddy/portfolio/position"
)

// Store saves and loads whole snapshots. Loading a name that was never
// saved returns an empty snapshot and no error.
type Store interface {
	SaveSnapshot(ctx context.Context, name string, s position.Snapshot) error
	LoadSnapshot(ctx context.Context, name string) (position.Snapshot, error)
}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

func checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("store: invalid snapshot name %q", name)
	}
	return nil
}

// Open builds a store from its kind: "file" takes a directory, "sqlite" a
// database path and "postgres" a DSN.
func Open(kind, target string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch kind {
	case "file":
		s, err = NewFileStore(target)
	case "sqlite":
		s, err = NewSQLiteStore(target)
	case "postgres":
		s, err = NewPostgresStore(target)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("store: unknown kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
