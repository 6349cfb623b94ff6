// Package db selects the store driver from the profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/uzsupport/murojaat/internal/profile"
	"github.com/uzsupport/murojaat/store"
	"github.com/uzsupport/murojaat/store/db/postgres"
	"github.com/uzsupport/murojaat/store/db/sqlite"
)

// NewDBDriver creates a new database driver based on the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unsupported driver: %s", profile.Driver)
	}
}
