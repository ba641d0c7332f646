//go:build integration

package testutil

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pressly/goose/v3"

	"github.com/Gunvolt24/leasepull/internal/repo/postgres"
)

// MigrationsDir — <repo>/migrations, считается от расположения этого файла.
func MigrationsDir() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", "..", "migrations"))
}

// ApplyMigrationsGoose — схема для интеграционных тестов тем же путём, что и в Bootstrap.
func ApplyMigrationsGoose(dsn string) error {
	goose.SetLogger(log.New(os.Stdout, "goose: ", 0))
	return postgres.Migrate(context.Background(), dsn, MigrationsDir())
}
