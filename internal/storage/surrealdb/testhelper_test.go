package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	surreal "github.com/surrealdb/surrealdb.go"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/common"
	tcommon "github.com/bobmcallan/tally/tests/common"
)

// testDB starts the shared SurrealDB container and returns a connected *surreal.DB
// using a unique database name per test to ensure isolation.
func testDB(t *testing.T) *surreal.DB {
	t.Helper()

	sc := tcommon.StartSurrealDB(t)
	ctx := context.Background()

	db, err := surreal.New(sc.Address())
	if err != nil {
		t.Fatalf("connect to SurrealDB: %v", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": "root",
		"pass": "root",
	}); err != nil {
		t.Fatalf("sign in to SurrealDB: %v", err)
	}

	// SurrealDB rejects "/" in database names, which subtests produce
	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbName := fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000)
	if err := db.Use(ctx, "tally_test", dbName); err != nil {
		t.Fatalf("select namespace/database: %v", err)
	}

	t.Cleanup(func() {
		db.Close(context.Background())
	})

	return db
}

// testManager returns a Manager with tables defined on a fresh database.
func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := newManager(context.Background(), testDB(t), testLogger())
	if err != nil {
		t.Fatalf("init manager: %v", err)
	}
	return m
}

// testLogger returns a silent logger for tests.
func testLogger() arbor.ILogger {
	return common.NewSilentLogger()
}

func date(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}
