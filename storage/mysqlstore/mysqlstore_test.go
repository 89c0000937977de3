package mysqlstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/commitree/commitree/storage/storagetest"
)

// TestConformance requires a reachable MySQL instance; set
// COMMITREE_MYSQL_TEST_DSN to run it, e.g.
//
//	COMMITREE_MYSQL_TEST_DSN="root:root@tcp(127.0.0.1:3306)/commitree_test" go test ./...
func TestConformance(t *testing.T) {
	dsn := os.Getenv("COMMITREE_MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("COMMITREE_MYSQL_TEST_DSN not set")
	}

	s, err := Open(dsn)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.ClearAll(context.Background()))

	storagetest.RunConformance(t, s)
}
