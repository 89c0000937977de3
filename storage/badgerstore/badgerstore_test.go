package badgerstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/commitree/commitree/storage/storagetest"
)

func TestConformance(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	storagetest.RunConformance(t, s)
}
