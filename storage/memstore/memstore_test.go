package memstore

import (
	"testing"

	"github.com/commitree/commitree/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.RunConformance(t, New())
}
