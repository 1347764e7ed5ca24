package memory

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ahmetk3436/markops/internal/storage"
	"github.com/ahmetk3436/markops/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storagetest.StoreSuite{NewStore: func() storage.Store { return New() }})
}
