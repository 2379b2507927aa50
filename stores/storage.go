package stores

import (
	"os"

	"github.com/scottdaly/drkr/core"
	"github.com/scottdaly/drkr/stores/aws"
	"github.com/scottdaly/drkr/stores/filesystem"
	"github.com/scottdaly/drkr/stores/memory"
	"github.com/scottdaly/drkr/stores/sqlite"
	"github.com/sirupsen/logrus"
)

// GetStore picks the archive store from STORAGE_TYPE. Unknown or empty values
// fall back to an in-memory store.
func GetStore() core.ArchiveStore {
	storageType := os.Getenv("STORAGE_TYPE")
	var store core.ArchiveStore

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		storageField["basePath"] = basePath
		store = filesystem.NewArchiveStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		storageField["bucketName"] = bucketName
		store = aws.NewStore(bucketName)
	default:
		store = memory.NewArchiveStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
