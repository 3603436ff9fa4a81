package blob

import (
	"context"
	"fmt"
	"os"

	blobs3 "cellcore/internal/infra/blob/s3"
)

// Open selects an artifact store from environment configuration.
//
//	CELLCORE_BLOB_DRIVER  fs (default) | s3 | memory
//	CELLCORE_BLOB_FS_ROOT root directory for the fs driver
//
// The s3 driver reads its own CELLCORE_BLOB_S3_* variables.
func Open(ctx context.Context) (Store, error) {
	driver := Driver(os.Getenv("CELLCORE_BLOB_DRIVER"))
	switch driver {
	case "", DriverFilesystem:
		return NewFilesystem(os.Getenv("CELLCORE_BLOB_FS_ROOT"))
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return blobs3.NewStore(ctx, blobs3.ConfigFromEnv())
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}
