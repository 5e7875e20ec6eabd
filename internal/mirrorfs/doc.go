package mirrorfs

import "github.com/jacobsa/fuse/fuseutil"

// Server must implement the full fuseutil.FileSystem surface; this
// compile-time assertion is the Go analogue of the teacher's own
// `var _ fuseutil.FileSystem = &readonlyLoopbackFs{}` check.
var _ fuseutil.FileSystem = &Server{}
