package platform

import (
	"io"
	"os"
	"sync"
)

const bufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// copyReadWrite copies data using positional reads and writes with a pooled
// buffer, leaving both file offsets untouched.
func copyReadWrite(dst, src *os.File) (CopyResult, error) {
	bufp := bufPool.Get().(*[]byte) //nolint:errcheck,forcetypeassert // pool only holds *[]byte
	defer bufPool.Put(bufp)
	buf := *bufp

	var offset int64
	for {
		n, rerr := src.ReadAt(buf, offset)
		if n > 0 {
			if _, err := dst.WriteAt(buf[:n], offset); err != nil {
				return CopyResult{BytesWritten: offset, Method: ReadWrite}, err
			}
			offset += int64(n)
		}
		if rerr == io.EOF {
			return CopyResult{BytesWritten: offset, Method: ReadWrite}, nil
		}
		if rerr != nil {
			return CopyResult{BytesWritten: offset, Method: ReadWrite}, rerr
		}
	}
}
