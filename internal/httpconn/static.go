package httpconn

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xujiajun/mmap-go"
)

// mappedFile is a memory-mapped static file region, owned by the
// connection that opened it until Close unmaps and closes it. Grounded on
// the original's m_file_address/m_file_stat pair, generalized from raw
// mmap(2) to github.com/xujiajun/mmap-go per the domain-stack expansion.
type mappedFile struct {
	f    *os.File
	data mmap.MMap
	size int64
}

// resolveStaticPath joins root and requestedURL, rejecting any path that
// would traverse outside root (§4.F: "path traversal disallowed").
func resolveStaticPath(root, requestedURL string) (string, error) {
	full := filepath.Join(root, requestedURL)
	if !strings.HasPrefix(full, filepath.Clean(root)+string(filepath.Separator)) && full != filepath.Clean(root) {
		return "", ErrForbidden
	}
	return full, nil
}

// openStaticFile stats and memory-maps path read-only. The caller owns
// the returned mappedFile and must Close it.
func openStaticFile(path string) (*mappedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}
	if info.Mode().Perm()&0o044 == 0 {
		return nil, ErrForbidden
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, ErrForbidden
	}

	if info.Size() == 0 {
		return &mappedFile{f: f, size: 0}, nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, ErrInternal
	}

	return &mappedFile{f: f, data: data, size: info.Size()}, nil
}

func (m *mappedFile) Close() error {
	if m.data != nil {
		m.data.Unmap()
	}
	return m.f.Close()
}
