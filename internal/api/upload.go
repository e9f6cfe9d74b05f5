package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

type tempUpload struct {
	f           *os.File
	path        string
	size        int64
	contentType string
}

// persistTemp spools body to a temp file so the object store gets an exact
// size, sniffing the content type from the first 512 bytes.
func persistTemp(body io.Reader, maxSize int64) (*tempUpload, error) {
	tmpFile, err := os.CreateTemp("", "photosearch-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	fail := func(err error) (*tempUpload, error) {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, err
	}
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > maxSize {
				return fail(fmt.Errorf("file exceeds limit (%d bytes)", maxSize))
			}
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				return fail(fmt.Errorf("write temp file: %w", err))
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return fail(fmt.Errorf("read upload: %w", readErr))
		}
	}
	if written == 0 {
		return fail(errors.New("empty file"))
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return fail(fmt.Errorf("rewind temp file: %w", err))
	}
	return &tempUpload{
		f:           tmpFile,
		path:        tmpFile.Name(),
		size:        written,
		contentType: http.DetectContentType(sniff),
	}, nil
}
