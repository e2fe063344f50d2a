package manifest

import (
	"bytes"
	"errors"
	"io"
)

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

func isEOF(err error) bool { return errors.Is(err, io.EOF) }
