package api

import (
	"bytes"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"
	ierr "github.com/septivank/meter-reading-service/internal/errors"
)

// sniffLen is how much of an upload filetype needs to recognise binary formats.
const sniffLen = 262

// openUpload returns a reader over the "file" form field. Empty files and
// files recognised as a binary format are rejected.
func openUpload(c *gin.Context, maxBytes int64) (io.Reader, func() error, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, nil, ierr.WithError(err).
			WithHint("A file must be uploaded in the \"file\" form field").
			Mark(ierr.ErrValidation)
	}
	if header.Size == 0 {
		return nil, nil, ierr.NewError("uploaded file is empty").
			WithHint("File is empty").
			Mark(ierr.ErrValidation)
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return nil, nil, ierr.NewError("uploaded file is too large").
			WithHintf("File is larger than %d bytes", maxBytes).
			Mark(ierr.ErrValidation)
	}

	file, err := header.Open()
	if err != nil {
		return nil, nil, ierr.WithError(err).
			WithHint("The uploaded file could not be read").
			Mark(ierr.ErrParse)
	}

	reader, err := rejectBinary(file)
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return reader, file.Close, nil
}

func rejectBinary(file multipart.File) (io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, ierr.WithError(err).
			WithHint("The uploaded file could not be read").
			Mark(ierr.ErrParse)
	}
	head = head[:n]

	kind, _ := filetype.Match(head)
	if kind != filetype.Unknown {
		return nil, ierr.NewError("uploaded file is " + kind.MIME.Value).
			WithHintf("Expected a delimited text file, got %s", kind.MIME.Value).
			Mark(ierr.ErrValidation)
	}
	return io.MultiReader(bytes.NewReader(head), file), nil
}
