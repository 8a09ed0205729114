package httpserver

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"spherelink/internal/assembly"
	"spherelink/internal/domain"
)

// memoryLimit is how much of a multipart body is held in memory; larger
// parts spill to temp files.
const memoryLimit = 32 << 20

type multipartForm struct {
	Fields map[string]string
	Files  map[string]assembly.Attachment
}

// readMultipart flattens a multipart body to its first value per field and
// first file per part name. Exceeding limit yields an ErrTooLarge error.
func readMultipart(r *http.Request, limit int64) (multipartForm, error) {
	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		if isTooLarge(err) {
			return multipartForm{}, tooLarge(limit)
		}
		return multipartForm{}, domain.ValidationCause(err, "request must be multipart/form-data")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	out := multipartForm{Fields: map[string]string{}, Files: map[string]assembly.Attachment{}}
	for k, vs := range r.MultipartForm.Value {
		if len(vs) > 0 {
			out.Fields[k] = vs[0]
		}
	}
	for k, fhs := range r.MultipartForm.File {
		if len(fhs) == 0 {
			continue
		}
		data, err := readFile(fhs[0])
		if err != nil {
			if isTooLarge(err) {
				return multipartForm{}, tooLarge(limit)
			}
			return multipartForm{}, domain.ValidationCause(err, "could not read part %s", k)
		}
		out.Files[k] = assembly.Attachment{Filename: fhs[0].Filename, Data: data}
	}
	return out, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// isTooLarge matches the body limit error, including where the multipart
// reader flattens it to text.
func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}
