package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/JonMunkholm/sheetgate/internal/core"
	"github.com/JonMunkholm/sheetgate/internal/sheet"
)

// multipartOverhead is the allowance for form boundaries and part headers
// on top of the file size ceiling.
const multipartOverhead = 64 * 1024

type uploadResponse struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message"`
	Filename string       `json:"filename"`
	Data     []orderedRow `json:"data"`
}

type uploadErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleUpload accepts a single spreadsheet in the "file" form field and
// returns its rows keyed by header.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	gate := s.ingestor.Gate()
	maxSize := gate.MaxSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondUploadError(w, r, core.UploadRejected(gate.TooLargeMessage("")))
			return
		}
		s.respondUploadError(w, r, core.UploadRejected(sheet.MsgNoFile))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondUploadError(w, r, core.UploadRejected(sheet.MsgNoFile))
		return
	}
	defer file.Close()

	info := sheet.FileInfo{
		Name:      header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Size:      header.Size,
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		s.respondUploadError(w, r, core.Infrastructure("Failed to read upload", err))
		return
	}
	if info.Size <= 0 {
		info.Size = int64(len(data))
	}

	res, err := s.ingestor.Ingest(r.Context(), info, data)
	if err != nil {
		s.respondUploadError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:  true,
		Message:  sheet.MsgUploadSucceeded,
		Filename: info.Name,
		Data:     orderRows(res),
	})
}

// orderedRow encodes a row as a JSON object whose keys follow the sheet's
// column order rather than Go's sorted map order.
type orderedRow struct {
	headers []string
	row     sheet.Row
}

// orderRows never returns nil, so a header-only sheet encodes as [].
func orderRows(res sheet.ParseResult) []orderedRow {
	rows := make([]orderedRow, len(res.Rows))
	for i, row := range res.Rows {
		rows[i] = orderedRow{headers: res.Headers, row: row}
	}
	return rows
}

func (o orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, h := range o.headers {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.row[h])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
