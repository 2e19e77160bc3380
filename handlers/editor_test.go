package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filconv/filconv/internal/filestore"
	"github.com/filconv/filconv/internal/pdftest"
)

func TestUploadForEditAndReload(t *testing.T) {
	env := newTestEnv(t)
	doc := pdftest.Pages(1)

	w := env.do(multipartRequest(t, "/upload-for-edit", nil, pdfPart("pdfFile", "my draft.pdf", doc)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "PDF uploaded successfully!", body["message"])
	require.Regexp(t, `-my_draft\.pdf$`, body["fileId"])

	// the editor may reload the file
	for i := 0; i < 2; i++ {
		dl := env.get("/download-pdf-for-edit/" + body["fileId"])
		require.Equal(t, http.StatusOK, dl.Code)
		require.Equal(t, "application/pdf", dl.Header().Get("Content-Type"))
		require.Contains(t, dl.Header().Get("Content-Disposition"), "inline")
		require.Equal(t, doc, dl.Body.Bytes())
	}
	require.Equal(t, 1, env.count(t, filestore.Edit))
}

func TestUploadForEditSniffsGenericType(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest(t, "/upload-for-edit", nil,
		filePart{field: "pdfFile", filename: "scan.pdf", contentType: "application/octet-stream", data: pdftest.Pages(1)}))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUploadForEditRejects(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(multipartRequest(t, "/upload-for-edit", nil,
		filePart{field: "pdfFile", filename: "a.png", contentType: "image/png", data: []byte("\x89PNG")}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"message":"Only PDF files are allowed for editing!"}`, w.Body.String())

	w = env.do(multipartRequest(t, "/upload-for-edit", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"message":"No PDF file uploaded."}`, w.Body.String())

	env.srv.Config.Storage.MaxEditUpload = 64
	w = env.do(multipartRequest(t, "/upload-for-edit", nil, pdfPart("pdfFile", "big.pdf", pdftest.Pages(2))))
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	require.Equal(t, 0, env.count(t, filestore.Edit))
}

func TestDownloadNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/download-pdf-for-edit/missing.pdf")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "File not found for editing.", w.Body.String())

	for _, p := range []string{"/downloads/nope.pdf", "/download/compressed/x..y", "/download/split/nope.zip"} {
		w := env.get(p)
		require.Equal(t, http.StatusNotFound, w.Code, p)
		require.Equal(t, "File not found.", w.Body.String())
	}
}
