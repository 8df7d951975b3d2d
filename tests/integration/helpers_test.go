package integration

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/tests/testutil"
	"github.com/stretchr/testify/require"
)

var pdfContent = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

// doJSON sends body as uid and decodes the JSON envelope
func doJSON(t *testing.T, router *gin.Engine, method, path, uid string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set(testutil.UserHeader, uid)
	}
	return serve(t, router, req)
}

// doUpload posts a multipart file as uid
func doUpload(t *testing.T, router *gin.Engine, path, uid, filename string, content []byte, fields map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(testutil.UserHeader, uid)
	return serve(t, router, req)
}

func serve(t *testing.T, router *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var response map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	}
	return w, response
}

func errorCode(response map[string]interface{}) string {
	if errData, ok := response["error"].(map[string]interface{}); ok {
		code, _ := errData["code"].(string)
		return code
	}
	return ""
}

func dataMap(response map[string]interface{}) map[string]interface{} {
	data, _ := response["data"].(map[string]interface{})
	return data
}
