package httpapi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/commitree/commitree/storage/memstore"
	"github.com/commitree/commitree/trees/imt"
	"github.com/commitree/commitree/trees/smt"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	imtTree := imt.NewInMemory()
	smtTree, err := smt.Open(memstore.New(), 8)
	require.NoError(t, err)
	return NewServer(imtTree, smtTree, nil, nil, nil)
}

func TestIMTAddLeafAndGetRoot(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	leaf := hex.EncodeToString(bytes.Repeat([]byte{0x01}, 32))
	body, _ := json.Marshal(map[string]string{"leaf": leaf})
	req := httptest.NewRequest(http.MethodPost, "/imt/add-leaf", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/imt/get-root", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, leaf, resp["root"])
}

func TestIMTGetRootOnEmptyTreeIs400(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/imt/get-root", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIMTAddLeafRejectsMalformedHex(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"leaf": "not-hex"})
	req := httptest.NewRequest(http.MethodPost, "/imt/add-leaf", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSMTInsertAndVerifyMembership(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	key := hex.EncodeToString([]byte("alice"))
	value := hex.EncodeToString([]byte("100"))
	body, _ := json.Marshal(map[string]string{"key": key, "value": value})
	req := httptest.NewRequest(http.MethodPost, "/smt/insert", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/smt/get-root", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var rootResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rootResp))

	body, _ = json.Marshal(map[string]string{"key": key})
	req = httptest.NewRequest(http.MethodPost, "/smt/get-proof", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var proofResp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proofResp))

	verifyBody, _ := json.Marshal(map[string]interface{}{
		"key": key, "value": value, "proof": json.RawMessage(proofResp["proof"]), "root": rootResp["root"],
	})
	req = httptest.NewRequest(http.MethodPost, "/smt/verify-membership", bytes.NewReader(verifyBody))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var verifyResp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verifyResp))
	require.True(t, verifyResp["valid"])
}
