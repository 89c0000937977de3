package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/commitree/commitree/apperr"
	"github.com/commitree/commitree/proof"
)

type smtInsertRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type smtKeyRequest struct {
	Key string `json:"key"`
}

type smtVerifyMembershipRequest struct {
	Key   string      `json:"key"`
	Value string      `json:"value"`
	Proof proof.Proof `json:"proof"`
	Root  string      `json:"root"`
}

type smtVerifyNonMembershipRequest struct {
	Key   string      `json:"key"`
	Proof proof.Proof `json:"proof"`
	Root  string      `json:"root"`
}

func (s *Server) handleSMTInsert(rc *requestContext, w http.ResponseWriter, r *http.Request) {
	var req smtInsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode request body"))
		return
	}
	key, err := hex.DecodeString(req.Key)
	if err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode key hex"))
		return
	}
	value, err := hex.DecodeString(req.Value)
	if err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode value hex"))
		return
	}
	if err := s.smtTree.Insert(rc.ctx, key, value); err != nil {
		writeError(rc, w, err)
		return
	}
	s.cache.Invalidate(treeID, kindSMT)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSMTGetRoot(rc *requestContext, w http.ResponseWriter, _ *http.Request) {
	if cached, ok := s.cache.GetRoot(treeID, kindSMT); ok {
		writeJSON(w, http.StatusOK, map[string]string{"root": cached})
		return
	}

	root, err := s.smtTree.Root(rc.ctx)
	if err != nil {
		writeError(rc, w, err)
		return
	}
	rootHex := encodeHex(root)
	s.cache.SetRoot(treeID, kindSMT, rootHex)
	writeJSON(w, http.StatusOK, map[string]string{"root": rootHex})
}

func (s *Server) handleSMTGetProof(rc *requestContext, w http.ResponseWriter, r *http.Request) {
	var req smtKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode request body"))
		return
	}
	key, err := hex.DecodeString(req.Key)
	if err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode key hex"))
		return
	}

	if cached, ok := s.cache.GetProof(treeID, kindSMT, req.Key); ok {
		var p proof.Proof
		if err := json.Unmarshal([]byte(cached), &p); err == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"proof": p})
			return
		}
	}

	p, err := s.smtTree.GetProof(rc.ctx, key)
	if err != nil {
		writeError(rc, w, err)
		return
	}
	if encoded, err := json.Marshal(p); err == nil {
		s.cache.SetProof(treeID, kindSMT, req.Key, string(encoded))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"proof": p})
}

func (s *Server) handleSMTVerifyMembership(rc *requestContext, w http.ResponseWriter, r *http.Request) {
	var req smtVerifyMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode request body"))
		return
	}
	key, err := hex.DecodeString(req.Key)
	if err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode key hex"))
		return
	}
	value, err := hex.DecodeString(req.Value)
	if err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode value hex"))
		return
	}
	rootBytes, err := hex.DecodeString(req.Root)
	if err != nil || len(rootBytes) != 32 {
		writeError(rc, w, apperr.New(apperr.InvalidInput, "malformed root hex"))
		return
	}
	var root [32]byte
	copy(root[:], rootBytes)

	ok := s.smtTree.VerifyMembership(key, value, req.Proof, root)
	writeJSON(w, http.StatusOK, map[string]bool{"valid": ok})
}

func (s *Server) handleSMTVerifyNonMembership(rc *requestContext, w http.ResponseWriter, r *http.Request) {
	var req smtVerifyNonMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode request body"))
		return
	}
	key, err := hex.DecodeString(req.Key)
	if err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode key hex"))
		return
	}
	rootBytes, err := hex.DecodeString(req.Root)
	if err != nil || len(rootBytes) != 32 {
		writeError(rc, w, apperr.New(apperr.InvalidInput, "malformed root hex"))
		return
	}
	var root [32]byte
	copy(root[:], rootBytes)

	ok := s.smtTree.VerifyNonMembership(key, req.Proof, root)
	writeJSON(w, http.StatusOK, map[string]bool{"valid": ok})
}
