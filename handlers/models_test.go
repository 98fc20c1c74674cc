package handlers

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aliceModel = "entities\nPERSON: name\nend\n\ndialogues\ngreet: hi\nend"

func TestModelStoreAndFetch(t *testing.T) {
	api := newTestAPI(t)
	access, _ := api.signup(t, "alice")

	body, ct := modelUpload(t, "alice.dflow", []byte(aliceModel))
	w := api.do(t, http.MethodPost, "/model", access, ct, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored := decode(t, w)
	id := stored["id"].(string)
	assert.Equal(t, "alice", stored["username"])
	assert.Equal(t, aliceModel, stored["raw"])

	w = api.do(t, http.MethodGet, "/model/"+id, access, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w)["id"])

	w = api.do(t, http.MethodGet, "/model/"+id+"/file", access, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "model-"+id+".dflow")
	assert.Equal(t, aliceModel, w.Body.String())

	w = api.do(t, http.MethodGet, "/model/missing", access, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Model does not exist", decode(t, w)["detail"])
}

func TestModelStoreB64AndLast(t *testing.T) {
	api := newTestAPI(t)
	access, _ := api.signup(t, "alice")

	first := base64.StdEncoding.EncodeToString([]byte("gslots\nold\nend"))
	w := api.do(t, http.MethodPost, "/model/b64?fenc="+url.QueryEscape(first), access, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	second := base64.URLEncoding.EncodeToString([]byte("gslots\nnew\nend"))
	w = api.do(t, http.MethodPost, "/model/b64?fenc="+url.QueryEscape(second), access, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/user/alice/model/last", access, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gslots\nnew\nend", decode(t, w)["raw"])

	w = api.do(t, http.MethodGet, "/user/alice/model/last/file", access, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gslots\nnew\nend", w.Body.String())

	w = api.do(t, http.MethodGet, "/user/alice/models", access, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gslots\\nold\\nend")

	w = api.do(t, http.MethodGet, "/user/nobody/model/last", access, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(t, http.MethodGet, "/user/n!/model/last", access, "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestModelStoreRejectsEmpty(t *testing.T) {
	api := newTestAPI(t)
	access, _ := api.signup(t, "alice")

	body, ct := modelUpload(t, "empty.dflow", []byte("   \n"))
	w := api.do(t, http.MethodPost, "/model", access, ct, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/model/b64?fenc=%25%25", access, "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(t, http.MethodPost, "/model", access, "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestModelStoreRejectsUnmergeable(t *testing.T) {
	api := newTestAPI(t)
	access, _ := api.signup(t, "alice")

	body, ct := modelUpload(t, "nul.dflow", []byte("entities\nB\x00\nend"))
	w := api.do(t, http.MethodPost, "/model", access, ct, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	enc := base64.StdEncoding.EncodeToString([]byte("entities\nno terminator"))
	w = api.do(t, http.MethodPost, "/model/b64?fenc="+url.QueryEscape(enc), access, "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w)["detail"], "entities")

	w = api.do(t, http.MethodGet, "/user/alice/model/last", access, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = modelUpload(t, "ok.dflow", []byte(aliceModel))
	w = api.do(t, http.MethodPost, "/model", access, ct, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.do(t, http.MethodGet, "/merge", access, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestModelDeleteIsOwnerOnly(t *testing.T) {
	api := newTestAPI(t)
	alice, _ := api.signup(t, "alice")
	bob, _ := api.signup(t, "bobby")

	body, ct := modelUpload(t, "a.dflow", []byte(aliceModel))
	w := api.do(t, http.MethodPost, "/model", alice, ct, body)
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["id"].(string)

	w = api.do(t, http.MethodDelete, "/model/"+id, bob, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodDelete, "/model/"+id, alice, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/model/"+id, alice, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodDelete, "/model/"+id, alice, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
