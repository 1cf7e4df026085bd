package polymarket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

// gammaFixture serializes the array fields as JSON-encoded strings, the
// shape the production endpoint actually returns.
func gammaFixture(conditionID, question string, tokenIDs []string) string {
	return fmt.Sprintf(`{
		"conditionId": %q,
		"question": %q,
		"slug": "fixture-slug",
		"outcomes": "[\"Yes\", \"No\"]",
		"outcomePrices": "[\"0.65\", \"0.35\"]",
		"clobTokenIds": "[\"%s\"]"
	}`, conditionID, question, strings.Join(tokenIDs, `\", \"`))
}

func TestGetBatchByTokenDecodesStringArrays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "tok1,tok2", r.URL.Query().Get("clob_token_ids"))
		fmt.Fprintf(w, "[%s]", gammaFixture("0xcond1", "Rain tomorrow?", []string{"tok1", "tok2"}))
	}))
	defer srv.Close()

	cat := NewCatalog(newTestClient(srv))
	got, err := cat.GetBatch(context.Background(), []string{"tok1", "tok2"}, domain.KeyByToken)
	require.NoError(t, err)
	require.Len(t, got, 2)

	m := got["tok1"]
	assert.Equal(t, "0xcond1", m.ConditionID)
	assert.Equal(t, "Rain tomorrow?", m.Question)
	assert.Equal(t, []string{"Yes", "No"}, m.Outcomes)
	require.Len(t, m.OutcomePrices, 2)
	assert.InDelta(t, 65.0, m.OutcomePrices[0], 1e-9, "prices convert to cents")
	assert.InDelta(t, 35.0, m.OutcomePrices[1], 1e-9)
}

func TestGetBatchServesRepeatsFromCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprintf(w, "[%s]", gammaFixture("0xcond1", "Rain tomorrow?", []string{"tok1"}))
	}))
	defer srv.Close()

	cat := NewCatalog(newTestClient(srv))
	for i := 0; i < 3; i++ {
		_, err := cat.GetBatch(context.Background(), []string{"tok1"}, domain.KeyByToken)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)

	// A market fetched by token is also cached under its condition id.
	got, err := cat.GetBatch(context.Background(), []string{"0xcond1"}, domain.KeyByCondition)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, calls)
}

func TestGetBatchChunksLongRequests(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Query().Get("condition_ids"))
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	ids := make([]string, 0, 2*catalogChunkSize+1)
	for i := 0; i < 2*catalogChunkSize+1; i++ {
		ids = append(ids, fmt.Sprintf("0xcond%d", i))
	}

	cat := NewCatalog(newTestClient(srv))
	_, err := cat.GetBatch(context.Background(), ids, domain.KeyByCondition)
	require.NoError(t, err)
	assert.Len(t, requests, 3)
	assert.Len(t, strings.Split(requests[0], ","), catalogChunkSize)
}

func TestGetBatchPartialChunkFailureIsSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("condition_ids"), "0xbad0") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "[%s]", gammaFixture("0xgood0", "Q", []string{"tokA"}))
	}))
	defer srv.Close()

	bad := make([]string, catalogChunkSize)
	for i := range bad {
		bad[i] = fmt.Sprintf("0xbad%d", i)
	}

	cat := NewCatalog(newTestClient(srv))
	got, err := cat.GetBatch(context.Background(), append(bad, "0xgood0"), domain.KeyByCondition)
	require.NoError(t, err, "one failed chunk does not fail the batch")
	assert.Len(t, got, 1)
}

func TestGetBatchErrorsWhenEveryChunkFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cat := NewCatalog(newTestClient(srv))
	got, err := cat.GetBatch(context.Background(), []string{"tok1"}, domain.KeyByToken)
	assert.Error(t, err)
	assert.Empty(t, got)
}

func TestGetOneUnknownTokenReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	cat := NewCatalog(newTestClient(srv))
	m, err := cat.GetOne(context.Background(), "tok-unknown")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestFlexList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, flexList([]byte(`["a","b"]`)))
	assert.Equal(t, []string{"a", "b"}, flexList([]byte(`"[\"a\",\"b\"]"`)))
	assert.Nil(t, flexList(nil))
	assert.Nil(t, flexList([]byte(`42`)))
}
