package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, retries int) *Client {
	return NewClient(ClientConfig{
		BaseURL:    url,
		Headers:    map[string]string{"X-Api-Key": "test-key"},
		Timeout:    2 * time.Second,
		MaxRetries: retries,
	})
}

func TestLookupSerialSuccess(t *testing.T) {
	var gotBody lookupRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "Success",
			"message": "ok",
			"payload": []map[string]any{
				{"applicantFullName": "RAM KUMAR DAS", "age": 52, "epicNumber": "WB1234567890123"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 1)
	result, err := client.LookupSerial(context.Background(), SerialQuery{
		StateCode: "S25", ACNumber: 253, PartNumber: 1, SerialNo: "12",
	})
	require.NoError(t, err)

	assert.Equal(t, "S25", gotBody.OldStateCd)
	assert.Equal(t, "253", gotBody.OldAcNo)
	assert.Equal(t, "1", gotBody.OldPartNo)
	assert.Equal(t, "12", gotBody.OldPartSerialNo)

	require.Len(t, result.Persons, 1)
	assert.Equal(t, "RAM KUMAR DAS", result.Persons[0].ApplicantFullName)
	assert.Equal(t, 52, result.Persons[0].Age)
	assert.NotEmpty(t, result.Raw)
}

func TestLookupSerialEmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "Success", "payload": []any{}})
	}))
	defer server.Close()

	result, err := newTestClient(server.URL, 1).LookupSerial(context.Background(), SerialQuery{SerialNo: "1"})
	require.NoError(t, err)
	assert.Empty(t, result.Persons)
}

func TestLookupRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "Success", "payload": []any{}})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).LookupSerial(context.Background(), SerialQuery{SerialNo: "1"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLookupDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).LookupSerial(context.Background(), SerialQuery{SerialNo: "1"})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookupNonSuccessStatusIsRetryable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "Failure", "message": "try later"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 2).LookupSerial(context.Background(), SerialQuery{SerialNo: "1"})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestPartCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body lookupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// No serial in a part-level query.
		assert.Empty(t, body.OldPartSerialNo)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "Success",
			"payload": []map[string]any{{"age": 30}, {"age": 40}, {"age": 50}},
		})
	}))
	defer server.Close()

	count, err := newTestClient(server.URL, 1).PartCount(context.Background(), 253, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
