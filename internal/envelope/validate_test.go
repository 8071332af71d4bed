package envelope

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndValidate_HappyPath(t *testing.T) {
	raw := []byte(`{"sender":"SimpleClient","elem":"square_request","timestamp":1.5,"data":{"number":7},"request_id":"r1"}`)
	w, err := ParseAndValidate(raw)
	require.NoError(t, err)
	assert.Equal(t, "SimpleClient", w.Sender)
	assert.Equal(t, "square_request", w.Elem)
	assert.Equal(t, "r1", w.RequestID)
	assert.Equal(t, 7.0, w.Data["number"])
}

func TestParseAndValidate_NonMapping(t *testing.T) {
	_, err := ParseAndValidate([]byte(`"not an object"`))
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestParseAndValidate_MissingSender(t *testing.T) {
	_, err := ParseAndValidate([]byte(`{"elem":"heartbeat"}`))
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sender", verr.Field)
}

func TestParseAndValidate_MissingElem(t *testing.T) {
	_, err := ParseAndValidate([]byte(`{"sender":"HydraClient"}`))
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "elem", verr.Field)
}

func TestParseAndValidate_BadSenderRole(t *testing.T) {
	_, err := ParseAndValidate([]byte(`{"sender":"TotallyNotARole","elem":"heartbeat"}`))
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sender", verr.Field)
}

func TestParseAndValidate_EmptyElem(t *testing.T) {
	_, err := ParseAndValidate([]byte(`{"sender":"HydraClient","elem":""}`))
	require.Error(t, err)
}

func TestParseAndValidate_DataMustBeMapping(t *testing.T) {
	_, err := ParseAndValidate([]byte(`{"sender":"HydraClient","elem":"heartbeat","data":"nope"}`))
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "data", verr.Field)
}

func TestParseAndValidate_NegativeTimestamp(t *testing.T) {
	_, err := ParseAndValidate([]byte(`{"sender":"HydraClient","elem":"heartbeat","timestamp":-1}`))
	require.Error(t, err)
}

func TestParseAndValidate_EmptyClientIDRejected(t *testing.T) {
	_, err := ParseAndValidate([]byte(`{"sender":"HydraClient","elem":"heartbeat","client_id":""}`))
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "client_id", verr.Field)
}

func TestParseAndValidate_UnknownKeysTolerated(t *testing.T) {
	w, err := ParseAndValidate([]byte(`{"sender":"HydraClient","elem":"heartbeat","extra_field":"kept"}`))
	require.NoError(t, err)
	assert.Equal(t, "heartbeat", w.Elem)

	require.Contains(t, w.Extra, "extra_field")
	assert.JSONEq(t, `"kept"`, string(w.Extra["extra_field"]))

	remarshaled, err := json.Marshal(w)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(remarshaled, &out))
	assert.Equal(t, "kept", out["extra_field"])
}

func TestParseAndValidate_MultipleUnknownKeysAllSurvive(t *testing.T) {
	w, err := ParseAndValidate([]byte(`{"sender":"HydraClient","elem":"heartbeat","foo":1,"bar":{"nested":true}}`))
	require.NoError(t, err)
	require.Len(t, w.Extra, 2)

	remarshaled, err := json.Marshal(w)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(remarshaled, &out))
	assert.Equal(t, 1.0, out["foo"])
	assert.Equal(t, map[string]interface{}{"nested": true}, out["bar"])
}

func TestValidate_AcceptsWellFormedWire(t *testing.T) {
	w := &Wire{Sender: "HydraClient", Elem: "heartbeat"}
	assert.NoError(t, Validate(w))
}

func TestValidate_RejectsBadRole(t *testing.T) {
	w := &Wire{Sender: "NotARole", Elem: "heartbeat"}
	err := Validate(w)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sender", verr.Field)
}

func TestParseAndValidate_OversizeEnvelopeRejected(t *testing.T) {
	big := strings.Repeat("x", MaxEnvelopeBytes+1)
	_, err := ParseAndValidate([]byte(`{"sender":"HydraClient","elem":"heartbeat","data":{"blob":"` + big + `"}}`))
	require.Error(t, err)
}

func TestParseAndValidate_OversizeDataRejected(t *testing.T) {
	big := strings.Repeat("x", MaxDataBytes+1)
	raw := []byte(`{"sender":"HydraClient","elem":"heartbeat","data":{"blob":"` + big + `"}}`)
	_, err := ParseAndValidate(raw)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "data", verr.Field)
}
