package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planscape-backend/internal/models"
)

func TestMetaValue_WireShape(t *testing.T) {
	data, err := json.Marshal(models.MetaNumber(0.025))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"number","value":0.025}`, string(data))

	data, err = json.Marshal(models.MetaPath("/artifacts/7/model.obj"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"path","value":"/artifacts/7/model.obj"}`, string(data))
}

func TestMetaValue_RoundTrip(t *testing.T) {
	original := models.Metadata{
		"scaling": models.MetaMap(models.Metadata{
			"factor": models.MetaNumber(0.025),
			"source": models.MetaString("reference_wall"),
		}),
		"input": models.MetaPath("/uploads/plan.png"),
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded models.Metadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestMetaValue_UnknownKindRejected(t *testing.T) {
	var v models.MetaValue
	err := json.Unmarshal([]byte(`{"kind":"blob","value":"x"}`), &v)
	assert.Error(t, err)

	_, err = json.Marshal(models.MetaValue{Kind: "blob"})
	assert.Error(t, err)
}

func TestMetadata_CloneIsDeep(t *testing.T) {
	original := models.Metadata{
		"extract": models.MetaMap(models.Metadata{
			"rooms": models.MetaNumber(3),
		}),
	}

	clone := original.Clone()
	clone["extract"].Map["rooms"] = models.MetaNumber(99)

	assert.Equal(t, 3.0, original["extract"].Map["rooms"].Num)
}
