package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hakim/censysmatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestResultBSONConversion(t *testing.T) {
	createdAt := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	res := &models.MatchResult{
		IP:        "192.0.2.10",
		Zones:     []string{"example.com"},
		AWS:       true,
		Domains:   []string{"www.example.com"},
		CreatedAt: createdAt,
		Fields: map[string]json.RawMessage{
			"_id":      json.RawMessage(`"stale"`),
			"ip":       json.RawMessage(`"192.0.2.10"`),
			"location": json.RawMessage(`{"country":"US","lat":37.5}`),
		},
	}

	doc, err := resultToBSON(res)
	require.NoError(t, err)

	m := doc.Map()
	assert.NotContains(t, m, "_id")
	assert.Equal(t, createdAt, m["createdAt"])
	assert.Equal(t, true, m["aws"])
	assert.Equal(t, "192.0.2.10", m["ip"])

	// Round trip through the driver's encoding
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var stored bson.D
	require.NoError(t, bson.Unmarshal(raw, &stored))

	back, err := resultFromBSON(stored)
	require.NoError(t, err)

	assert.Equal(t, "192.0.2.10", back.IP)
	assert.Equal(t, []string{"example.com"}, back.Zones)
	assert.True(t, back.AWS)
	assert.False(t, back.Azure)
	assert.Equal(t, []string{"www.example.com"}, back.Domains)
	assert.True(t, createdAt.Equal(back.CreatedAt))
	assert.JSONEq(t, `{"country":"US","lat":37.5}`, string(back.Fields["location"]))
	assert.NotContains(t, back.Fields, "_id")
}
