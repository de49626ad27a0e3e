package models

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SearchRequest
		wantErr error
	}{
		{"valid", SearchRequest{Query: "rice cooker"}, nil},
		{"empty query", SearchRequest{Query: "   "}, ErrEmptyQuery},
		{"min above max", SearchRequest{Query: "tv", MinBudget: Float(2000), MaxBudget: Float(500)}, ErrInvalidBudget},
		{"negative min", SearchRequest{Query: "tv", MinBudget: Float(-1)}, ErrInvalidBudget},
		{"equal bounds", SearchRequest{Query: "tv", MinBudget: Float(500), MaxBudget: Float(500)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestScrapingResult_JSONShape(t *testing.T) {
	data, err := json.Marshal(Success(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"products":[],"error":null}`, string(data))

	data, err = json.Marshal(Failure("Jumia: status 503"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"products":[],"error":"Jumia: status 503"}`, string(data))
}

func TestSuccess_JoinsErrors(t *testing.T) {
	res := Success([]Product{{Title: "TV", Price: 10, Store: "Jumia"}}, "", "Jiji: blocked", " ", "Melcom: timeout")
	assert.Equal(t, "Jiji: blocked; Melcom: timeout", res.ErrorText())
	assert.Nil(t, Success(nil, "", "").Error)
}

func TestScrapingResult_CloneIsDeep(t *testing.T) {
	orig := Success([]Product{{
		Title: "TV", Price: 10, Store: "Jumia",
		Metadata: Metadata{RelevancyScore: Float(0.5), Extras: map[string]string{"k": "v"}},
	}})
	c := orig.Clone()
	*c.Products[0].Metadata.RelevancyScore = 1
	c.Products[0].Metadata.Extras["k"] = "changed"

	assert.Equal(t, 0.5, *orig.Products[0].Metadata.RelevancyScore)
	assert.Equal(t, "v", orig.Products[0].Metadata.Extras["k"])
}

func TestFetchError_Is(t *testing.T) {
	var err error = &FetchError{URL: "https://www.jumia.com.gh", StatusCode: http.StatusForbidden}
	assert.True(t, errors.Is(err, ErrFetch))
	assert.False(t, errors.Is(err, ErrBlocked))
	assert.Contains(t, err.Error(), "status 403")
}
