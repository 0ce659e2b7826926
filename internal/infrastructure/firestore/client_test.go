package firestore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/iterator"
)

func TestEmptyIsHealthy(t *testing.T) {
	assert.NoError(t, emptyIsHealthy(nil))
	assert.NoError(t, emptyIsHealthy(iterator.Done))

	unavailable := errors.New("rpc error: code = Unavailable")
	assert.ErrorIs(t, emptyIsHealthy(unavailable), unavailable)
}

func TestHealthCheck_Uninitialized(t *testing.T) {
	var fc *FirestoreClient
	assert.Error(t, fc.HealthCheck(context.Background(), "restauranteG"))
	assert.Error(t, (&FirestoreClient{}).HealthCheck(context.Background(), "restauranteG"))
}
