package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"recipe-ingest-service/internal/pipeline"
)

func TestSubscriberBuffer_HoldsWholeRun(t *testing.T) {
	assert.Equal(t, cap(pipeline.NewStream(0).Events()), subscriberBuffer)
}
