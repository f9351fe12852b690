package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fashionmarket/storefront-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/fm/topics/domain", resourceName("fm", "topics", " domain "))
	assert.Equal(t, "projects/other/topics/x", resourceName("fm", "topics", "projects/other/topics/x"))
	assert.Empty(t, resourceName("", "topics", "domain"))
	assert.Empty(t, resourceName("fm", "topics", ""))
}

func TestNewClientRequiresProjectAndTopic(t *testing.T) {
	_, err := NewClient(context.Background(), config.PubSubConfig{DomainTopic: "t"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.PubSubConfig{ProjectID: "p"}, nil)
	assert.ErrorIs(t, err, errTopicRequired)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("x"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
