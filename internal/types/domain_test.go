package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionStatus_Entitled(t *testing.T) {
	entitled := []SubscriptionStatus{SubStatusActive, SubStatusTrialing, SubStatusPastDue}
	for _, s := range entitled {
		assert.True(t, s.Entitled(), "status %s", s)
	}

	notEntitled := []SubscriptionStatus{
		SubStatusIncomplete,
		SubStatusIncompleteExpired,
		SubStatusCanceled,
		SubStatusUnpaid,
		SubStatusPaused,
	}
	for _, s := range notEntitled {
		assert.False(t, s.Entitled(), "status %s", s)
	}
}

func TestProviderSubscription_PriceID(t *testing.T) {
	sub := &ProviderSubscription{
		Items: ProviderSubscriptionItems{
			Data: []ProviderSubscriptionItem{
				{Price: ProviderPrice{ID: "price_123"}},
				{Price: ProviderPrice{ID: "price_456"}},
			},
		},
	}
	assert.Equal(t, "price_123", sub.PriceID())
}

func TestProviderSubscription_PriceID_NoItems(t *testing.T) {
	sub := &ProviderSubscription{}
	assert.Equal(t, "", sub.PriceID())
}
