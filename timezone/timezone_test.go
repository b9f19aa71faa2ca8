package timezone

import (
	"testing"

	"ekadashi.app/models"
	"github.com/stretchr/testify/assert"
)

func TestBucketFromCoordinates_InsideBoxes(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		expected models.TimezoneBucket
	}{
		{"NewDelhi", 28.6139, 77.2090, models.BucketIST},
		{"Mumbai", 19.0760, 72.8777, models.BucketIST},
		{"NewYork", 40.7128, -74.0060, models.BucketEST},
		{"Chicago", 41.8781, -87.6298, models.BucketCST},
		{"Denver", 39.7392, -104.9903, models.BucketMST},
		{"LosAngeles", 34.0522, -118.2437, models.BucketPST},
		{"SanJose", 37.3382, -121.8863, models.BucketPST},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BucketFromCoordinates(tt.lat, tt.lng))
		})
	}
}

func TestBucketFromCoordinates_OutsideAllBoxes(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
	}{
		{"London", 51.5074, -0.1278},
		{"Sydney", -33.8688, 151.2093},
		{"SaoPaulo", -23.5505, -46.6333},
		{"NorthPole", 89.9, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, models.DefaultBucket, BucketFromCoordinates(tt.lat, tt.lng))
		})
	}
}

// Shared meridian edges belong to the earlier box in declaration order
func TestBucketFromCoordinates_SharedEdgeTieBreak(t *testing.T) {
	assert.Equal(t, models.BucketPST, BucketFromCoordinates(40.0, -114.0))
	assert.Equal(t, models.BucketMST, BucketFromCoordinates(40.0, -102.0))
	assert.Equal(t, models.BucketCST, BucketFromCoordinates(40.0, -85.0))
}

func TestBucketFromDeviceTimezoneID_KnownIdentifiers(t *testing.T) {
	tests := []struct {
		id       string
		expected models.TimezoneBucket
	}{
		{"Asia/Kolkata", models.BucketIST},
		{"Asia/Calcutta", models.BucketIST},
		{"America/New_York", models.BucketEST},
		{"America/Chicago", models.BucketCST},
		{"America/Denver", models.BucketMST},
		{"America/Phoenix", models.BucketMST},
		{"America/Los_Angeles", models.BucketPST},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.expected, BucketFromDeviceTimezoneID(tt.id))
		})
	}
}

func TestBucketFromDeviceTimezoneID_PrefixHeuristics(t *testing.T) {
	assert.Equal(t, models.BucketIST, BucketFromDeviceTimezoneID("Asia/Dhaka"))
	assert.Equal(t, models.BucketEST, BucketFromDeviceTimezoneID("America/Indiana/Indianapolis"))
	assert.Equal(t, models.BucketEST, BucketFromDeviceTimezoneID("America/Montreal"))
}

func TestBucketFromDeviceTimezoneID_UnknownFallsBackToDefault(t *testing.T) {
	assert.Equal(t, models.DefaultBucket, BucketFromDeviceTimezoneID("Europe/London"))
	assert.Equal(t, models.DefaultBucket, BucketFromDeviceTimezoneID(""))
	assert.Equal(t, models.DefaultBucket, BucketFromDeviceTimezoneID("garbage"))
}
