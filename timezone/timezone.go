// Package timezone maps coordinates and timezone-database identifiers to one
// of the five supported timezone buckets.
package timezone

import (
	"strings"

	"ekadashi.app/models"
)

// boundingBox is a rectangular lat/lng region approximating a bucket's area.
// The boxes are coarse by design: the domain needs five wide buckets, not
// geodesic precision, so a point near a box edge may be misclassified.
type boundingBox struct {
	bucket         models.TimezoneBucket
	minLat, maxLat float64
	minLng, maxLng float64
}

// Boxes are tested in declaration order and the first match wins. Adjacent US
// boxes share their meridian edges; the shared edge belongs to the box
// declared earlier. This tie-break is deliberate and consistent.
var boxes = []boundingBox{
	{models.BucketIST, 6.0, 37.5, 68.0, 97.5},
	{models.BucketPST, 24.0, 50.0, -125.0, -114.0},
	{models.BucketMST, 24.0, 50.0, -114.0, -102.0},
	{models.BucketCST, 24.0, 50.0, -102.0, -85.0},
	{models.BucketEST, 24.0, 50.0, -85.0, -66.5},
}

func (b boundingBox) contains(lat, lng float64) bool {
	return lat >= b.minLat && lat <= b.maxLat && lng >= b.minLng && lng <= b.maxLng
}

// BucketFromCoordinates classifies a coordinate into a supported bucket.
// A point outside every box falls back to the default (India) bucket,
// reflecting the app's primary audience.
func BucketFromCoordinates(lat, lng float64) models.TimezoneBucket {
	for _, box := range boxes {
		if box.contains(lat, lng) {
			return box.bucket
		}
	}
	return models.DefaultBucket
}

// identifierTable maps known tz-database identifiers to buckets. Used only
// when location permission has been denied and the device timezone is the
// sole signal available.
var identifierTable = map[string]models.TimezoneBucket{
	"Asia/Kolkata":        models.BucketIST,
	"Asia/Calcutta":       models.BucketIST,
	"America/New_York":    models.BucketEST,
	"America/Detroit":     models.BucketEST,
	"America/Toronto":     models.BucketEST,
	"America/Chicago":     models.BucketCST,
	"America/Winnipeg":    models.BucketCST,
	"America/Denver":      models.BucketMST,
	"America/Phoenix":     models.BucketMST,
	"America/Boise":       models.BucketMST,
	"America/Los_Angeles": models.BucketPST,
	"America/Vancouver":   models.BucketPST,
	"America/Tijuana":     models.BucketPST,
}

// BucketFromDeviceTimezoneID maps a device-reported timezone identifier to a
// bucket. Unrecognized identifiers under a known continental prefix are
// inferred by substring heuristics; anything else degrades to the default.
func BucketFromDeviceTimezoneID(id string) models.TimezoneBucket {
	if bucket, ok := identifierTable[id]; ok {
		return bucket
	}

	switch {
	case strings.HasPrefix(id, "Asia/"):
		return models.BucketIST
	case strings.HasPrefix(id, "America/"):
		return inferAmericanBucket(id)
	}

	return models.DefaultBucket
}

func inferAmericanBucket(id string) models.TimezoneBucket {
	lower := strings.ToLower(id)
	switch {
	case strings.Contains(lower, "pacific") || strings.Contains(lower, "angeles"):
		return models.BucketPST
	case strings.Contains(lower, "mountain") || strings.Contains(lower, "denver"):
		return models.BucketMST
	case strings.Contains(lower, "central") || strings.Contains(lower, "chicago"):
		return models.BucketCST
	case strings.Contains(lower, "eastern") || strings.Contains(lower, "york"):
		return models.BucketEST
	}
	// An unknown American identifier most often belongs to the eastern half
	// of the continent; EST is the least-wrong guess there.
	return models.BucketEST
}
