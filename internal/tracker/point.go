package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	lhttp "github.com/rokkincat/trackload/internal/http"
)

// TimestampFormat is the wire format of a point's timestamp.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Defaults for a synthesized point.
const (
	DefaultUserID    int64   = 4401
	DefaultLatitude  float64 = 43
	DefaultLongitude float64 = -89
	DefaultOdometer  int64   = 7468123
)

// Timestamp marshals as a UTC instant with millisecond precision.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(TimestampFormat))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(TimestampFormat, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns t as a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

type Activity struct {
	Confidence int    `json:"confidence"`
	Type       string `json:"type"`
}

type Battery struct {
	IsCharging bool    `json:"is_charging"`
	Level      float64 `json:"level"`
}

type Coords struct {
	Accuracy         float64 `json:"accuracy"`
	Altitude         float64 `json:"altitude"`
	AltitudeAccuracy float64 `json:"altitude_accuracy"`
	Heading          float64 `json:"heading"`
	HeadingAccuracy  float64 `json:"heading_accuracy"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Speed            float64 `json:"speed"`
	SpeedAccuracy    float64 `json:"speed_accuracy"`
}

// Extras carries the tracking context of a point. Nil ids encode as null.
type Extras struct {
	ShiftID *int64 `json:"shift_id"`
	Status  string `json:"status"`
	TripID  *int64 `json:"trip_id"`
	UserID  int64  `json:"user_id"`
}

// LocationPoint is one GPS fix as the mobile client reports it.
type LocationPoint struct {
	Activity  Activity  `json:"activity"`
	Battery   Battery   `json:"battery"`
	Coords    Coords    `json:"coords"`
	Extras    Extras    `json:"extras"`
	IsMoving  bool      `json:"is_moving"`
	Odometer  int64     `json:"odometer"`
	Timestamp Timestamp `json:"timestamp"`
	UUID      string    `json:"uuid"`
}

// PointOptions controls the variable parts of a synthesized point.
// Zero values select the defaults.
type PointOptions struct {
	// UUID pins every point to the same id; empty means a fresh UUID each time
	UUID string

	UserID int64

	// Latitude and Longitude default independently when nil
	Latitude  *float64
	Longitude *float64

	// Now overrides the clock
	Now func() time.Time
}

// NewLocationPoint builds a stationary, charging, working-status point
// stamped with the current instant.
func NewLocationPoint(opts PointOptions) LocationPoint {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	id := opts.UUID
	if id == "" {
		id = uuid.NewString()
	}

	userID := opts.UserID
	if userID == 0 {
		userID = DefaultUserID
	}

	lat, lon := DefaultLatitude, DefaultLongitude
	if opts.Latitude != nil {
		lat = *opts.Latitude
	}
	if opts.Longitude != nil {
		lon = *opts.Longitude
	}

	return LocationPoint{
		Activity: Activity{Confidence: 100, Type: "still"},
		Battery:  Battery{IsCharging: true, Level: 0.91},
		Coords: Coords{
			Accuracy:         52,
			Altitude:         22.1,
			AltitudeAccuracy: 107.7,
			Heading:          0.35,
			HeadingAccuracy:  -1,
			Latitude:         lat,
			Longitude:        lon,
			Speed:            0,
			SpeedAccuracy:    -1,
		},
		Extras: Extras{
			Status: "working",
			UserID: userID,
		},
		IsMoving:  false,
		Odometer:  DefaultOdometer,
		Timestamp: Timestamp(now().UTC()),
		UUID:      id,
	}
}

type pointBatch struct {
	Location []LocationPoint `json:"location"`
}

// SubmitPoint posts point to /api/points. Non-success statuses are not an
// error; use CheckStatus on the response.
func (c *Client) SubmitPoint(ctx context.Context, token string, point LocationPoint) (*lhttp.Response, error) {
	req := authorized(http.MethodPost, PathPoints, token).
		WithBody(pointBatch{Location: []LocationPoint{point}})

	resp, err := c.send(ctx, RequestPoint, req)
	if err != nil {
		return nil, fmt.Errorf("submit point: %w", err)
	}
	return resp, nil
}
