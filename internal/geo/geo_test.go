package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/example/taxilink/internal/logging"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestNearbyOrdersByDistance(t *testing.T) {
	idx := NewIndex(DefaultRanks()...)
	// just west of Bree
	got := idx.Nearby(Position{Lat: -26.202, Lon: 28.030}, 0)
	if len(got) != 3 {
		t.Fatalf("expected all ranks, got %d", len(got))
	}
	want := []string{"Bree Taxi Rank", "Gandhi Square", "Main Street Rank"}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}
	if two := idx.Nearby(DefaultPosition, 2); len(two) != 2 {
		t.Fatalf("limit not applied: %d", len(two))
	}
}

func TestLabelSnapsToRank(t *testing.T) {
	idx := NewIndex(DefaultRanks()...)
	if got := Label(idx, Position{Lat: -26.2041, Lon: 28.0471}); got != "Main Street Rank" {
		t.Fatalf("expected Main Street Rank, got %q", got)
	}
	far := Position{Lat: -25.7479, Lon: 28.2293}
	if got := Label(idx, far); got != far.String() {
		t.Fatalf("expected coordinates for distant tap, got %q", got)
	}
	if got := Label(NewIndex(), far); got != far.String() {
		t.Fatalf("empty index should label by coordinates, got %q", got)
	}
}

func TestParsePosition(t *testing.T) {
	p, err := ParsePosition("-26.204, 28.047")
	if err != nil || p.Lat != -26.204 || p.Lon != 28.047 {
		t.Fatalf("got %+v %v", p, err)
	}
	for _, bad := range []string{"", "1", "a,b", "95,0"} {
		if _, err := ParsePosition(bad); err == nil {
			t.Fatalf("ParsePosition(%q) should fail", bad)
		}
	}
}

type fakeGeoClient struct {
	added []*redis.GeoLocation
	res   []redis.GeoLocation
	err   error
	query *redis.GeoRadiusQuery
}

func (f *fakeGeoClient) GeoAdd(ctx context.Context, key string, loc ...*redis.GeoLocation) *redis.IntCmd {
	f.added = append(f.added, loc...)
	return redis.NewIntResult(int64(len(loc)), nil)
}

func (f *fakeGeoClient) GeoRadius(ctx context.Context, key string, lon, lat float64, q *redis.GeoRadiusQuery) *redis.GeoLocationCmd {
	f.query = q
	cmd := redis.NewGeoLocationCmd(ctx, q)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(f.res)
	}
	return cmd
}

func TestRedisRanks(t *testing.T) {
	f := &fakeGeoClient{res: []redis.GeoLocation{{Name: "Bree Taxi Rank", Latitude: -26.202, Longitude: 28.035, Dist: 120}}}
	r := &RedisRanks{client: f, key: "taxi_ranks", log: logging.Discard()}
	r.Add(DefaultRanks()[1])
	if len(f.added) != 1 || f.added[0].Name != "Bree Taxi Rank" {
		t.Fatalf("unexpected geoadd %+v", f.added)
	}
	got := r.Nearby(Position{Lat: -26.2, Lon: 28.03}, 1)
	if len(got) != 1 || got[0].Name != "Bree Taxi Rank" || got[0].Meters != 120 {
		t.Fatalf("unexpected nearby %+v", got)
	}
	if f.query.Count != 1 || f.query.Sort != "ASC" || !f.query.WithDist {
		t.Fatalf("unexpected query %+v", f.query)
	}
}

func TestRedisRanksErrorYieldsNoRanks(t *testing.T) {
	r := &RedisRanks{client: &fakeGeoClient{err: errors.New("down")}, key: "k", log: logging.Discard()}
	if got := r.Nearby(DefaultPosition, 3); got != nil {
		t.Fatalf("expected nil on error, got %+v", got)
	}
}
