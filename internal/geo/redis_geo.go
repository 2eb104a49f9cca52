package geo

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/example/taxilink/internal/logging"
)

// SearchRadiusMeters bounds Redis rank lookups.
const SearchRadiusMeters = 50000

type geoClient interface {
	GeoAdd(ctx context.Context, key string, geoLocation ...*redis.GeoLocation) *redis.IntCmd
	GeoRadius(ctx context.Context, key string, longitude, latitude float64, query *redis.GeoRadiusQuery) *redis.GeoLocationCmd
}

// RedisRanks implements Ranks using Redis GEO commands, so every API
// replica sees ranks added at runtime.
type RedisRanks struct {
	client geoClient
	key    string
	log    *slog.Logger
}

func NewRedisRanks(addr, password, key string, log *slog.Logger) *RedisRanks {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisRanks{client: c, key: key, log: logging.OrDiscard(log)}
}

func (r *RedisRanks) Add(rank Rank) {
	ctx := context.Background()
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: rank.Pos.Lon, Latitude: rank.Pos.Lat, Name: rank.Name}).Err(); err != nil {
		r.log.Warn("geoadd failed", "rank", rank.Name, "error", err)
	}
}

func (r *RedisRanks) Nearby(pos Position, limit int) []RankDistance {
	if limit < 0 {
		limit = 0
	}
	q := &redis.GeoRadiusQuery{Radius: SearchRadiusMeters, Unit: "m", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC"}
	res, err := r.client.GeoRadius(context.Background(), r.key, pos.Lon, pos.Lat, q).Result()
	if err != nil {
		r.log.Warn("georadius failed", "error", err)
		return nil
	}
	out := make([]RankDistance, 0, len(res))
	for _, g := range res {
		out = append(out, RankDistance{
			Rank:   Rank{Name: g.Name, Pos: Position{Lat: g.Latitude, Lon: g.Longitude}},
			Meters: g.Dist,
		})
	}
	return out
}
