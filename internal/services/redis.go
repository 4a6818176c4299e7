package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const driverLocationTTL = time.Hour

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func driverLocationKey(driverProfileID string) string {
	return "driver:location:" + driverProfileID
}

func bookingLocationChannel(bookingID string) string {
	return "booking:location:" + bookingID
}

// RedisLocationCache keeps the freshest driver position for map views and
// publishes every accepted update on the booking's channel.
type RedisLocationCache struct {
	client *redis.Client
}

func NewRedisLocationCache(client *redis.Client) *RedisLocationCache {
	return &RedisLocationCache{client: client}
}

func (c *RedisLocationCache) SetDriverLocation(ctx context.Context, u LocationUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, driverLocationKey(u.DriverProfileID), data, driverLocationTTL).Err()
}

// GetDriverLocation returns redis.Nil when the driver has not reported within the TTL.
func (c *RedisLocationCache) GetDriverLocation(ctx context.Context, driverProfileID string) (*LocationUpdate, error) {
	data, err := c.client.Get(ctx, driverLocationKey(driverProfileID)).Bytes()
	if err != nil {
		return nil, err
	}
	var u LocationUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *RedisLocationCache) PublishBookingLocation(ctx context.Context, u LocationUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bookingLocationChannel(u.BookingID), data).Err()
}
