package redisbp

import (
	"github.com/go-redis/redis/v8"
)

// Client is a *redis.Client reporting prometheus metrics through a
// PrometheusHook and the redisbp_pool_* metrics.
type Client struct {
	*redis.Client

	name string
}

// NewMonitoredClient creates a Client connecting to a single redis instance.
//
// name labels every metric of the client.
func NewMonitoredClient(name string, opt *redis.Options) *Client {
	client := redis.NewClient(opt)
	client.AddHook(newPrometheusHook(name, opt))
	pools.add(name, client)
	return &Client{
		Client: client,
		name:   name,
	}
}

// Name returns the name the client reports metrics under.
func (c *Client) Name() string {
	return c.name
}

// Close stops reporting pool metrics and closes the client.
func (c *Client) Close() error {
	pools.remove(c.name, c.Client)
	return c.Client.Close()
}
