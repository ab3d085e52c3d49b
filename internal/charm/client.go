// ABOUTME: Charm KV client wrapper using transactional Do API
// ABOUTME: Short-lived connections to avoid lock contention with other processes on the same db

package charm

import (
	"os"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
)

const (
	// DefaultCharmHost is the Charm server used when CHARM_HOST is unset.
	DefaultCharmHost = "charm.2389.dev"

	// DBName is the name of the charm kv database for feedsync.
	DBName = "feedsync"
)

// Client holds configuration for KV operations. It does NOT hold a persistent
// connection: each operation opens the database, runs, and closes it.
type Client struct {
	dbName   string
	autoSync bool
}

// NewClient creates a client for the default database with auto-sync enabled.
func NewClient() (*Client, error) {
	if os.Getenv("CHARM_HOST") == "" {
		os.Setenv("CHARM_HOST", DefaultCharmHost)
	}

	return &Client{
		dbName:   DBName,
		autoSync: true,
	}, nil
}

// NewClientWithDBName creates a client for a named database.
// Tests pass autoSync=false to stay offline.
func NewClientWithDBName(dbName string, autoSync bool) *Client {
	return &Client{
		dbName:   dbName,
		autoSync: autoSync,
	}
}

// DoReadOnly executes a function with read-only database access.
func (c *Client) DoReadOnly(fn func(k *kv.KV) error) error {
	return kv.DoReadOnly(c.dbName, fn)
}

// Do executes a function with write access to the database, syncing
// afterwards when auto-sync is on.
func (c *Client) Do(fn func(k *kv.KV) error) error {
	return kv.Do(c.dbName, func(k *kv.KV) error {
		if err := fn(k); err != nil {
			return err
		}
		if c.autoSync {
			return k.Sync()
		}
		return nil
	})
}

// SetAutoSync enables or disables automatic sync after writes.
func (c *Client) SetAutoSync(enabled bool) {
	c.autoSync = enabled
}

// AutoSync reports whether writes are pushed to the server.
func (c *Client) AutoSync() bool {
	return c.autoSync
}

// Sync manually triggers a sync with the Charm server.
func (c *Client) Sync() error {
	return kv.Do(c.dbName, func(k *kv.KV) error {
		return k.Sync()
	})
}

// Reset drops the local copy of the database and pulls it again from the
// server.
func (c *Client) Reset() error {
	return kv.Do(c.dbName, func(k *kv.KV) error {
		return k.Reset()
	})
}

// ID returns the linked Charm account ID.
func (c *Client) ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", err
	}
	return cc.ID()
}
