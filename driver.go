package tiercache

import "github.com/goforj/tiercache/tiercore"

// Driver identifies a storage backend.
type Driver = tiercore.Driver

const (
	DriverNull      = tiercore.DriverNull
	DriverFile      = tiercore.DriverFile
	DriverMemory    = tiercore.DriverMemory
	DriverMemcached = tiercore.DriverMemcached
	DriverDynamo    = tiercore.DriverDynamo
	DriverSQL       = tiercore.DriverSQL
	DriverRedis     = tiercore.DriverRedis
	DriverNATS      = tiercore.DriverNATS
)

// Backend is the byte-level storage contract behind the tier adapters.
type Backend = tiercore.Backend
