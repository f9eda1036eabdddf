package tiercore

// Driver identifies a storage backend.
type Driver string

const (
	DriverNull      Driver = "null"
	DriverFile      Driver = "file"
	DriverMemory    Driver = "memory"
	DriverMemcached Driver = "memcached"
	DriverDynamo    Driver = "dynamodb"
	DriverSQL       Driver = "sql"
	DriverRedis     Driver = "redis"
	DriverNATS      Driver = "nats"
)

// Valid reports whether d names a known backend.
func (d Driver) Valid() bool {
	switch d {
	case DriverNull, DriverFile, DriverMemory, DriverMemcached, DriverDynamo, DriverSQL, DriverRedis, DriverNATS:
		return true
	}
	return false
}
