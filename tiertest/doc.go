// Package tiertest holds the shared contract every tiercore.Backend is held to.
//
// RunBackendContract registers one subtest per behavior (round trip,
// overwrite, binary values, miss, ttl, delete) so a failing driver reports
// exactly which guarantee it breaks:
//
//	func TestRedisBackendContract(t *testing.T) {
//		backend := tiercache.NewRedisBackend(ctx, newTestRedisClient(t), tiercache.WithPrefix("test"))
//
//		// Redis expiry is exact; memcached needs whole seconds.
//		tiertest.RunBackendContract(t, backend, tiertest.Options{
//			TTL:     time.Second,
//			TTLWait: 1500 * time.Millisecond,
//		})
//	}
package tiertest
