// Package bloomchain provides a scaling Bloom filter data type for embedded
// key-value stores.
//
// A chain is an ordered list of fixed-size block-split Bloom sub-filters plus
// a metadata record, owned by one namespace key. Items are added to the
// newest sub-filter; when a chain reaches capacity and scaling is enabled, a
// new sub-filter sized by the expansion multiplier is appended in the same
// atomic batch as the triggering insert. Non-scaling chains report per-item
// saturation instead of growing.
//
// Features:
//
//   - Pluggable storage: any engine implementing storage.Engine (in-memory
//     engine included, bbolt-backed engine in storage/boltdb)
//   - Atomic mutations: every Add/MAdd commits one write batch, tagged for
//     downstream replication/audit consumption
//   - Lock-free queries: Exists/MExists read from a single engine snapshot
//   - Geometric scaling with per-chain error rate and expansion factor
//   - Portable dump/restore with zstd compression and CRC32 integrity checks
//   - Structured logging (log/slog) and pluggable metrics collection
//
// # Quick start
//
//	ctx := context.Background()
//
//	engine := storage.NewMemoryEngine()
//	defer engine.Close()
//
//	bc, err := bloomchain.New(engine)
//	if err != nil {
//		panic(err)
//	}
//
//	if err := bc.Reserve(ctx, []byte("visitors"), 10_000, 0.01, 2); err != nil {
//		panic(err)
//	}
//
//	result, _ := bc.Add(ctx, []byte("visitors"), []byte("alice"))
//	fmt.Println(result) // ok
//
//	seen, _ := bc.Exists(ctx, []byte("visitors"), []byte("alice"))
//	fmt.Println(seen) // true
//
// Adding to a missing key creates a chain with the configured defaults, so
// Reserve is only needed to pick non-default parameters.
//
// # Consistency model
//
// Mutations on one key are serialized by an exclusive per-key lock and
// observe strict lock-acquisition order; different keys proceed fully in
// parallel. Queries take no lock and may miss mutations committed after
// their snapshot was taken. Membership has no false negatives for items
// committed before the query's snapshot; false positives are bounded by the
// chain's error rate.
package bloomchain
