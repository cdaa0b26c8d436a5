// Package anngo provides an embedded approximate-nearest-neighbor index
// for Go.
//
// An index is constructed from a type name and a JSON configuration blob,
// filled in batches, searched with k-nearest-neighbor queries, and persisted
// as a single self-describing dump file.
//
// # Quick Start
//
//	config := []byte(`{
//	    "dtype": "float32",
//	    "metric_type": "l2",
//	    "dim": 128,
//	    "hnsw": {"max_degree": 16, "ef_construction": 200}
//	}`)
//
//	idx, _ := anngo.Construct("hnsw", config)
//	defer idx.Close()
//
//	failed, _ := idx.Build(ctx, len(ids), 128, ids, vectors)
//	results, _ := idx.KnnSearch(ctx, query, 10, []byte(`{"hnsw": {"ef_search": 200}}`))
//
// # Persistence
//
// Dumps are written atomically and carry checksums, a manifest, and the full
// index state:
//
//	idx.Dump(ctx, "index.bin")
//	idx2, _ := anngo.Load(ctx, "index.bin", "hnsw", config)
//
// Remote storage goes through blobstore.Store; implementations exist for the
// local filesystem, Amazon S3, and MinIO:
//
//	store := blobstore.NewMemoryStore()
//	idx.DumpTo(ctx, store, "dumps/0001.bin")
//	idx3, _ := anngo.LoadFrom(ctx, store, "dumps/0001.bin", "hnsw", config)
//
// # Index Types
//
//   - "hnsw": graph-based index with tunable recall/latency trade-off
//   - "flat": exact brute-force scan, useful as a recall baseline
//
// # Concurrency
//
// An Index is safe for concurrent use. Searches run in parallel with each
// other; Build and Dump serialize against searches.
package anngo
