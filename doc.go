// Package rerank provides a batched cross-encoder reranking service for Go.
//
// The service scores a query against candidate passages with a cross-encoder
// model and returns a ranking order plus the raw scores. Concurrent requests
// are coalesced into batches on a single model execution lane: a batch
// accumulator collects pairwise scoring requests and releases a batch when it
// fills up or a maximum wait elapses, a dispatcher serializes scorer calls
// and distributes results back positionally, and a ranking service expands
// each (query, passages) request into sub-requests and reassembles the final
// ordering.
//
// # Basic Usage
//
// Build a pipeline from config and rank passages:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	svc, err := rerank.New(cfg, logger.NewDefault(slog.LevelInfo))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer svc.Close()
//
//	result, err := svc.Rank(ctx, "what is a cross-encoder?", passages)
//	// result.Order is a permutation of passage indices, best first;
//	// result.Scores is aligned to the input passage order.
//
// # HTTP Transport
//
// The server package exposes the same pipeline over HTTP:
//
//	POST /rerank  {"query": "...", "passages": ["...", ...]}
//	          ->  {"order": [1, 2, 0], "scores": [0.1, 0.9, 0.5]}
//
// Backpressure, per-request timeouts and upstream scorer failures map onto
// 429, 504 and 502 respectively.
//
// # Scorer Backends
//
// The scorer package provides interchangeable score functions: a remote
// cross-encoder inference endpoint, an OpenAI LLM judge, a local
// term-frequency similarity scorer and a deterministic mock. Scores may be
// cached (memory, Redis or Badger) and guarded with a circuit breaker.
//
// Shutdown is drain-first: already-submitted requests are always resolved,
// either with a score or an error, before the dispatcher stops.
package rerank
