// Package vecgather provides an embeddable Go client for scatter-gather search
// over sharded Valkey search indexes.
//
// Each shard holds part of the corpus under the same index name. A search is
// sent to every shard in parallel, each shard returns its local top hits, and
// the client merges them into one ranking. If some shards do not answer before
// the deadline, the merged hits of the shards that did are returned and
// SearchResult.Complete is false.
//
//	client, _ := vecgather.New(ctx,
//	    vecgather.WithShard(vecgather.Shard{ID: "a", Addrs: []string{"valkey-a:6379"}, Index: "docs"}),
//	    vecgather.WithShard(vecgather.Shard{ID: "b", Addrs: []string{"valkey-b:6379"}, Index: "docs"}),
//	    vecgather.WithTimeout(500*time.Millisecond),
//	)
//	defer client.Close()
//
//	res, _ := client.Search(ctx, "vector databases", &vecgather.SearchOptions{Limit: 10})
//	for _, h := range res.Hits {
//	    fmt.Println(h.Key, h.Score)
//	}
package vecgather
