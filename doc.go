// Package sqee provides schema-aware document collections on top of Redis
// with the search and JSON modules.
//
// A collection is a search index bound to a document type. Document types are
// registered explicitly, either declared by hand or described from Go struct
// tags once at registration time.
//
//	type Order struct {
//	    sqee.DocumentBase
//	    OrderID   int    `json:"orderId"`
//	    FirstName string `json:"customerFirstName"`
//	}
//
//	client, _ := sqee.New(sqee.WithRedis("localhost:6379", ""))
//	_, _ = sqee.Register[Order](client, "sample.Order")
//	cl, _ := client.Cluster(ctx, "abc123")
//	_, _, _ = cl.TryAddCollection(ctx, sqee.NewCollectionConfig("orders", "sample.Order"))
//	_, _ = cl.TryCommit(ctx, Order{DocumentBase: sqee.DocumentBase{ID: "1", CollectionID: "abc123_orders"}})
//
//	q := sqee.NewQuery("abc123_orders").Where("customerFirstName", sqee.Equal, "Matt").Take(20)
//	orders, res, _ := sqee.Find[Order](ctx, cl, q)
package sqee
