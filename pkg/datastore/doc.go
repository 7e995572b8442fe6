// Package datastore is a client for the v1beta2 datasets API of a remote
// document store. Entities are property bags identified by keys, grouped in
// datasets and read back by key lookups or filtered queries.
//
//	ds, err := datastore.GetDataset(ctx, "my-dataset", email, "key.pem")
//	thing := ds.Entity("Thing")
//	thing.Set("age", 10)
//	err = thing.Save(ctx)
//
// Writes made while a transaction is active on the dataset's connection are
// batched and sent as one transactional commit.
package datastore
