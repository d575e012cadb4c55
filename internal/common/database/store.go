package database

// Store composes the relational roster/run/event store with the document
// store for snapshots and announcements. It satisfies both the monitor's
// and the extractor's storage interfaces.
type Store struct {
	*DB
	*MongoClient
}

func NewStore(pg *DB, mongo *MongoClient) *Store {
	return &Store{DB: pg, MongoClient: mongo}
}
