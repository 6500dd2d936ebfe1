// Command ingest loads a delimited-text file, local or remote, into a
// relational table in fixed-size chunks.
//
//	ingest run --url https://d37ci6vzurychx.cloudfront.net/trip-data/yellow_tripdata_2021-01.csv.gz \
//	    --table yellow_taxi_data --user root --password root --db ny_taxi
package main

import (
	"os"

	// register all backends with the storage factory.
	_ "ingest/internal/storage/all"
)

func main() {
	exitOnError(newRootCommand(os.Stdout, os.Stderr).Execute())
}
