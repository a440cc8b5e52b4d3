// Command history_inspect dumps the persisted room history as a table.
// It opens the Badger directory read-only, so it can run next to a live
// relay process.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// storedMessage mirrors the repository's on-disk JSON shape.
type storedMessage struct {
	ID      string `json:"id"`
	Room    string `json:"sala"`
	Author  string `json:"usuario"`
	Content string `json:"texto"`
	Lang    string `json:"lang,omitempty"`
	At      int64  `json:"at"`
}

func main() {
	dbPath := flag.String("db", "", "Path to the history Badger DB")
	room := flag.String("room", "", "Restrict the dump to one room")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("missing -db flag")
	}

	// BypassLockGuard allows opening while the relay holds the lock.
	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer func() { _ = db.Close() }()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room", "At", "Author", "Lang", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	prefix := []byte("msg:")
	if *room != "" {
		prefix = []byte(fmt.Sprintf("msg:%s:", *room))
	}

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var stored storedMessage
				if err := json.Unmarshal(v, &stored); err != nil {
					// Log and keep scanning instead of aborting the dump.
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}
				table.Append([]string{
					stored.Room,
					time.Unix(0, stored.At).UTC().Format(time.RFC3339),
					stored.Author,
					stored.Lang,
					stored.Content,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table.Render()
}
