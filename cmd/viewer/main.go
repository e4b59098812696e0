// Command viewer dumps a room's persisted messages from a BadgerDB
// store. Meant for local operations and debugging; it opens the store
// read-only so it can run next to a live server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"chat-relay/domain"
)

func main() {
	_ = godotenv.Load()

	dbPath := flag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	room := flag.Int64("room", 0, "Room id to dump (0 scans every room)")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("No DB path: set -db or BADGER_FILEPATH")
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	header := color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf("Messages in %s", *dbPath))
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Room", "Author", "Created At", "Content"})
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
	if *room > 0 {
		prefix = []byte(fmt.Sprintf("msg:%d:", *room))
	}

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var env domain.Envelope
				if err := json.Unmarshal(v, &env); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}
				msg := env.Frame()
				table.Append([]string{
					strconv.FormatInt(msg.ID, 10),
					strconv.FormatInt(int64(msg.Room), 10),
					strconv.FormatInt(int64(msg.Author), 10),
					msg.CreatedAt.Format("2006-01-02 15:04:05"),
					msg.Content,
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
		log.Fatal(err)
	}

	table.Render()
}
