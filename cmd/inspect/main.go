package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// summaryFields are tried in order to describe a JSON value in one cell.
var summaryFields = []string{"content", "name", "username", "role"}

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (user:, room:, member:, msg:, blacklist:...)")
	limit := flag.Int("limit", 200, "Maximum number of rows")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Size", "Summary"})
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

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes) && rows < *limit; it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				table.Append([]string{key, kind(key), fmt.Sprintf("%d B", len(v)), summarize(v)})
				return nil
			})
			if err != nil {
				return err
			}
			rows++
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Printf("\n%d row(s) under %q\n", rows, *prefix)
}

func kind(key string) string {
	name, _, found := strings.Cut(key, ":")
	if !found {
		return "RAW"
	}
	return strings.ToUpper(name)
}

// summarize returns the first known field of a JSON object, or the raw value
// for index entries which only hold an id.
func summarize(value []byte) string {
	if len(value) == 0 {
		return "-"
	}
	var fields map[string]any
	if err := json.Unmarshal(value, &fields); err != nil {
		return truncate(string(value))
	}
	for _, name := range summaryFields {
		if v, ok := fields[name]; ok {
			return truncate(fmt.Sprintf("%s=%v", name, v))
		}
	}
	return truncate(string(value))
}

func truncate(s string) string {
	const width = 60
	if r := []rune(s); len(r) > width {
		return string(r[:width]) + "..."
	}
	return s
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
