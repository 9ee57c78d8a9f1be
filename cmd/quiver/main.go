// Command quiver is an interactive shell and one-shot CLI for the
// embedded fixed-width int64 key-value store. It exposes only what
// this single-threaded, no-WAL engine actually offers: no server mode,
// TLS, replication, or transactions.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/quiver-db/quiver/pkg/engine"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".open"),
	readline.PcItem(".close"),
	readline.PcItem(".exit"),
	readline.PcItem(".stats"),
	readline.PcItem(".flush"),
	readline.PcItem(".compact"),
	readline.PcItem("PUT"),
	readline.PcItem("GET"),
	readline.PcItem("DELETE"),
	readline.PcItem("SCAN"),
)

const helpText = `
quiver - an embedded fixed-width int64 key-value store.

Usage:
  quiver [database_path]           - Start the interactive shell, optionally opening a database
  quiver -c "COMMAND" database_path - Run a single command and exit

Commands:
  .help                    - Show this help message
  .open PATH               - Open (or create) a database at PATH
  .close                   - Close the current database
  .exit                    - Exit the program
  .stats                   - Show operation counters and latencies
  .flush                   - Force the memtable to a level-0 run and run the compaction cascade
  .compact                 - Run the compaction cascade without flushing first

  PUT key value            - Store an int64 key-value pair
  GET key                  - Retrieve a value by key
  DELETE key               - Delete a key
  SCAN lo hi                - List entries with lo <= key <= hi
`

func main() {
	oneShot := flag.String("c", "", "run a single command against the database and exit, instead of starting the interactive shell")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "quiver - an embedded fixed-width int64 key-value store\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: quiver [-c \"COMMAND\"] database_path\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	var dbPath string
	if flag.NArg() > 0 {
		dbPath = flag.Arg(0)
	}

	if *oneShot != "" {
		if dbPath == "" {
			fmt.Fprintln(os.Stderr, "Error: -c requires a database_path argument")
			os.Exit(1)
		}
		db, err := openPath(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %s\n", err)
			os.Exit(1)
		}
		defer db.Close()
		runOneShot(db, *oneShot)
		return
	}

	var db *engine.DB
	if dbPath != "" {
		var err error
		db, err = openPath(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %s\n", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	runInteractive(db, dbPath)
}

// runOneShot dispatches a single PUT/GET/DELETE/SCAN command against an
// already-open database and exits without starting the readline shell,
// for scripting and one-off inspection.
func runOneShot(db *engine.DB, line string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		fmt.Fprintln(os.Stderr, "Error: empty command")
		os.Exit(1)
	}
	switch strings.ToUpper(parts[0]) {
	case "PUT":
		handlePut(db, parts[1:])
	case "GET":
		handleGet(db, parts[1:])
	case "DELETE":
		handleDelete(db, parts[1:])
	case "SCAN":
		handleScan(db, parts[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", parts[0])
		os.Exit(1)
	}
}

// openPath splits a filesystem path into the parent directory and leaf
// database name engine.Open expects.
func openPath(path string) (*engine.DB, error) {
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	return engine.Open(dir, name)
}

func runInteractive(db *engine.DB, dbPath string) {
	fmt.Println("quiver shell. Enter .help for usage hints.")

	historyFile := filepath.Join(os.TempDir(), ".quiver_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "quiver> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		prompt := "quiver> "
		if dbPath != "" {
			prompt = fmt.Sprintf("quiver:%s> ", dbPath)
		}
		rl.SetPrompt(prompt)

		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToUpper(parts[0])

		if strings.HasPrefix(cmd, ".") {
			cmd = strings.ToLower(cmd)
			switch cmd {
			case ".help":
				fmt.Print(helpText)

			case ".open":
				if len(parts) < 2 {
					fmt.Println("Error: missing path argument")
					continue
				}
				if db != nil {
					db.Close()
				}
				dbPath = parts[1]
				db, err = openPath(dbPath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error opening database: %s\n", err)
					db, dbPath = nil, ""
					continue
				}
				fmt.Printf("Database opened at %s\n", dbPath)

			case ".close":
				if db == nil {
					fmt.Println("No database open")
					continue
				}
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Error closing database: %s\n", err)
				} else {
					fmt.Printf("Database %s closed\n", dbPath)
				}
				db, dbPath = nil, ""

			case ".exit":
				if db != nil {
					db.Close()
				}
				fmt.Println("Goodbye!")
				return

			case ".stats":
				if db == nil {
					fmt.Println("No database open")
					continue
				}
				printStats(db.Stats())

			case ".flush":
				if db == nil {
					fmt.Println("No database open")
					continue
				}
				if err := db.Flush(); err != nil {
					fmt.Fprintf(os.Stderr, "Error flushing: %s\n", err)
				} else {
					fmt.Println("Flushed")
				}

			case ".compact":
				if db == nil {
					fmt.Println("No database open")
					continue
				}
				if err := db.Compact(); err != nil {
					fmt.Fprintf(os.Stderr, "Error compacting: %s\n", err)
				} else {
					fmt.Println("Compacted")
				}

			default:
				fmt.Printf("Unknown command: %s (try .help)\n", cmd)
			}
			continue
		}

		if db == nil {
			fmt.Println("No database open. Use .open PATH first.")
			continue
		}

		switch cmd {
		case "PUT":
			handlePut(db, parts[1:])
		case "GET":
			handleGet(db, parts[1:])
		case "DELETE":
			handleDelete(db, parts[1:])
		case "SCAN":
			handleScan(db, parts[1:])
		default:
			fmt.Printf("Unknown command: %s (try .help)\n", parts[0])
		}
	}
}

func parseKey(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	return v, nil
}

func handlePut(db *engine.DB, args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: PUT key value")
		return
	}
	key, err := parseKey(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	value, err := parseKey(args[1])
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := db.Put(key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	fmt.Println("OK")
}

func handleGet(db *engine.DB, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: GET key")
		return
	}
	key, err := parseKey(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	value, ok, err := db.Get(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	if !ok {
		fmt.Println("(not found)")
		return
	}
	fmt.Println(value)
}

func handleDelete(db *engine.DB, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: DELETE key")
		return
	}
	key, err := parseKey(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := db.Delete(key); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	fmt.Println("OK")
}

func handleScan(db *engine.DB, args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: SCAN lo hi")
		return
	}
	lo, err := parseKey(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	hi, err := parseKey(args[1])
	if err != nil {
		fmt.Println(err)
		return
	}
	entries, err := db.Scan(lo, hi)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	for _, e := range entries {
		fmt.Printf("%d -> %d\n", e.Key, e.Value)
	}
	fmt.Printf("(%d entries)\n", len(entries))
}

func printStats(stats map[string]interface{}) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, stats[k])
	}
}
