package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

const helpText = `Available commands:
  status                        storage mode and live feed state
  sessions                      list collection sessions
  select <id|all>               filter entries by session
  create <pin> [title]          open a new session
  toggle <id>                   activate or deactivate a session
  delete <id>                   delete a session and its entries
  (l)ist                        list entries of the current selection
  stats                         entry counts
  export <csv|json|txt> [path|s3]
  clear                         delete every entry
  refresh                       reload from storage
  watch                         print new entries as they arrive (toggle)
  follow                        stream entries from the server until Enter
  submit                        collect one entry at this terminal
  exit | quit`

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Status(ctx context.Context) error
	Sessions(ctx context.Context) error
	Select(ctx context.Context, arg string) error
	Create(ctx context.Context, pin, title string) error
	Toggle(ctx context.Context, arg string) error
	Delete(ctx context.Context, arg string) error
	List(ctx context.Context) error
	Stats(ctx context.Context) error
	Export(ctx context.Context, format, target string) error
	Clear(ctx context.Context) error
	Refresh(ctx context.Context) error
	Watch(ctx context.Context) error
	Follow(ctx context.Context) error
	Submit(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the admin console.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Commands that need an argument
// print their usage when it is missing. The loop exits on scanner EOF or
// when the user types "exit" or "quit".
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("lk %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText)

		case "status":
			_ = a.Status(ctx)

		case "sessions":
			_ = a.Sessions(ctx)

		case "select":
			if len(args) == 0 {
				printlnFn("Usage: select <id|all>")
				continue
			}
			_ = a.Select(ctx, args[0])

		case "create":
			if len(args) == 0 {
				printlnFn("Usage: create <pin> [title]")
				continue
			}
			_ = a.Create(ctx, args[0], strings.Join(args[1:], " "))

		case "toggle":
			if len(args) == 0 {
				printlnFn("Usage: toggle <id>")
				continue
			}
			_ = a.Toggle(ctx, args[0])

		case "delete":
			if len(args) == 0 {
				printlnFn("Usage: delete <id>")
				continue
			}
			_ = a.Delete(ctx, args[0])

		case "l", "list":
			_ = a.List(ctx)

		case "stats":
			_ = a.Stats(ctx)

		case "export":
			if len(args) == 0 {
				printlnFn("Usage: export <csv|json|txt> [path|s3]")
				continue
			}
			target := ""
			if len(args) > 1 {
				target = args[1]
			}
			_ = a.Export(ctx, args[0], target)

		case "clear":
			_ = a.Clear(ctx)

		case "refresh":
			_ = a.Refresh(ctx)

		case "watch":
			_ = a.Watch(ctx)

		case "follow":
			_ = a.Follow(ctx)

		case "submit":
			_ = a.Submit(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
