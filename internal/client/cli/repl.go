package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Add(ctx context.Context) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error
	ChangePassword(ctx context.Context) error
	report(ctx context.Context, err error)
	confirmLeave(ctx context.Context) bool
}

const (
	helpLoggedOut = "Available commands: register, login, help, exit"
	helpLoggedIn  = "Available commands: (l)ist, search <text>, show <id>, add, edit <id>, delete <id>, passwd, logout, help, exit"
)

// runREPL reads one command per line from in and dispatches it to a. The
// first token is the command, the rest are its arguments. Command errors
// are passed to a.report and the loop keeps going. It returns on EOF, on
// "exit" or "quit", or when ctx is cancelled.
//
// Commands that need a session are refused until the user has logged in.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}

		printlnFn(fmt.Sprintf("zkv (%s) > ", statusFn()))
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if needsSession(cmd) && !a.isLoggedIn() {
			printlnFn("Please log in first")
			continue
		}

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}

		case "register":
			a.report(ctx, a.Register(ctx))

		case "login":
			a.report(ctx, a.Login(ctx))

		case "l", "list":
			a.report(ctx, a.List(ctx))

		case "search", "find":
			a.report(ctx, a.Search(ctx, args))

		case "show":
			a.report(ctx, a.Show(ctx, args))

		case "add":
			a.report(ctx, a.Add(ctx))

		case "edit":
			a.report(ctx, a.Edit(ctx, args))

		case "delete", "rm":
			a.report(ctx, a.Delete(ctx, args))

		case "passwd":
			a.report(ctx, a.ChangePassword(ctx))

		case "logout":
			a.report(ctx, a.Logout(ctx))

		case "exit", "quit":
			if !a.confirmLeave(ctx) {
				continue
			}
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func needsSession(cmd string) bool {
	switch cmd {
	case "l", "list", "search", "find", "show", "add", "edit", "delete", "rm", "passwd", "logout":
		return true
	}
	return false
}
