// Package cli provides the interactive zkvault command-line client.
//
// It wires configuration, the HTTP API client and the vault services into
// an interactive REPL. Typical flow: register once, log in with email and
// password, then manage notes. All encryption happens in this process; the
// server only ever sees ciphertext and a password verifier.
//
// Commands:
//   - register / login / logout
//   - list, search <text>, show <id>, add, edit <id>, delete <id>
//   - passwd: change the password and re-encrypt every note
//
// The REPL is started via App.Run(ctx), which blocks until the user exits
// and logs out on return, wiping the session key and any unfinished
// rotation.
package cli
