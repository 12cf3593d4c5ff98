package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

const (
	previewLength = 40
	timeLayout    = "2006-01-02 15:04"
)

var (
	errNoteID      = errors.New("expected a numeric note id, for example: show 42")
	errSearchQuery = errors.New("expected text to search for, for example: search groceries")
)

func parseNoteID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errNoteID
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, errNoteID
	}
	return id, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// List prints every note, newest first. Notes that fail to decrypt are
// listed as unreadable instead of aborting the listing.
func (a *App) List(ctx context.Context) error {
	views, err := a.noteService.List(ctx)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Fprintln(a.out, "No notes yet. Use 'add' to create one.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPDATED\tTITLE\tPREVIEW")
	for _, v := range views {
		if v.Err != nil {
			fmt.Fprintf(tw, "%d\t%s\t%s\t\n", v.ID, formatTime(v.UpdatedAt), errColor.Sprint("[unreadable]"))
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", v.ID, formatTime(v.UpdatedAt), v.Title, dimColor.Sprint(v.Preview(previewLength)))
	}
	return tw.Flush()
}

// Search lists the notes whose title or body contains the query, ignoring
// case. Matching runs on the decrypted listing; unreadable notes are
// skipped.
func (a *App) Search(ctx context.Context, args []string) error {
	query := strings.ToLower(strings.Join(args, " "))
	if query == "" {
		return errSearchQuery
	}

	views, err := a.noteService.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	found := 0
	for _, v := range views {
		if v.Err != nil || !matchesNote(v.Title, v.Body, query) {
			continue
		}
		if found == 0 {
			fmt.Fprintln(tw, "ID\tUPDATED\tTITLE\tPREVIEW")
		}
		found++
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", v.ID, formatTime(v.UpdatedAt), v.Title, dimColor.Sprint(v.Preview(previewLength)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if found == 0 {
		fmt.Fprintf(a.out, "No notes match %q\n", query)
	}
	return nil
}

func matchesNote(title, body, query string) bool {
	return strings.Contains(strings.ToLower(title), query) || strings.Contains(strings.ToLower(body), query)
}

func (a *App) Show(ctx context.Context, args []string) error {
	id, err := parseNoteID(args)
	if err != nil {
		return err
	}

	note, err := a.noteService.Get(ctx, id)
	if err != nil {
		return err
	}

	okColor.Fprintf(a.out, "#%d %s\n", note.ID, note.Title)
	dimColor.Fprintf(a.out, "created %s, updated %s\n", formatTime(note.CreatedAt), formatTime(note.UpdatedAt))
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, note.Body)
	return nil
}

func (a *App) Add(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	body, err := getMultiline(a.reader, "Body", a.out)
	if err != nil {
		return err
	}

	id, err := a.noteService.Create(ctx, title, body)
	if err != nil {
		return err
	}
	a.success("Created note #%d", id)
	return nil
}

// Edit replaces the title and body of a note. Empty input keeps the
// current value.
func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := parseNoteID(args)
	if err != nil {
		return err
	}

	note, err := a.noteService.Get(ctx, id)
	if err != nil {
		return err
	}

	title, err := getSimpleText(a.reader, fmt.Sprintf("Title [%s]", note.Title), a.out)
	if err != nil {
		return err
	}
	if title == "" {
		title = note.Title
	}

	body, err := getMultiline(a.reader, "Body (empty keeps the current body)", a.out)
	if err != nil {
		return err
	}
	if body == "" {
		body = note.Body
	}

	if err := a.noteService.Update(ctx, id, title, body); err != nil {
		return err
	}
	a.success("Updated note #%d", id)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := parseNoteID(args)
	if err != nil {
		return err
	}

	ok, err := Confirm(a.reader, fmt.Sprintf("Delete note #%d?", id), a.out)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}

	if err := a.noteService.Delete(ctx, id); err != nil {
		return err
	}
	a.success("Deleted note #%d", id)
	return nil
}
