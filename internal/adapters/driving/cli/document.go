package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage saved links",
}

var linkAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Save a link and queue it for indexing",
	Long: `Save a link. Its metadata is fetched and its text embedded in the
background by "stash serve", "stash worker" or "stash task run".

Passing --id updates an existing link instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runLinkAdd,
}

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Save a note and queue it for indexing",
	Long: `Save a note. Content is taken from --content or, when omitted, read
from standard input.

Passing --id updates an existing note instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runNoteAdd,
}

func init() {
	linkAddCmd.Flags().String("id", "", "update the link with this id")
	linkAddCmd.Flags().String("title", "", "link title")
	linkAddCmd.Flags().String("description", "", "link description")
	linkAddCmd.Flags().StringP("folder", "f", "", "folder name")
	linkAddCmd.Flags().StringSliceP("tag", "t", nil, "tags (repeatable)")
	linkCmd.AddCommand(linkAddCmd)

	noteAddCmd.Flags().String("id", "", "update the note with this id")
	noteAddCmd.Flags().StringP("content", "c", "", "note content (default: read stdin)")
	noteAddCmd.Flags().StringP("folder", "f", "", "folder name")
	noteAddCmd.Flags().StringSliceP("tag", "t", nil, "tags (repeatable)")
	noteCmd.AddCommand(noteAddCmd)

	rootCmd.AddCommand(linkCmd, noteCmd)
}

func runLinkAdd(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return fmt.Errorf("document %w", errNotConfigured)
	}

	in := driving.LinkInput{OwnerID: userID, URL: args[0]}
	in.ID, _ = cmd.Flags().GetString("id")
	in.Title, _ = cmd.Flags().GetString("title")
	in.Description, _ = cmd.Flags().GetString("description")
	in.Folder, _ = cmd.Flags().GetString("folder")
	in.Tags, _ = cmd.Flags().GetStringSlice("tag")

	link, tasks, err := documentService.SaveLink(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("save link: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, map[string]any{"link": link, "tasks": tasks})
	}
	cmd.Printf("Saved link %s\n", link.ID)
	printQueued(cmd, tasks)
	return nil
}

func runNoteAdd(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return fmt.Errorf("document %w", errNotConfigured)
	}

	in := driving.NoteInput{OwnerID: userID, Title: args[0]}
	in.ID, _ = cmd.Flags().GetString("id")
	in.Folder, _ = cmd.Flags().GetString("folder")
	in.Tags, _ = cmd.Flags().GetStringSlice("tag")
	in.Content, _ = cmd.Flags().GetString("content")

	if !cmd.Flags().Changed("content") {
		content, err := readContent(cmd)
		if err != nil {
			return err
		}
		in.Content = content
	}

	note, tasks, err := documentService.SaveNote(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("save note: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, map[string]any{"note": note, "tasks": tasks})
	}
	cmd.Printf("Saved note %s (%d words)\n", note.ID, note.WordCount)
	printQueued(cmd, tasks)
	return nil
}

// readContent reads the note body from stdin. On an interactive terminal the
// user is prompted and ends input with Ctrl-D.
func readContent(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		cmd.Println(defaultTheme.hintStyle().Render("Enter note content, then Ctrl-D:"))
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("reading note content: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func printQueued(cmd *cobra.Command, tasks []domain.Task) {
	for i := range tasks {
		cmd.Println(defaultTheme.hintStyle().Render(
			fmt.Sprintf("  queued %s (%s)", tasks[i].Type, tasks[i].ID)))
	}
}
