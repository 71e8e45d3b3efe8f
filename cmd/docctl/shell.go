package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"docsync/internal/document/model"
	"docsync/internal/notifier"
	"docsync/internal/search"
	"docsync/internal/workspace"
	"docsync/pkg/apperror"
	"docsync/pkg/logger"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const shellHelp = `commands:
  folders                 list folders
  mkdir <name>            create a folder
  cd <folder-id> | ..     select a folder, or clear the selection
  ls                      list documents of the selected folder
  open <doc-id>           select a document
  cat                     print the selected document
  new <title> | <content> create a document in the selected folder
  edit <content>          replace the draft of the selected document
  commit                  save the draft
  rm <doc-id>             delete a document
  rmdir <folder-id>       delete a folder and its documents
  search <query>          search titles and content
  recent                  list recently visited documents
  state                   dump the session as YAML
  quit`

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		client := newClient()
		n := notifier.New()
		defer n.Close()

		errOut := cmd.ErrOrStderr()
		ws := workspace.New(workspace.Options{
			Repo:     client,
			History:  client,
			Notifier: n,
			Reporter: workspace.ReporterFunc(func(notice workspace.Notice) {
				fmt.Fprintln(errOut, notice.Message())
			}),
		})
		defer ws.Close()

		go func() {
			if err := client.Listen(ctx, n); err != nil {
				logger.Sugar.Warnf("Live updates stopped: %v", err)
				fmt.Fprintln(errOut, "Live updates from other clients are unavailable.")
			}
		}()

		sh := newShell(ws, search.NewGateway(client), cmd.OutOrStdout())
		_ = ws.LoadFolders(ctx)
		_ = ws.LoadHistory(ctx)
		return sh.run(ctx, cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

type shell struct {
	ws  *workspace.Workspace
	gw  *search.Gateway
	out io.Writer
}

func newShell(ws *workspace.Workspace, gw *search.Gateway, out io.Writer) *shell {
	return &shell{ws: ws, gw: gw, out: out}
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(s.out, "> ")
	for scanner.Scan() {
		quit, err := s.exec(ctx, scanner.Text())
		if err != nil && !reported(err) {
			fmt.Fprintln(s.out, "error:", err)
		}
		if quit {
			return nil
		}
		fmt.Fprint(s.out, "> ")
	}
	return scanner.Err()
}

// reported tells whether the workspace already surfaced err as a notice.
func reported(err error) bool {
	var notReported *usageError
	return !errors.As(err, &notReported)
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usage(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func (s *shell) exec(ctx context.Context, line string) (bool, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "":
		return false, nil
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(s.out, shellHelp)
	case "folders":
		if err := s.ws.LoadFolders(ctx); err != nil {
			return false, err
		}
		s.printFolders()
	case "mkdir":
		f, err := s.ws.CreateFolder(ctx, rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "created folder %s\n", f.ID)
	case "cd":
		if rest == ".." {
			rest = ""
		}
		if err := s.ws.SelectFolder(ctx, rest); err != nil {
			return false, err
		}
		if rest != "" {
			s.printDocuments(s.ws.FolderDocuments())
		}
	case "ls":
		if s.ws.SelectedFolder() == "" {
			return false, usage("no folder selected")
		}
		s.printDocuments(s.ws.FolderDocuments())
	case "open":
		if rest == "" {
			return false, usage("open needs a document id")
		}
		s.gw.Clear()
		if err := s.ws.SelectDocument(ctx, rest); err != nil {
			return false, err
		}
		s.printSelected()
	case "cat":
		if _, ok := s.ws.SelectedDocument(); !ok {
			return false, usage("no document selected")
		}
		s.printSelected()
	case "new":
		title, content, _ := strings.Cut(rest, "|")
		doc, err := s.ws.CreateDocument(ctx, model.CreateDocumentRequest{
			Title:    strings.TrimSpace(title),
			Content:  strings.TrimSpace(content),
			FolderID: s.ws.SelectedFolder(),
		})
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "created document %s\n", doc.ID)
	case "edit":
		if err := s.ws.SetDraft(rest); err != nil {
			return false, usage("%v", err)
		}
	case "commit":
		doc, err := s.ws.CommitDraft(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "saved %s\n", doc.ID)
	case "rm":
		if err := s.ws.DeleteDocument(ctx, rest); err != nil {
			return false, err
		}
	case "rmdir":
		if err := s.ws.DeleteFolder(ctx, rest); err != nil {
			return false, err
		}
	case "search":
		results, err := s.gw.Search(ctx, rest)
		if errors.Is(err, apperror.ErrSuperseded) {
			return false, nil
		}
		if err != nil {
			return false, usage("search failed: %v", err)
		}
		s.printResults(results)
	case "recent":
		s.printRecent()
	case "state":
		b, err := yaml.Marshal(s.ws.Snapshot())
		if err != nil {
			return false, usage("%v", err)
		}
		s.out.Write(b)
	default:
		return false, usage("unknown command %q, try help", name)
	}
	return false, nil
}

func (s *shell) printFolders() {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	selected := s.ws.SelectedFolder()
	for _, f := range s.ws.Folders() {
		mark := " "
		if f.ID == selected {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\n", mark, f.ID, f.Name)
	}
	tw.Flush()
}

func (s *shell) printDocuments(docs []model.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(s.out, "(empty)")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\n", d.ID, d.Title)
	}
	tw.Flush()
}

func (s *shell) printSelected() {
	doc, ok := s.ws.SelectedDocument()
	if !ok {
		return
	}
	fmt.Fprintf(s.out, "# %s (%s)\n%s\n", doc.Title, doc.ID, doc.Content)
	if draft, ok := s.ws.Draft(); ok {
		fmt.Fprintf(s.out, "-- unsaved draft --\n%s\n", draft)
	}
}

func (s *shell) printResults(results []model.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(s.out, "No documents found")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Title, r.Snippet)
	}
	tw.Flush()
}

func (s *shell) printRecent() {
	recent := s.ws.Recent()
	if len(recent) == 0 {
		fmt.Fprintln(s.out, "No recent documents")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, e := range recent {
		fmt.Fprintf(tw, "%s\t%s\n", e.ID, e.Title)
	}
	tw.Flush()
}
